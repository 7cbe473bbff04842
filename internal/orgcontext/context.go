// Package orgcontext carries the active organization and actor through
// context values. Every engine operation reads its scope from here rather
// than from process-wide state.
package orgcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// OrgContextKey is the request context key for the active organization ID.
type OrgContextKey struct{}

// ActorContextKey is the request context key for the acting identity.
type ActorContextKey struct{}

// Actor identifies who triggered an operation (user, system job, ...).
type Actor struct {
	Type string
	ID   string
}

// WithOrgID stores the org ID in the context.
func WithOrgID(ctx context.Context, orgID snowflake.ID) context.Context {
	return context.WithValue(ctx, OrgContextKey{}, orgID)
}

// OrgIDFromContext returns the org ID from context, if set.
func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	value := ctx.Value(OrgContextKey{})
	switch typed := value.(type) {
	case int64:
		return snowflake.ID(typed), true
	case snowflake.ID:
		return typed, true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// WithActor stores the acting identity in the context.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, ActorContextKey{}, Actor{Type: actorType, ID: actorID})
}

// ActorFromContext returns the acting identity, if set.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(ActorContextKey{}).(Actor)
	return actor, ok
}
