package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Aggregator sums recorded hours for a billing source. Read-only,
// idempotent, safe to call concurrently.
type Aggregator interface {
	Totals(ctx context.Context, kind SourceKind, sourceID snowflake.ID) (Totals, error)
	Collect(ctx context.Context, kind SourceKind, sourceID snowflake.ID) ([]TimeEntry, error)
}
