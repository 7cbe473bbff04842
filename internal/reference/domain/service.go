package domain

import (
	"context"
	"errors"
	"time"
)

// Parsed is the decomposition of a reference number string.
type Parsed struct {
	Prefix   string
	YYMM     string
	Sequence int
}

// Generator issues month-scoped sequential reference numbers of the
// form <PREFIX>-<YYMM>-<NNN>. A zero logicalDate means "now".
type Generator interface {
	Generate(ctx context.Context, entityType EntityType, logicalDate time.Time) (string, error)
	GenerateFromString(ctx context.Context, entityType EntityType, logicalDate string) (string, error)
}

var (
	ErrInvalidDate        = errors.New("invalid_date")
	ErrMalformedReference = errors.New("malformed_reference")
	ErrUnknownEntityType  = errors.New("unknown_entity_type")
)
