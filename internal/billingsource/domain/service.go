package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Kind tags the billing-source variant.
type Kind string

const (
	KindMilestone     Kind = "milestone"
	KindMonthlyReport Kind = "monthly_report"
	KindProject       Kind = "project"
)

// Source is the flattened snapshot the invoice builder works from,
// regardless of variant.
type Source struct {
	Kind        Kind
	ID          snowflake.ID
	OrgID       snowflake.ID
	Description string
	// Allowance is subtracted from billable hours before invoicing,
	// floored at zero.
	Allowance decimal.Decimal
	Rate      decimal.Decimal
	// BillingDate is the logical date the reference number is scoped to.
	BillingDate time.Time
}

type Resolver interface {
	Resolve(ctx context.Context, kind Kind, id snowflake.ID) (Source, error)
}

var (
	ErrNotFound    = errors.New("billing_source_not_found")
	ErrUnknownKind = errors.New("unknown_billing_source_kind")
)
