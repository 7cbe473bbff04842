// Package notify publishes billing lifecycle events to interested
// channels. The default implementation writes structured log lines;
// outbound channels (email, chat) plug in behind the same interface.
package notify

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Event is a billing lifecycle notification.
type Event struct {
	Kind      EventKind
	OrgID     snowflake.ID
	InvoiceID snowflake.ID
	Number    string
	Amount    decimal.Decimal
}

type EventKind string

const (
	EventInvoicePaid    EventKind = "invoice.paid"
	EventLateFeeApplied EventKind = "invoice.late_fee_applied"
)

type Notifier interface {
	Notify(ctx context.Context, event Event)
}

type NoOpNotifier struct{}

func (n *NoOpNotifier) Notify(ctx context.Context, event Event) {}
