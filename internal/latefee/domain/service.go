// Package domain defines the late fee applier contract.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/clearhour/clearhour/internal/invoice/domain"
)

var (
	ErrNotOverdue     = errors.New("invoice is not overdue")
	ErrAlreadyApplied = errors.New("late fee already applied")
)

// Applier appends at most one late fee line item to an overdue invoice.
type Applier interface {
	AddLateFee(ctx context.Context, invoiceID snowflake.ID) (invoicedomain.LineItem, error)
	// ApplyDue scans for overdue invoices without a late fee and applies
	// the fee to each. It returns the number of invoices charged.
	ApplyDue(ctx context.Context) (int, error)
}
