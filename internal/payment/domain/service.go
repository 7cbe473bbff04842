package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/clearhour/clearhour/internal/invoice/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("payment amount must be positive")
	ErrInvalidFee    = errors.New("payment fee must not be negative")
	ErrInvalidMethod = errors.New("unknown payment method")
	ErrInvoiceDraft  = errors.New("invoice is not finalized")
)

// RecordPaymentRequest describes one incoming payment against an invoice.
type RecordPaymentRequest struct {
	InvoiceID      snowflake.ID
	Amount         decimal.Decimal
	Fee            decimal.Decimal
	Method         Method
	TransactionRef string
	// RecordedAt defaults to now when zero.
	RecordedAt time.Time
}

// RecordPaymentResult reports the ledger row and the invoice state that
// followed from it.
type RecordPaymentResult struct {
	Payment   Payment
	Invoice   invoicedomain.Invoice
	Paid      decimal.Decimal
	AmountDue decimal.Decimal
}

// Ledger is the append-only payment ledger for invoices.
type Ledger interface {
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (RecordPaymentResult, error)
	ListByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]Payment, error)
	AmountPaid(ctx context.Context, invoiceID snowflake.ID) (decimal.Decimal, error)
}
