package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type ListInvoiceRequest struct {
	Status  *InvoiceStatus
	DueFrom *time.Time
	DueTo   *time.Time
	Limit   int
}

type ListInvoiceResponse struct {
	Invoices []Invoice
}

// Snapshot is the render-ready view handed to the PDF provider.
type Snapshot struct {
	Invoice   Invoice
	LineItems []LineItem
	Paid      decimal.Decimal
	AmountDue decimal.Decimal
}

// Service assembles invoices from billing sources, owns their
// draft -> finalized transition and produces render snapshots.
type Service interface {
	// FromMilestone and friends create a draft, attach line items and
	// finalize it. When finalization fails the draft persists; retry
	// Finalize with the returned invoice's ID.
	FromMilestone(ctx context.Context, milestoneID snowflake.ID) (Invoice, error)
	FromMonthlyReport(ctx context.Context, reportID snowflake.ID) (Invoice, error)
	CloseoutFromProject(ctx context.Context, projectID snowflake.ID) (Invoice, error)

	Finalize(ctx context.Context, invoiceID snowflake.ID) (Invoice, error)
	Cancel(ctx context.Context, invoiceID snowflake.ID) error

	GetByID(ctx context.Context, invoiceID snowflake.ID) (Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	LineItems(ctx context.Context, invoiceID snowflake.ID) ([]LineItem, error)
	Snapshot(ctx context.Context, invoiceID snowflake.ID) (Snapshot, error)
	RenderPDF(ctx context.Context, invoiceID snowflake.ID) (io.Reader, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvoiceNotFound     = errors.New("invoice_not_found")
	ErrAlreadyInvoiced     = errors.New("already_invoiced")
	ErrNoBillableHours     = errors.New("no_billable_hours")
	ErrInvoiceCancelled    = errors.New("invoice_cancelled")
)
