package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	sourcedomain "github.com/clearhour/clearhour/internal/billingsource/domain"
	invoicedomain "github.com/clearhour/clearhour/internal/invoice/domain"
)

// Summary bundles every alert set in one pass, for badge rendering and
// the cached dashboard refresh. Counts are additive; an entity present
// in two sets is counted twice.
type Summary struct {
	OverdueInvoices        []invoicedomain.Invoice
	InvoicesDueSoon        []invoicedomain.Invoice
	ReportsNeedingInvoices []sourcedomain.MonthlyReport
	NewServiceRequests     []sourcedomain.ServiceRequest
	InProgressRequestCount int64
	OverdueTasks           []Task
	TasksDueSoon           []Task
}

// TotalAlertCount is the additive badge count over all alert sets.
func (s Summary) TotalAlertCount() int {
	return len(s.OverdueInvoices) +
		len(s.InvoicesDueSoon) +
		len(s.ReportsNeedingInvoices) +
		len(s.NewServiceRequests) +
		int(s.InProgressRequestCount) +
		len(s.OverdueTasks) +
		len(s.TasksDueSoon)
}

// Aggregator runs the read-only alert scans. Every query is idempotent
// and safe to call concurrently; none of them holds a cache.
type Aggregator interface {
	OverdueInvoices(ctx context.Context) ([]invoicedomain.Invoice, error)
	InvoicesDueSoon(ctx context.Context, days int) ([]invoicedomain.Invoice, error)
	ReportsNeedingInvoices(ctx context.Context) ([]sourcedomain.MonthlyReport, error)
	NewServiceRequests(ctx context.Context) ([]sourcedomain.ServiceRequest, error)
	InProgressServiceRequestCount(ctx context.Context) (int64, error)
	OverdueTasks(ctx context.Context) ([]Task, error)
	TasksDueSoon(ctx context.Context, days int) ([]Task, error)
	InvoiceHasLateFee(ctx context.Context, invoiceID snowflake.ID) (bool, error)
	Summary(ctx context.Context) (Summary, error)
}
