package pdf

import (
	"context"
	"io"
)

// InvoiceData is the pre-formatted payload the renderer consumes. All
// monetary values arrive as display strings; formatting decisions stay
// with the caller.
type InvoiceData struct {
	InvoiceNumber string
	IssueDate     string
	DueDate       string
	Status        string

	Items []InvoiceItem

	Total      string
	AmountPaid string
	AmountDue  string
}

type InvoiceItem struct {
	Description string
	Hours       string
	Rate        string
	Amount      string
}

type Provider interface {
	GenerateInvoice(ctx context.Context, data InvoiceData) (io.Reader, error)
}

// NoOpProvider satisfies Provider where PDF output is not needed,
// for example in the scheduler binary.
type NoOpProvider struct{}

func (p *NoOpProvider) GenerateInvoice(ctx context.Context, data InvoiceData) (io.Reader, error) {
	return nil, nil
}
