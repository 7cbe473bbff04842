package service

import (
	"context"
	"errors"
	"io"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/clearhour/clearhour/internal/invoice/domain"
	"github.com/clearhour/clearhour/internal/invoice/format"
	"github.com/clearhour/clearhour/internal/providers/pdf"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Snapshot assembles the structured view of an invoice for rendering
// and presentation: header, line items and the outstanding balance.
func (s *Service) Snapshot(ctx context.Context, invoiceID snowflake.ID) (invoicedomain.Snapshot, error) {
	invoice, err := s.GetByID(ctx, invoiceID)
	if err != nil {
		return invoicedomain.Snapshot{}, err
	}
	items, err := s.LineItems(ctx, invoiceID)
	if err != nil {
		return invoicedomain.Snapshot{}, err
	}
	paid, err := s.amountPaid(ctx, invoiceID)
	if err != nil {
		return invoicedomain.Snapshot{}, err
	}

	due := invoice.TotalAmount.Sub(paid)
	if due.IsNegative() {
		due = decimal.Zero
	}
	return invoicedomain.Snapshot{
		Invoice:   invoice,
		LineItems: items,
		Paid:      paid,
		AmountDue: due,
	}, nil
}

// RenderPDF hands the snapshot to the PDF provider.
func (s *Service) RenderPDF(ctx context.Context, invoiceID snowflake.ID) (io.Reader, error) {
	if s.pdfProv == nil {
		return nil, errors.New("pdf provider not configured")
	}
	snapshot, err := s.Snapshot(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return s.pdfProv.GenerateInvoice(ctx, buildPDFData(snapshot))
}

func buildPDFData(snapshot invoicedomain.Snapshot) pdf.InvoiceData {
	invoice := snapshot.Invoice

	number := ""
	if invoice.Number != nil {
		number = *invoice.Number
	}
	dueDate := ""
	if invoice.DueAt != nil {
		dueDate = invoice.DueAt.Format("2006-01-02")
	}

	items := make([]pdf.InvoiceItem, 0, len(snapshot.LineItems))
	for _, item := range snapshot.LineItems {
		items = append(items, pdf.InvoiceItem{
			Description: item.Description,
			Hours:       format.Hours(item.Hours),
			Rate:        format.Amount(item.Rate),
			Amount:      format.Amount(item.Amount),
		})
	}

	return pdf.InvoiceData{
		InvoiceNumber: number,
		IssueDate:     invoice.IssueDate.Format("2006-01-02"),
		DueDate:       dueDate,
		Status:        format.StatusLabel(invoice.Status),
		Items:         items,
		Total:         format.Amount(invoice.TotalAmount),
		AmountPaid:    format.Amount(snapshot.Paid),
		AmountDue:     format.Amount(snapshot.AmountDue),
	}
}

// amountPaid sums the payment rows for an invoice. The payments table
// belongs to the payment ledger; only the recorded amounts are read here.
func (s *Service) amountPaid(ctx context.Context, invoiceID snowflake.ID) (decimal.Decimal, error) {
	var rows []struct {
		Amount decimal.Decimal
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT amount FROM payments WHERE invoice_id = ?`,
		invoiceID,
	).Scan(&rows).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Amount)
	}
	return total, nil
}
