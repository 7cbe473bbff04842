package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/clearhour/clearhour/internal/clock"
	invoicedomain "github.com/clearhour/clearhour/internal/invoice/domain"
	obsmetrics "github.com/clearhour/clearhour/internal/observability/metrics"
	"github.com/clearhour/clearhour/internal/orgcontext"
	paymentdomain "github.com/clearhour/clearhour/internal/payment/domain"
	"github.com/clearhour/clearhour/internal/providers/notify"
	"github.com/clearhour/clearhour/pkg/db"
	"github.com/clearhour/clearhour/pkg/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Notifier notify.Notifier     `optional:"true"`
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	notifier notify.Notifier
	metrics  *obsmetrics.Metrics

	paymentrepo repository.Repository[paymentdomain.Payment]
}

func NewService(p Params) paymentdomain.Ledger {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		notifier: p.Notifier,
		metrics:  p.Metrics,

		paymentrepo: repository.ProvideStore[paymentdomain.Payment](p.DB),
	}
}

// RecordPayment appends a ledger row and re-derives the invoice status
// from the new balance. The fee is stored but never credited.
func (s *Service) RecordPayment(ctx context.Context, req paymentdomain.RecordPaymentRequest) (paymentdomain.RecordPaymentResult, error) {
	if !req.Amount.IsPositive() {
		return paymentdomain.RecordPaymentResult{}, paymentdomain.ErrInvalidAmount
	}
	if req.Fee.IsNegative() {
		return paymentdomain.RecordPaymentResult{}, paymentdomain.ErrInvalidFee
	}
	if !req.Method.Valid() {
		return paymentdomain.RecordPaymentResult{}, paymentdomain.ErrInvalidMethod
	}

	var (
		result     paymentdomain.RecordPaymentResult
		becamePaid bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadInvoiceForUpdate(ctx, tx, req.InvoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if err := s.checkOrg(ctx, invoice.OrgID); err != nil {
			return err
		}
		if invoice.CancelledAt != nil {
			return invoicedomain.ErrInvoiceCancelled
		}
		if invoice.FinalizedAt == nil {
			return paymentdomain.ErrInvoiceDraft
		}

		now := s.clock.Now()
		recordedAt := req.RecordedAt
		if recordedAt.IsZero() {
			recordedAt = now
		}

		payment := paymentdomain.Payment{
			ID:             s.genID.Generate(),
			OrgID:          invoice.OrgID,
			InvoiceID:      invoice.ID,
			Amount:         req.Amount.Round(2),
			Fee:            req.Fee.Round(2),
			Method:         req.Method,
			TransactionRef: req.TransactionRef,
			RecordedAt:     recordedAt,
			CreatedAt:      now,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		paid, err := sumPayments(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}

		wasPaid := invoice.Status == invoicedomain.InvoiceStatusPaid
		status := invoicedomain.DeriveStatus(*invoice, paid, now)
		updates := map[string]any{"status": status, "updated_at": now}
		if status == invoicedomain.InvoiceStatusPaid && invoice.PaidAt == nil {
			updates["paid_at"] = now
			invoice.PaidAt = &now
		}
		if err := tx.Model(&invoicedomain.Invoice{}).
			Where("id = ?", invoice.ID).
			Updates(updates).Error; err != nil {
			return err
		}
		invoice.Status = status
		becamePaid = status == invoicedomain.InvoiceStatusPaid && !wasPaid

		due := invoice.TotalAmount.Sub(paid)
		if due.IsNegative() {
			due = decimal.Zero
		}
		result = paymentdomain.RecordPaymentResult{
			Payment:   payment,
			Invoice:   *invoice,
			Paid:      paid,
			AmountDue: due,
		}
		return nil
	})
	if err != nil {
		return paymentdomain.RecordPaymentResult{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordPaymentRecorded(ctx, string(req.Method))
	}
	if becamePaid && s.notifier != nil {
		number := ""
		if result.Invoice.Number != nil {
			number = *result.Invoice.Number
		}
		s.notifier.Notify(ctx, notify.Event{
			Kind:      notify.EventInvoicePaid,
			OrgID:     result.Invoice.OrgID,
			InvoiceID: result.Invoice.ID,
			Number:    number,
			Amount:    result.Paid,
		})
	}

	s.log.Info("payment recorded",
		zap.Int64("invoice_id", result.Invoice.ID.Int64()),
		zap.String("amount", result.Payment.Amount.StringFixed(2)),
		zap.String("status", string(result.Invoice.Status)),
	)
	return result, nil
}

func (s *Service) ListByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]paymentdomain.Payment, error) {
	items, err := s.paymentrepo.Find(ctx, &paymentdomain.Payment{InvoiceID: invoiceID})
	if err != nil {
		return nil, err
	}
	result := make([]paymentdomain.Payment, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		result = append(result, *item)
	}
	return result, nil
}

func (s *Service) AmountPaid(ctx context.Context, invoiceID snowflake.ID) (decimal.Decimal, error) {
	return sumPayments(ctx, s.db, invoiceID)
}

func (s *Service) checkOrg(ctx context.Context, invoiceOrg snowflake.ID) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if ok && orgID != 0 && orgID != invoiceOrg {
		return invoicedomain.ErrInvalidOrganization
	}
	return nil
}

func (s *Service) loadInvoiceForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := db.WithRowLock(tx.WithContext(ctx)).First(&invoice, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

// sumPayments adds the recorded amounts in Go to keep decimal exactness
// independent of driver numeric handling.
func sumPayments(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID) (decimal.Decimal, error) {
	var rows []struct {
		Amount decimal.Decimal
	}
	err := tx.WithContext(ctx).Raw(
		`SELECT amount FROM payments WHERE invoice_id = ?`,
		invoiceID,
	).Scan(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Amount)
	}
	return total, nil
}
