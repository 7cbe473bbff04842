package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/clearhour/clearhour/internal/clock"
	"github.com/clearhour/clearhour/internal/config"
	invoicedomain "github.com/clearhour/clearhour/internal/invoice/domain"
	latefeedomain "github.com/clearhour/clearhour/internal/latefee/domain"
	obsmetrics "github.com/clearhour/clearhour/internal/observability/metrics"
	"github.com/clearhour/clearhour/internal/providers/notify"
	"github.com/clearhour/clearhour/pkg/db"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	BillingCfg *config.BillingConfigHolder
	Notifier   notify.Notifier     `optional:"true"`
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	billingCfg *config.BillingConfigHolder
	notifier   notify.Notifier
	metrics    *obsmetrics.Metrics
}

func NewService(p Params) latefeedomain.Applier {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("latefee.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		billingCfg: p.BillingCfg,
		notifier:   p.Notifier,
		metrics:    p.Metrics,
	}
}

// AddLateFee appends the configured fee to an overdue invoice. A second
// call for the same invoice returns ErrAlreadyApplied; the row lock and
// the in-transaction check make the operation idempotent under
// concurrent schedulers.
func (s *Service) AddLateFee(ctx context.Context, invoiceID snowflake.ID) (invoicedomain.LineItem, error) {
	var (
		item    invoicedomain.LineItem
		invoice invoicedomain.Invoice
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := s.loadInvoiceForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if loaded == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if loaded.CancelledAt != nil {
			return invoicedomain.ErrInvoiceCancelled
		}
		if loaded.FinalizedAt == nil {
			return latefeedomain.ErrNotOverdue
		}

		var existing int64
		err = tx.Model(&invoicedomain.LineItem{}).
			Where("invoice_id = ? AND kind = ?", loaded.ID, invoicedomain.LineItemKindLateFee).
			Count(&existing).Error
		if err != nil {
			return err
		}
		if existing > 0 {
			return latefeedomain.ErrAlreadyApplied
		}

		paid, err := sumPayments(ctx, tx, loaded.ID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if invoicedomain.DeriveStatus(*loaded, paid, now) != invoicedomain.InvoiceStatusOverdue {
			return latefeedomain.ErrNotOverdue
		}

		fee := s.feeAmount(loaded.TotalAmount)
		item = invoicedomain.LineItem{
			ID:          s.genID.Generate(),
			OrgID:       loaded.OrgID,
			InvoiceID:   loaded.ID,
			Kind:        invoicedomain.LineItemKindLateFee,
			Description: "Late payment fee",
			Hours:       decimal.Zero,
			Rate:        decimal.Zero,
			Amount:      fee,
			CreatedAt:   now,
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}

		loaded.TotalAmount = loaded.TotalAmount.Add(fee)
		status := invoicedomain.DeriveStatus(*loaded, paid, now)
		if err := tx.Model(&invoicedomain.Invoice{}).
			Where("id = ?", loaded.ID).
			Updates(map[string]any{
				"total_amount": loaded.TotalAmount,
				"status":       status,
				"updated_at":   now,
			}).Error; err != nil {
			return err
		}
		loaded.Status = status
		invoice = *loaded
		return nil
	})
	if err != nil {
		return invoicedomain.LineItem{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordLateFeeApplied(ctx, string(s.billingCfg.Get().LateFee.Kind))
	}
	if s.notifier != nil {
		number := ""
		if invoice.Number != nil {
			number = *invoice.Number
		}
		s.notifier.Notify(ctx, notify.Event{
			Kind:      notify.EventLateFeeApplied,
			OrgID:     invoice.OrgID,
			InvoiceID: invoice.ID,
			Number:    number,
			Amount:    item.Amount,
		})
	}

	s.log.Info("late fee applied",
		zap.Int64("invoice_id", invoice.ID.Int64()),
		zap.String("fee", item.Amount.StringFixed(2)),
	)
	return item, nil
}

// ApplyDue charges every overdue invoice that does not yet carry a fee.
// Invoices that lose eligibility between the scan and the row lock are
// skipped, not failed.
func (s *Service) ApplyDue(ctx context.Context) (int, error) {
	now := s.clock.Now()

	var candidates []invoicedomain.Invoice
	err := s.db.WithContext(ctx).Raw(
		`SELECT i.*
		 FROM invoices i
		 WHERE i.finalized_at IS NOT NULL
		   AND i.cancelled_at IS NULL
		   AND i.paid_at IS NULL
		   AND i.due_at < ?
		   AND NOT EXISTS (
		     SELECT 1 FROM line_items li
		     WHERE li.invoice_id = i.id AND li.kind = ?
		   )`,
		now,
		invoicedomain.LineItemKindLateFee,
	).Scan(&candidates).Error
	if err != nil {
		return 0, err
	}

	applied := 0
	var errs []error
	for _, candidate := range candidates {
		_, err := s.AddLateFee(ctx, candidate.ID)
		switch {
		case err == nil:
			applied++
		case errors.Is(err, latefeedomain.ErrAlreadyApplied),
			errors.Is(err, latefeedomain.ErrNotOverdue),
			errors.Is(err, invoicedomain.ErrInvoiceCancelled):
			continue
		default:
			errs = append(errs, err)
		}
	}
	return applied, errors.Join(errs...)
}

func (s *Service) feeAmount(total decimal.Decimal) decimal.Decimal {
	cfg := s.billingCfg.Get().LateFee
	switch cfg.Kind {
	case config.LateFeePercent:
		pct := decimal.NewFromFloat(cfg.Percent)
		return total.Mul(pct).Div(decimal.NewFromInt(100)).Round(2)
	default:
		return decimal.NewFromFloat(cfg.Amount).Round(2)
	}
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
