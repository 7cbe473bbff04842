package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	alertsdomain "github.com/clearhour/clearhour/internal/alerts/domain"
	sourcedomain "github.com/clearhour/clearhour/internal/billingsource/domain"
	"github.com/clearhour/clearhour/internal/clock"
	"github.com/clearhour/clearhour/internal/config"
	invoicedomain "github.com/clearhour/clearhour/internal/invoice/domain"
	obsmetrics "github.com/clearhour/clearhour/internal/observability/metrics"
	"github.com/clearhour/clearhour/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	BillingCfg *config.BillingConfigHolder
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	billingCfg *config.BillingConfigHolder
	metrics    *obsmetrics.Metrics
}

func NewService(p Params) alertsdomain.Aggregator {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("alerts.service"),
		clock:      p.Clock,
		billingCfg: p.BillingCfg,
		metrics:    p.Metrics,
	}
}

// OverdueInvoices returns invoices past their due date that are still
// collectible. The stored status may lag the derived one, so the scan
// keys on due_date plus the open status set rather than OVERDUE alone.
func (s *Service) OverdueInvoices(ctx context.Context) ([]invoicedomain.Invoice, error) {
	var invoices []invoicedomain.Invoice
	query := s.orgScope(ctx, s.db.WithContext(ctx)).
		Where("due_at < ?", s.clock.Now()).
		Where("status IN ?", invoicedomain.OpenStatuses())
	if err := query.Find(&invoices).Error; err != nil {
		return nil, err
	}
	s.recordComputed(ctx, "overdue_invoices")
	return invoices, nil
}

func (s *Service) InvoicesDueSoon(ctx context.Context, days int) ([]invoicedomain.Invoice, error) {
	if days <= 0 {
		days = s.billingCfg.Get().DueSoonDays
	}
	now := s.clock.Now()
	until := now.AddDate(0, 0, days)

	var invoices []invoicedomain.Invoice
	query := s.orgScope(ctx, s.db.WithContext(ctx)).
		Where("due_at >= ? AND due_at <= ?", now, until).
		Where("status NOT IN ?", []invoicedomain.InvoiceStatus{
			invoicedomain.InvoiceStatusPaid,
			invoicedomain.InvoiceStatusCancelled,
		})
	if err := query.Find(&invoices).Error; err != nil {
		return nil, err
	}
	s.recordComputed(ctx, "invoices_due_soon")
	return invoices, nil
}

// ReportsNeedingInvoices returns monthly reports whose period has closed
// without a live invoice. Cancelled invoices do not count.
func (s *Service) ReportsNeedingInvoices(ctx context.Context) ([]sourcedomain.MonthlyReport, error) {
	var reports []sourcedomain.MonthlyReport
	query := s.orgScope(ctx, s.db.WithContext(ctx)).
		Where("period_end < ?", s.clock.Now()).
		Where(`NOT EXISTS (
			SELECT 1 FROM invoices i
			WHERE i.source_kind = ? AND i.source_id = monthly_reports.id
			  AND i.cancelled_at IS NULL
		)`, sourcedomain.KindMonthlyReport)
	if err := query.Find(&reports).Error; err != nil {
		return nil, err
	}
	s.recordComputed(ctx, "reports_needing_invoices")
	return reports, nil
}

func (s *Service) NewServiceRequests(ctx context.Context) ([]sourcedomain.ServiceRequest, error) {
	var requests []sourcedomain.ServiceRequest
	query := s.orgScope(ctx, s.db.WithContext(ctx)).
		Where("status = ?", sourcedomain.ServiceRequestStatusNew)
	if err := query.Find(&requests).Error; err != nil {
		return nil, err
	}
	s.recordComputed(ctx, "new_service_requests")
	return requests, nil
}

func (s *Service) InProgressServiceRequestCount(ctx context.Context) (int64, error) {
	var count int64
	query := s.orgScope(ctx, s.db.WithContext(ctx)).
		Model(&sourcedomain.ServiceRequest{}).
		Where("status = ?", sourcedomain.ServiceRequestStatusInProgress)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Service) OverdueTasks(ctx context.Context) ([]alertsdomain.Task, error) {
	var tasks []alertsdomain.Task
	query := s.orgScope(ctx, s.db.WithContext(ctx)).
		Where("status <> ?", alertsdomain.TaskStatusDone).
		Where("due_at < ?", s.clock.Now())
	if err := query.Find(&tasks).Error; err != nil {
		return nil, err
	}
	s.recordComputed(ctx, "overdue_tasks")
	return tasks, nil
}

func (s *Service) TasksDueSoon(ctx context.Context, days int) ([]alertsdomain.Task, error) {
	if days <= 0 {
		days = s.billingCfg.Get().DueSoonDays
	}
	now := s.clock.Now()
	until := now.AddDate(0, 0, days)

	var tasks []alertsdomain.Task
	query := s.orgScope(ctx, s.db.WithContext(ctx)).
		Where("status <> ?", alertsdomain.TaskStatusDone).
		Where("due_at >= ? AND due_at <= ?", now, until)
	if err := query.Find(&tasks).Error; err != nil {
		return nil, err
	}
	s.recordComputed(ctx, "tasks_due_soon")
	return tasks, nil
}

func (s *Service) InvoiceHasLateFee(ctx context.Context, invoiceID snowflake.ID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&invoicedomain.LineItem{}).
		Where("invoice_id = ? AND kind = ?", invoiceID, invoicedomain.LineItemKindLateFee).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Summary runs every scan once. The counts are additive by contract.
func (s *Service) Summary(ctx context.Context) (alertsdomain.Summary, error) {
	var (
		summary alertsdomain.Summary
		err     error
	)
	if summary.OverdueInvoices, err = s.OverdueInvoices(ctx); err != nil {
		return alertsdomain.Summary{}, err
	}
	if summary.InvoicesDueSoon, err = s.InvoicesDueSoon(ctx, 0); err != nil {
		return alertsdomain.Summary{}, err
	}
	if summary.ReportsNeedingInvoices, err = s.ReportsNeedingInvoices(ctx); err != nil {
		return alertsdomain.Summary{}, err
	}
	if summary.NewServiceRequests, err = s.NewServiceRequests(ctx); err != nil {
		return alertsdomain.Summary{}, err
	}
	if summary.InProgressRequestCount, err = s.InProgressServiceRequestCount(ctx); err != nil {
		return alertsdomain.Summary{}, err
	}
	if summary.OverdueTasks, err = s.OverdueTasks(ctx); err != nil {
		return alertsdomain.Summary{}, err
	}
	if summary.TasksDueSoon, err = s.TasksDueSoon(ctx, 0); err != nil {
		return alertsdomain.Summary{}, err
	}
	return summary, nil
}

func (s *Service) orgScope(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if orgID, ok := orgcontext.OrgIDFromContext(ctx); ok && orgID != 0 {
		return tx.Where("org_id = ?", orgID)
	}
	return tx
}

func (s *Service) recordComputed(ctx context.Context, alertType string) {
	if s.metrics != nil {
		s.metrics.RecordAlertsComputed(ctx, alertType)
	}
}
