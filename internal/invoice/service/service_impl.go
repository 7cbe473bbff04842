package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	sourcedomain "github.com/clearhour/clearhour/internal/billingsource/domain"
	"github.com/clearhour/clearhour/internal/clock"
	"github.com/clearhour/clearhour/internal/config"
	invoicedomain "github.com/clearhour/clearhour/internal/invoice/domain"
	obsmetrics "github.com/clearhour/clearhour/internal/observability/metrics"
	"github.com/clearhour/clearhour/internal/orgcontext"
	"github.com/clearhour/clearhour/internal/providers/pdf"
	referencedomain "github.com/clearhour/clearhour/internal/reference/domain"
	timesheetdomain "github.com/clearhour/clearhour/internal/timesheet/domain"
	"github.com/clearhour/clearhour/pkg/db"
	"github.com/clearhour/clearhour/pkg/db/option"
	"github.com/clearhour/clearhour/pkg/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	BillingCfg *config.BillingConfigHolder
	Resolver   sourcedomain.Resolver
	RefGen     referencedomain.Generator
	PDF        pdf.Provider        `optional:"true"`
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	billingCfg *config.BillingConfigHolder
	resolver   sourcedomain.Resolver
	refGen     referencedomain.Generator
	pdfProv    pdf.Provider
	metrics    *obsmetrics.Metrics

	invoicerepo repository.Repository[invoicedomain.Invoice]
	itemrepo    repository.Repository[invoicedomain.LineItem]
}

func NewService(p Params) invoicedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("invoice.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		billingCfg: p.BillingCfg,
		resolver:   p.Resolver,
		refGen:     p.RefGen,
		pdfProv:    p.PDF,
		metrics:    p.Metrics,

		invoicerepo: repository.ProvideStore[invoicedomain.Invoice](p.DB),
		itemrepo:    repository.ProvideStore[invoicedomain.LineItem](p.DB),
	}
}

func (s *Service) FromMilestone(ctx context.Context, milestoneID snowflake.ID) (invoicedomain.Invoice, error) {
	return s.fromSingleSource(ctx, sourcedomain.KindMilestone, timesheetdomain.SourceKindMilestone, milestoneID)
}

func (s *Service) FromMonthlyReport(ctx context.Context, reportID snowflake.ID) (invoicedomain.Invoice, error) {
	return s.fromSingleSource(ctx, sourcedomain.KindMonthlyReport, timesheetdomain.SourceKindMonthlyReport, reportID)
}

func (s *Service) fromSingleSource(ctx context.Context, kind sourcedomain.Kind, entryKind timesheetdomain.SourceKind, sourceID snowflake.ID) (invoicedomain.Invoice, error) {
	source, err := s.resolver.Resolve(ctx, kind, sourceID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if err := s.checkOrg(ctx, source.OrgID); err != nil {
		return invoicedomain.Invoice{}, err
	}

	var created invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockSourceRow(ctx, tx, kind, sourceID); err != nil {
			return err
		}
		if err := s.ensureNotInvoiced(ctx, tx, kind, sourceID); err != nil {
			return err
		}

		entries, err := s.collectUnbilled(ctx, tx, entryKind, sourceID)
		if err != nil {
			return err
		}
		totals := timesheetdomain.Sum(billableOnly(entries))
		billable := totals.Billable.Sub(source.Allowance)
		if !billable.IsPositive() {
			return invoicedomain.ErrNoBillableHours
		}

		now := s.clock.Now()
		created = invoicedomain.Invoice{
			ID:          s.genID.Generate(),
			OrgID:       source.OrgID,
			SourceKind:  kind,
			SourceID:    sourceID,
			Status:      invoicedomain.InvoiceStatusDraft,
			TotalAmount: decimal.Zero,
			IssueDate:   now,
			LogicalDate: source.BillingDate,
			Metadata:    datatypes.JSONMap{"source_description": source.Description},
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}

		item := invoicedomain.LineItem{
			ID:          s.genID.Generate(),
			OrgID:       source.OrgID,
			InvoiceID:   created.ID,
			Kind:        invoicedomain.LineItemKindHours,
			Description: source.Description,
			Hours:       billable,
			Rate:        source.Rate,
			Amount:      billable.Mul(source.Rate).Round(2),
			SourceKind:  &entryKind,
			SourceID:    &sourceID,
			CreatedAt:   now,
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		if err := s.bindEntries(ctx, tx, billableOnly(entries), item.ID); err != nil {
			return err
		}

		created.TotalAmount = item.Amount
		return tx.Model(&invoicedomain.Invoice{}).
			Where("id = ?", created.ID).
			Updates(map[string]any{"total_amount": item.Amount, "updated_at": now}).Error
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.recordGenerated(ctx, string(kind))
	return s.Finalize(ctx, created.ID)
}

func (s *Service) CloseoutFromProject(ctx context.Context, projectID snowflake.ID) (invoicedomain.Invoice, error) {
	source, err := s.resolver.Resolve(ctx, sourcedomain.KindProject, projectID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if err := s.checkOrg(ctx, source.OrgID); err != nil {
		return invoicedomain.Invoice{}, err
	}

	var created invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockSourceRow(ctx, tx, sourcedomain.KindProject, projectID); err != nil {
			return err
		}
		if err := s.ensureNotInvoiced(ctx, tx, sourcedomain.KindProject, projectID); err != nil {
			return err
		}

		buckets, err := s.collectCloseoutBuckets(ctx, tx, projectID, source.Rate)
		if err != nil {
			return err
		}
		if len(buckets) == 0 {
			return invoicedomain.ErrNoBillableHours
		}

		now := s.clock.Now()
		created = invoicedomain.Invoice{
			ID:          s.genID.Generate(),
			OrgID:       source.OrgID,
			SourceKind:  sourcedomain.KindProject,
			SourceID:    projectID,
			Status:      invoicedomain.InvoiceStatusDraft,
			TotalAmount: decimal.Zero,
			IssueDate:   now,
			LogicalDate: source.BillingDate,
			Metadata:    datatypes.JSONMap{"source_description": source.Description},
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}

		total := decimal.Zero
		for _, bucket := range buckets {
			kind := bucket.kind
			sourceID := bucket.sourceID
			item := invoicedomain.LineItem{
				ID:          s.genID.Generate(),
				OrgID:       source.OrgID,
				InvoiceID:   created.ID,
				Kind:        invoicedomain.LineItemKindHours,
				Description: bucket.description,
				Hours:       bucket.hours,
				Rate:        bucket.rate,
				Amount:      bucket.hours.Mul(bucket.rate).Round(2),
				SourceKind:  &kind,
				SourceID:    &sourceID,
				CreatedAt:   now,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			if err := s.bindEntries(ctx, tx, bucket.entries, item.ID); err != nil {
				return err
			}
			total = total.Add(item.Amount)
		}

		created.TotalAmount = total
		return tx.Model(&invoicedomain.Invoice{}).
			Where("id = ?", created.ID).
			Updates(map[string]any{"total_amount": total, "updated_at": now}).Error
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.recordGenerated(ctx, string(sourcedomain.KindProject))
	return s.Finalize(ctx, created.ID)
}

// Finalize assigns the reference number and due date and flips the
// invoice to PENDING. It is retryable: an already finalized invoice is
// returned unchanged.
func (s *Service) Finalize(ctx context.Context, invoiceID snowflake.ID) (invoicedomain.Invoice, error) {
	var result invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadInvoiceForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if invoice.CancelledAt != nil {
			return invoicedomain.ErrInvoiceCancelled
		}
		if invoice.FinalizedAt != nil {
			result = *invoice
			return nil
		}

		number := invoice.Number
		if number == nil {
			value, err := s.refGen.Generate(ctx, referencedomain.EntityTypeInvoice, invoice.LogicalDate)
			if err != nil {
				return err
			}
			number = &value
		}

		now := s.clock.Now()
		terms := s.billingCfg.Get().PaymentTermsDays
		due := invoice.IssueDate.AddDate(0, 0, terms)
		if err := tx.Model(&invoicedomain.Invoice{}).
			Where("id = ?", invoice.ID).
			Updates(map[string]any{
				"number":       *number,
				"due_at":       due,
				"finalized_at": now,
				"status":       invoicedomain.InvoiceStatusPending,
				"updated_at":   now,
			}).Error; err != nil {
			return err
		}

		invoice.Number = number
		invoice.DueAt = &due
		invoice.FinalizedAt = &now
		invoice.Status = invoicedomain.InvoiceStatusPending
		result = *invoice
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	return result, nil
}

// Cancel is the explicit terminal transition driven by an external
// action. The ledger and the late-fee applier refuse cancelled invoices.
func (s *Service) Cancel(ctx context.Context, invoiceID snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadInvoiceForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if invoice.CancelledAt != nil {
			return nil
		}

		now := s.clock.Now()
		return tx.Model(&invoicedomain.Invoice{}).
			Where("id = ?", invoice.ID).
			Updates(map[string]any{
				"cancelled_at": now,
				"status":       invoicedomain.InvoiceStatusCancelled,
				"updated_at":   now,
			}).Error
	})
}

func (s *Service) GetByID(ctx context.Context, invoiceID snowflake.ID) (invoicedomain.Invoice, error) {
	item, err := s.invoicerepo.FindOne(ctx, &invoicedomain.Invoice{ID: invoiceID})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if item == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidOrganization
	}

	filter := &invoicedomain.Invoice{OrgID: orgID}
	if req.Status != nil {
		filter.Status = *req.Status
	}

	options := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{Field: "created_at", Desc: true, Allow: map[string]bool{"created_at": true}}),
		option.WithLimit(req.Limit),
	}
	if req.DueFrom != nil {
		options = append(options, option.ApplyOperator(option.Condition{
			Field:    "due_at",
			Operator: option.GTE,
			Value:    *req.DueFrom,
		}))
	}
	if req.DueTo != nil {
		options = append(options, option.ApplyOperator(option.Condition{
			Field:    "due_at",
			Operator: option.LTE,
			Value:    *req.DueTo,
		}))
	}

	items, err := s.invoicerepo.Find(ctx, filter, options...)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	invoices := make([]invoicedomain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}
	return invoicedomain.ListInvoiceResponse{Invoices: invoices}, nil
}

func (s *Service) LineItems(ctx context.Context, invoiceID snowflake.ID) ([]invoicedomain.LineItem, error) {
	items, err := s.itemrepo.Find(ctx, &invoicedomain.LineItem{InvoiceID: invoiceID})
	if err != nil {
		return nil, err
	}
	result := make([]invoicedomain.LineItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		result = append(result, *item)
	}
	return result, nil
}

func (s *Service) checkOrg(ctx context.Context, sourceOrg snowflake.ID) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if ok && orgID != 0 && orgID != sourceOrg {
		return invoicedomain.ErrInvalidOrganization
	}
	return nil
}

type closeoutBucket struct {
	kind        timesheetdomain.SourceKind
	sourceID    snowflake.ID
	description string
	rate        decimal.Decimal
	hours       decimal.Decimal
	entries     []timesheetdomain.TimeEntry
}

func (s *Service) collectCloseoutBuckets(ctx context.Context, tx *gorm.DB, projectID snowflake.ID, projectRate decimal.Decimal) ([]closeoutBucket, error) {
	var milestones []sourcedomain.Milestone
	if err := tx.WithContext(ctx).Where("project_id = ?", projectID).Find(&milestones).Error; err != nil {
		return nil, err
	}
	var requests []sourcedomain.ServiceRequest
	if err := tx.WithContext(ctx).Where("project_id = ?", projectID).Find(&requests).Error; err != nil {
		return nil, err
	}

	var buckets []closeoutBucket
	for _, milestone := range milestones {
		entries, err := s.collectUnbilled(ctx, tx, timesheetdomain.SourceKindMilestone, milestone.ID)
		if err != nil {
			return nil, err
		}
		billable := billableOnly(entries)
		hours := timesheetdomain.Sum(billable).Billable
		if !hours.IsPositive() {
			continue
		}
		buckets = append(buckets, closeoutBucket{
			kind:        timesheetdomain.SourceKindMilestone,
			sourceID:    milestone.ID,
			description: "Milestone: " + milestone.Name,
			rate:        milestone.HourlyRate,
			hours:       hours,
			entries:     billable,
		})
	}
	for _, request := range requests {
		entries, err := s.collectUnbilled(ctx, tx, timesheetdomain.SourceKindServiceRequest, request.ID)
		if err != nil {
			return nil, err
		}
		billable := billableOnly(entries)
		hours := timesheetdomain.Sum(billable).Billable
		if !hours.IsPositive() {
			continue
		}
		rate := request.HourlyRate
		if !rate.IsPositive() {
			rate = projectRate
		}
		buckets = append(buckets, closeoutBucket{
			kind:        timesheetdomain.SourceKindServiceRequest,
			sourceID:    request.ID,
			description: "Service request: " + request.Title,
			rate:        rate,
			hours:       hours,
			entries:     billable,
		})
	}
	return buckets, nil
}

// collectUnbilled returns the source's time entries that are not yet
// referenced by a line item of a non-cancelled invoice.
func (s *Service) collectUnbilled(ctx context.Context, tx *gorm.DB, kind timesheetdomain.SourceKind, sourceID snowflake.ID) ([]timesheetdomain.TimeEntry, error) {
	var entries []timesheetdomain.TimeEntry
	err := tx.WithContext(ctx).Raw(
		`SELECT te.*
		 FROM time_entries te
		 LEFT JOIN line_items li ON li.id = te.line_item_id
		 LEFT JOIN invoices i ON i.id = li.invoice_id
		 WHERE te.source_kind = ? AND te.source_id = ?
		   AND (te.line_item_id IS NULL OR i.cancelled_at IS NOT NULL)`,
		kind,
		sourceID,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Service) bindEntries(ctx context.Context, tx *gorm.DB, entries []timesheetdomain.TimeEntry, lineItemID snowflake.ID) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]snowflake.ID, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}
	return tx.WithContext(ctx).Model(&timesheetdomain.TimeEntry{}).
		Where("id IN ?", ids).
		Update("line_item_id", lineItemID).Error
}

func (s *Service) ensureNotInvoiced(ctx context.Context, tx *gorm.DB, kind sourcedomain.Kind, sourceID snowflake.ID) error {
	var count int64
	err := tx.WithContext(ctx).Model(&invoicedomain.Invoice{}).
		Where("source_kind = ? AND source_id = ? AND cancelled_at IS NULL", kind, sourceID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return invoicedomain.ErrAlreadyInvoiced
	}
	return nil
}

func (s *Service) lockSourceRow(ctx context.Context, tx *gorm.DB, kind sourcedomain.Kind, id snowflake.ID) error {
	locked := db.WithRowLock(tx.WithContext(ctx))
	switch kind {
	case sourcedomain.KindMilestone:
		return locked.First(&sourcedomain.Milestone{}, "id = ?", id).Error
	case sourcedomain.KindMonthlyReport:
		return locked.First(&sourcedomain.MonthlyReport{}, "id = ?", id).Error
	case sourcedomain.KindProject:
		return locked.First(&sourcedomain.Project{}, "id = ?", id).Error
	default:
		return sourcedomain.ErrUnknownKind
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

func (s *Service) recordGenerated(ctx context.Context, sourceKind string) {
	if s.metrics != nil {
		s.metrics.RecordInvoiceGenerated(ctx, sourceKind)
	}
}

func billableOnly(entries []timesheetdomain.TimeEntry) []timesheetdomain.TimeEntry {
	result := make([]timesheetdomain.TimeEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.IsBillable() {
			result = append(result, entry)
		}
	}
	return result
}
