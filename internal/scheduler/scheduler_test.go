package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	alertsdomain "github.com/clearhour/clearhour/internal/alerts/domain"
	alertssvc "github.com/clearhour/clearhour/internal/alerts/service"
	sourcedomain "github.com/clearhour/clearhour/internal/billingsource/domain"
	"github.com/clearhour/clearhour/internal/clock"
	"github.com/clearhour/clearhour/internal/config"
	invoicedomain "github.com/clearhour/clearhour/internal/invoice/domain"
	latefeesvc "github.com/clearhour/clearhour/internal/latefee/service"
	"github.com/clearhour/clearhour/internal/orgcontext"
	paymentdomain "github.com/clearhour/clearhour/internal/payment/domain"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type schedulerFixture struct {
	scheduler *Scheduler
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
}

func setupScheduler(t *testing.T, cfg Config) *schedulerFixture {
	t.Helper()

	dbConn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(
		&sourcedomain.MonthlyReport{},
		&sourcedomain.ServiceRequest{},
		&alertsdomain.Task{},
		&invoicedomain.Invoice{},
		&invoicedomain.LineItem{},
		&paymentdomain.Payment{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	holder, err := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
	require.NoError(t, err)

	log := zap.NewNop()
	fakeClock := clock.NewFakeClock(time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC))

	applier := latefeesvc.NewService(latefeesvc.Params{
		DB:         dbConn,
		Log:        log,
		GenID:      node,
		Clock:      fakeClock,
		BillingCfg: holder,
	})
	aggregator := alertssvc.NewService(alertssvc.Params{
		DB:         dbConn,
		Log:        log,
		Clock:      fakeClock,
		BillingCfg: holder,
	})

	sched, err := New(Params{
		Log:        log,
		Clock:      fakeClock,
		LateFeeSvc: applier,
		AlertCache: alertssvc.NewSummaryCache(aggregator),
		Config:     cfg,
	})
	require.NoError(t, err)
	return &schedulerFixture{scheduler: sched, db: dbConn, node: node, clock: fakeClock}
}

func (f *schedulerFixture) createOverdueInvoice(t *testing.T) invoicedomain.Invoice {
	t.Helper()
	now := f.clock.Now()
	finalized := now.Add(-30 * 24 * time.Hour)
	due := now.Add(-24 * time.Hour)
	id := f.node.Generate()
	number := fmt.Sprintf("BBB-2405-%d", id.Int64())
	invoice := invoicedomain.Invoice{
		ID:          id,
		OrgID:       f.node.Generate(),
		Number:      &number,
		SourceKind:  sourcedomain.KindMilestone,
		SourceID:    f.node.Generate(),
		Status:      invoicedomain.InvoiceStatusOverdue,
		TotalAmount: decimal.NewFromInt(100),
		IssueDate:   finalized,
		LogicalDate: finalized,
		DueAt:       &due,
		FinalizedAt: &finalized,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, f.db.Create(&invoice).Error)
	return invoice
}

func TestRunOnce(t *testing.T) {
	f := setupScheduler(t, Config{})
	invoice := f.createOverdueInvoice(t)

	require.NoError(t, f.scheduler.RunOnce(context.Background()))

	var count int64
	require.NoError(t, f.db.Model(&invoicedomain.LineItem{}).
		Where("invoice_id = ? AND kind = ?", invoice.ID, invoicedomain.LineItemKindLateFee).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// A second run is a no-op thanks to job idempotence.
	require.NoError(t, f.scheduler.RunOnce(context.Background()))
	require.NoError(t, f.db.Model(&invoicedomain.LineItem{}).
		Where("invoice_id = ? AND kind = ?", invoice.ID, invoicedomain.LineItemKindLateFee).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRunOnceRespectsEnabledJobs(t *testing.T) {
	f := setupScheduler(t, Config{EnabledJobs: []string{jobAlertsRefresh}})
	invoice := f.createOverdueInvoice(t)

	require.NoError(t, f.scheduler.RunOnce(context.Background()))

	var count int64
	require.NoError(t, f.db.Model(&invoicedomain.LineItem{}).
		Where("invoice_id = ?", invoice.ID).
		Count(&count).Error)
	assert.Zero(t, count, "late fee job should not have run")
}

func TestAlertsRefreshJobReportsCount(t *testing.T) {
	f := setupScheduler(t, Config{})
	f.createOverdueInvoice(t)

	affected, err := f.scheduler.AlertsRefreshJob(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, affected)
}

func TestRunJobCarriesSystemActor(t *testing.T) {
	f := setupScheduler(t, Config{})

	var actor orgcontext.Actor
	err := f.scheduler.runJob(context.Background(), "noop", func(ctx context.Context) (int, error) {
		actor, _ = orgcontext.ActorFromContext(ctx)
		return 0, nil
	})
	require.NoError(t, err)
	assert.Equal(t, orgcontext.Actor{Type: "system", ID: "scheduler"}, actor)
}

func TestNewRejectsMissingDeps(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, time.Hour, cfg.RunInterval)
	assert.Equal(t, 30*time.Second, cfg.JobTimeout)
	assert.Equal(t, 5*time.Minute, cfg.LockTTL)
}
