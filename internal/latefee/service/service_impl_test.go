package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/clearhour/clearhour/internal/clock"
	"github.com/clearhour/clearhour/internal/config"
	invoicedomain "github.com/clearhour/clearhour/internal/invoice/domain"
	latefeedomain "github.com/clearhour/clearhour/internal/latefee/domain"
	paymentdomain "github.com/clearhour/clearhour/internal/payment/domain"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type applierFixture struct {
	applier latefeedomain.Applier
	db      *gorm.DB
	node    *snowflake.Node
	clock   *clock.FakeClock
}

func setupApplier(t *testing.T, billing config.BillingConfig) *applierFixture {
	t.Helper()

	dbConn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&invoicedomain.Invoice{}, &invoicedomain.LineItem{}, &paymentdomain.Payment{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	holder, err := config.NewStaticBillingConfigHolder(billing)
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC))
	applier := NewService(Params{
		DB:         dbConn,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fakeClock,
		BillingCfg: holder,
	})
	return &applierFixture{applier: applier, db: dbConn, node: node, clock: fakeClock}
}

func (f *applierFixture) createInvoice(t *testing.T, total float64, dueOffset time.Duration, mutate func(*invoicedomain.Invoice)) invoicedomain.Invoice {
	t.Helper()
	now := f.clock.Now()
	finalized := now.Add(-30 * 24 * time.Hour)
	due := now.Add(dueOffset)
	id := f.node.Generate()
	number := fmt.Sprintf("BBB-2405-%d", id.Int64())
	invoice := invoicedomain.Invoice{
		ID:          id,
		OrgID:       f.node.Generate(),
		Number:      &number,
		Status:      invoicedomain.InvoiceStatusOverdue,
		TotalAmount: decimal.NewFromFloat(total),
		IssueDate:   finalized,
		LogicalDate: finalized,
		DueAt:       &due,
		FinalizedAt: &finalized,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if mutate != nil {
		mutate(&invoice)
	}
	require.NoError(t, f.db.Create(&invoice).Error)
	return invoice
}

func TestAddLateFeeFixed(t *testing.T) {
	f := setupApplier(t, config.DefaultBillingConfig())
	ctx := context.Background()
	invoice := f.createInvoice(t, 100.00, -24*time.Hour, nil)

	item, err := f.applier.AddLateFee(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.LineItemKindLateFee, item.Kind)
	assert.Equal(t, "Late payment fee", item.Description)
	assert.True(t, item.Amount.Equal(decimal.NewFromFloat(25.00)), "fee %s", item.Amount)
	assert.True(t, item.Hours.IsZero())
	assert.True(t, item.Rate.IsZero())

	var reloaded invoicedomain.Invoice
	require.NoError(t, f.db.First(&reloaded, "id = ?", invoice.ID).Error)
	assert.True(t, reloaded.TotalAmount.Equal(decimal.NewFromFloat(125.00)), "total %s", reloaded.TotalAmount)
	assert.Equal(t, invoicedomain.InvoiceStatusOverdue, reloaded.Status)
}

func TestAddLateFeePercent(t *testing.T) {
	billing := config.DefaultBillingConfig()
	billing.LateFee = config.LateFeeConfig{Kind: config.LateFeePercent, Percent: 5}
	f := setupApplier(t, billing)
	invoice := f.createInvoice(t, 250.00, -24*time.Hour, nil)

	item, err := f.applier.AddLateFee(context.Background(), invoice.ID)
	require.NoError(t, err)
	assert.True(t, item.Amount.Equal(decimal.NewFromFloat(12.50)), "fee %s", item.Amount)
}

func TestAddLateFeeTwiceFails(t *testing.T) {
	f := setupApplier(t, config.DefaultBillingConfig())
	ctx := context.Background()
	invoice := f.createInvoice(t, 100.00, -24*time.Hour, nil)

	_, err := f.applier.AddLateFee(ctx, invoice.ID)
	require.NoError(t, err)

	_, err = f.applier.AddLateFee(ctx, invoice.ID)
	assert.ErrorIs(t, err, latefeedomain.ErrAlreadyApplied)

	// Still exactly one fee line.
	var count int64
	require.NoError(t, f.db.Model(&invoicedomain.LineItem{}).
		Where("invoice_id = ? AND kind = ?", invoice.ID, invoicedomain.LineItemKindLateFee).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAddLateFeeRejectsIneligible(t *testing.T) {
	f := setupApplier(t, config.DefaultBillingConfig())
	ctx := context.Background()

	notDue := f.createInvoice(t, 100.00, 48*time.Hour, func(inv *invoicedomain.Invoice) {
		inv.Status = invoicedomain.InvoiceStatusPending
	})
	_, err := f.applier.AddLateFee(ctx, notDue.ID)
	assert.ErrorIs(t, err, latefeedomain.ErrNotOverdue)

	cancelledAt := f.clock.Now()
	cancelled := f.createInvoice(t, 100.00, -24*time.Hour, func(inv *invoicedomain.Invoice) {
		inv.Status = invoicedomain.InvoiceStatusCancelled
		inv.CancelledAt = &cancelledAt
	})
	_, err = f.applier.AddLateFee(ctx, cancelled.ID)
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceCancelled)

	draft := f.createInvoice(t, 100.00, -24*time.Hour, func(inv *invoicedomain.Invoice) {
		inv.Status = invoicedomain.InvoiceStatusDraft
		inv.Number = nil
		inv.FinalizedAt = nil
	})
	_, err = f.applier.AddLateFee(ctx, draft.ID)
	assert.ErrorIs(t, err, latefeedomain.ErrNotOverdue)

	_, err = f.applier.AddLateFee(ctx, f.node.Generate())
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceNotFound)
}

func TestAddLateFeePaidInvoiceNotOverdue(t *testing.T) {
	f := setupApplier(t, config.DefaultBillingConfig())
	ctx := context.Background()

	// Stored status lags: the row says OVERDUE but the payments cover
	// the balance, so deriving the status blocks the fee.
	invoice := f.createInvoice(t, 100.00, -24*time.Hour, nil)
	require.NoError(t, f.db.Create(&paymentdomain.Payment{
		ID:         f.node.Generate(),
		OrgID:      invoice.OrgID,
		InvoiceID:  invoice.ID,
		Amount:     decimal.NewFromInt(100),
		Method:     paymentdomain.MethodBankTransfer,
		RecordedAt: f.clock.Now(),
		CreatedAt:  f.clock.Now(),
	}).Error)

	_, err := f.applier.AddLateFee(ctx, invoice.ID)
	assert.ErrorIs(t, err, latefeedomain.ErrNotOverdue)
}

func TestApplyDue(t *testing.T) {
	f := setupApplier(t, config.DefaultBillingConfig())
	ctx := context.Background()

	overdueA := f.createInvoice(t, 100.00, -24*time.Hour, nil)
	overdueB := f.createInvoice(t, 200.00, -72*time.Hour, nil)
	f.createInvoice(t, 300.00, 48*time.Hour, func(inv *invoicedomain.Invoice) {
		inv.Status = invoicedomain.InvoiceStatusPending
	})
	paidAt := f.clock.Now()
	f.createInvoice(t, 400.00, -24*time.Hour, func(inv *invoicedomain.Invoice) {
		inv.Status = invoicedomain.InvoiceStatusPaid
		inv.PaidAt = &paidAt
	})

	applied, err := f.applier.ApplyDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	for _, id := range []snowflake.ID{overdueA.ID, overdueB.ID} {
		var count int64
		require.NoError(t, f.db.Model(&invoicedomain.LineItem{}).
			Where("invoice_id = ? AND kind = ?", id, invoicedomain.LineItemKindLateFee).
			Count(&count).Error)
		assert.EqualValues(t, 1, count, "invoice %d", id)
	}

	// Re-running charges nothing new.
	applied, err = f.applier.ApplyDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
}
