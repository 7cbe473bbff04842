package service

import (
	"context"
	"testing"
	"time"

	alertsdomain "github.com/clearhour/clearhour/internal/alerts/domain"
	invoicedomain "github.com/clearhour/clearhour/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryCacheServesStaleUntilRefresh(t *testing.T) {
	f := setupAlerts(t)
	cache := NewSummaryCache(f.aggregator)
	ctx := context.Background()

	first, err := cache.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, first.TotalAlertCount())

	// A new alert appears but the cached summary does not see it yet.
	f.createInvoice(t, invoicedomain.InvoiceStatusOverdue, -24*time.Hour)

	cached, err := cache.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, cached.TotalAlertCount())

	refreshed, err := cache.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.TotalAlertCount())

	after, err := cache.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, after.TotalAlertCount())
}

func TestSummaryCacheInvalidate(t *testing.T) {
	f := setupAlerts(t)
	cache := NewSummaryCache(f.aggregator)
	ctx := context.Background()

	_, err := cache.Summary(ctx)
	require.NoError(t, err)

	f.createInvoice(t, invoicedomain.InvoiceStatusOverdue, -24*time.Hour)
	cache.Invalidate(ctx)

	var summary alertsdomain.Summary
	summary, err = cache.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalAlertCount())
}
