package service

import (
	"context"
	"strconv"
	"time"

	alertsdomain "github.com/clearhour/clearhour/internal/alerts/domain"
	"github.com/clearhour/clearhour/internal/cache"
	"github.com/clearhour/clearhour/internal/orgcontext"
)

const summaryTTL = 60 * time.Second

// SummaryCache serves alert summaries from a short-lived cache so badge
// rendering does not hit the database on every page view. The
// aggregator itself stays cache-free; freshness lives here.
type SummaryCache struct {
	aggregator alertsdomain.Aggregator
	cache      cache.Cache[string, alertsdomain.Summary]
}

func NewSummaryCache(aggregator alertsdomain.Aggregator) *SummaryCache {
	return &SummaryCache{
		aggregator: aggregator,
		cache:      cache.NewTTLCache[string, alertsdomain.Summary](),
	}
}

// Summary returns the cached summary for the calling organization,
// recomputing on miss.
func (c *SummaryCache) Summary(ctx context.Context) (alertsdomain.Summary, error) {
	key := cacheKey(ctx)
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}
	summary, err := c.aggregator.Summary(ctx)
	if err != nil {
		return alertsdomain.Summary{}, err
	}
	c.cache.Set(key, summary, summaryTTL)
	return summary, nil
}

// Refresh recomputes and stores the summary regardless of cache state.
// The scheduler calls this on its alert cadence.
func (c *SummaryCache) Refresh(ctx context.Context) (alertsdomain.Summary, error) {
	summary, err := c.aggregator.Summary(ctx)
	if err != nil {
		return alertsdomain.Summary{}, err
	}
	c.cache.Set(cacheKey(ctx), summary, summaryTTL)
	return summary, nil
}

// Invalidate drops the cached summary for the calling organization.
func (c *SummaryCache) Invalidate(ctx context.Context) {
	c.cache.Delete(cacheKey(ctx))
}

func cacheKey(ctx context.Context) string {
	if orgID, ok := orgcontext.OrgIDFromContext(ctx); ok && orgID != 0 {
		return "alerts:summary:" + strconv.FormatInt(orgID.Int64(), 10)
	}
	return "alerts:summary:all"
}
