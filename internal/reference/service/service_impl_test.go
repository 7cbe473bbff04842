package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/clearhour/clearhour/internal/clock"
	"github.com/clearhour/clearhour/internal/config"
	referencedomain "github.com/clearhour/clearhour/internal/reference/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupReferenceService(t *testing.T) referencedomain.Generator {
	t.Helper()

	dbConn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&referencedomain.ReferenceNumber{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	holder, err := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
	require.NoError(t, err)

	return NewService(Params{
		DB:         dbConn,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clock.NewFakeClock(time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC)),
		BillingCfg: holder,
	})
}

func TestGenerateSequenceIncrements(t *testing.T) {
	svc := setupReferenceService(t)
	ctx := context.Background()
	logical := time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)

	first, err := svc.Generate(ctx, referencedomain.EntityTypeInvoice, logical)
	require.NoError(t, err)
	assert.Equal(t, "BBB-2406-001", first)

	second, err := svc.Generate(ctx, referencedomain.EntityTypeInvoice, logical)
	require.NoError(t, err)
	assert.Equal(t, "BBB-2406-002", second)
}

func TestGenerateScopedByMonthAndPrefix(t *testing.T) {
	svc := setupReferenceService(t)
	ctx := context.Background()

	june, err := svc.Generate(ctx, referencedomain.EntityTypeInvoice, time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "BBB-2406-001", june)

	// A new month restarts the sequence.
	july, err := svc.Generate(ctx, referencedomain.EntityTypeInvoice, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "BBB-2407-001", july)

	// A different entity type has its own prefix scope.
	report, err := svc.Generate(ctx, referencedomain.EntityTypeReport, time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "RR-2406-001", report)
}

func TestGenerateDefaultsToClockDate(t *testing.T) {
	svc := setupReferenceService(t)

	value, err := svc.Generate(context.Background(), referencedomain.EntityTypeServiceRequest, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "SR-2406-001", value)
}

func TestGenerateRoundTripsThroughParse(t *testing.T) {
	svc := setupReferenceService(t)

	value, err := svc.Generate(context.Background(), referencedomain.EntityTypeInvoice, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	parsed, err := referencedomain.Parse(value)
	require.NoError(t, err)
	assert.Equal(t, "BBB", parsed.Prefix)
	assert.Equal(t, "2501", parsed.YYMM)
	assert.Equal(t, 1, parsed.Sequence)
}

func TestGenerateFromString(t *testing.T) {
	svc := setupReferenceService(t)
	ctx := context.Background()

	value, err := svc.GenerateFromString(ctx, referencedomain.EntityTypeInvoice, "2024-03-09")
	require.NoError(t, err)
	assert.Equal(t, "BBB-2403-001", value)

	_, err = svc.GenerateFromString(ctx, referencedomain.EntityTypeInvoice, "not-a-date")
	assert.ErrorIs(t, err, referencedomain.ErrInvalidDate)
}

func TestGenerateUnknownEntityType(t *testing.T) {
	svc := setupReferenceService(t)

	_, err := svc.Generate(context.Background(), referencedomain.EntityType("bogus"), time.Now())
	assert.ErrorIs(t, err, referencedomain.ErrUnknownEntityType)
}

func TestGenerateConcurrentCallsStayDistinct(t *testing.T) {
	svc := setupReferenceService(t)
	logical := time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)

	const workers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		values = make(map[string]struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := svc.Generate(context.Background(), referencedomain.EntityTypeInvoice, logical)
			assert.NoError(t, err)
			mu.Lock()
			values[value] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, values, workers)
}
