package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	timesheetdomain "github.com/clearhour/clearhour/internal/timesheet/domain"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTimesheetService(t *testing.T) (timesheetdomain.Aggregator, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dbConn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&timesheetdomain.TimeEntry{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{DB: dbConn, Log: zap.NewNop()})
	return svc, dbConn, node
}

func TestTotals(t *testing.T) {
	svc, dbConn, node := setupTimesheetService(t)
	sourceID := node.Generate()
	orgID := node.Generate()
	nonBillable := false

	entries := []timesheetdomain.TimeEntry{
		{ID: node.Generate(), OrgID: orgID, SourceKind: timesheetdomain.SourceKindMilestone, SourceID: sourceID, EntryDate: time.Now(), Hours: decimal.NewFromFloat(2.5)},
		{ID: node.Generate(), OrgID: orgID, SourceKind: timesheetdomain.SourceKindMilestone, SourceID: sourceID, EntryDate: time.Now(), Hours: decimal.NewFromFloat(1.0), Billable: &nonBillable},
		{ID: node.Generate(), OrgID: orgID, SourceKind: timesheetdomain.SourceKindMilestone, SourceID: sourceID, EntryDate: time.Now(), Hours: decimal.NewFromFloat(3.0)},
	}
	for i := range entries {
		require.NoError(t, dbConn.Create(&entries[i]).Error)
	}

	totals, err := svc.Totals(context.Background(), timesheetdomain.SourceKindMilestone, sourceID)
	require.NoError(t, err)
	assert.True(t, totals.Billable.Equal(decimal.NewFromFloat(5.5)), "billable %s", totals.Billable)
	assert.True(t, totals.NonBillable.Equal(decimal.NewFromFloat(1.0)), "non-billable %s", totals.NonBillable)
	assert.True(t, totals.Total.Equal(decimal.NewFromFloat(6.5)), "total %s", totals.Total)
	assert.Equal(t, 3, totals.EntryCount)
}

func TestCollectScopedToSource(t *testing.T) {
	svc, dbConn, node := setupTimesheetService(t)
	orgID := node.Generate()
	milestoneID := node.Generate()
	otherID := node.Generate()

	require.NoError(t, dbConn.Create(&timesheetdomain.TimeEntry{
		ID: node.Generate(), OrgID: orgID,
		SourceKind: timesheetdomain.SourceKindMilestone, SourceID: milestoneID,
		EntryDate: time.Now(), Hours: decimal.NewFromFloat(4),
	}).Error)
	require.NoError(t, dbConn.Create(&timesheetdomain.TimeEntry{
		ID: node.Generate(), OrgID: orgID,
		SourceKind: timesheetdomain.SourceKindServiceRequest, SourceID: otherID,
		EntryDate: time.Now(), Hours: decimal.NewFromFloat(9),
	}).Error)

	entries, err := svc.Collect(context.Background(), timesheetdomain.SourceKindMilestone, milestoneID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, milestoneID, entries[0].SourceID)
}

func TestTotalsEmptySource(t *testing.T) {
	svc, _, node := setupTimesheetService(t)

	totals, err := svc.Totals(context.Background(), timesheetdomain.SourceKindMonthlyReport, node.Generate())
	require.NoError(t, err)
	assert.True(t, totals.Total.IsZero())
	assert.Equal(t, 0, totals.EntryCount)
}
