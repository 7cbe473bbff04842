// Package domain contains persistence models for recorded work time.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// SourceKind names the entity a time entry is recorded against.
type SourceKind string

const (
	SourceKindMilestone      SourceKind = "milestone"
	SourceKindServiceRequest SourceKind = "service_request"
	SourceKindMonthlyReport  SourceKind = "monthly_report"
)

// TimeEntry is a recorded unit of work. Entries are written by the
// time-tracking surface and read-only to the billing engine, except for
// the line-item binding set when an entry is invoiced.
type TimeEntry struct {
	ID         snowflake.ID    `gorm:"primaryKey"`
	OrgID      snowflake.ID    `gorm:"not null;index"`
	SourceKind SourceKind      `gorm:"type:text;not null;index:ix_time_entries_source"`
	SourceID   snowflake.ID    `gorm:"not null;index:ix_time_entries_source"`
	EntryDate  time.Time       `gorm:"not null"`
	Hours      decimal.Decimal `gorm:"type:numeric(8,2);not null"`
	// Billable is a tri-state: only an explicit false counts as
	// non-billable, absent means billable.
	Billable   *bool         `gorm:""`
	LineItemID *snowflake.ID `gorm:"index"`
	Note       string        `gorm:"type:text"`
	CreatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TimeEntry) TableName() string { return "time_entries" }

// IsBillable applies the billable-unless-marked-otherwise default.
func (e TimeEntry) IsBillable() bool {
	return e.Billable == nil || *e.Billable
}

// Totals are exact decimal sums over a set of time entries.
type Totals struct {
	Billable    decimal.Decimal
	NonBillable decimal.Decimal
	Total       decimal.Decimal
	EntryCount  int
}

// Sum aggregates entries without rounding.
func Sum(entries []TimeEntry) Totals {
	totals := Totals{
		Billable:    decimal.Zero,
		NonBillable: decimal.Zero,
		Total:       decimal.Zero,
	}
	for _, entry := range entries {
		if entry.IsBillable() {
			totals.Billable = totals.Billable.Add(entry.Hours)
		} else {
			totals.NonBillable = totals.NonBillable.Add(entry.Hours)
		}
		totals.Total = totals.Total.Add(entry.Hours)
		totals.EntryCount++
	}
	return totals
}
