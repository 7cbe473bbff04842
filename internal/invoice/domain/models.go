// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	sourcedomain "github.com/clearhour/clearhour/internal/billingsource/domain"
	timesheetdomain "github.com/clearhour/clearhour/internal/timesheet/domain"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states. Statuses are
// derived from payment state, never set arbitrarily; CANCELLED is the
// only externally driven terminal state.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusPartial   InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// Invoice represents a generated invoice.
type Invoice struct {
	ID         snowflake.ID      `gorm:"primaryKey"`
	OrgID      snowflake.ID      `gorm:"not null;index"`
	Number     *string           `gorm:"type:text;uniqueIndex:ux_invoices_number"`
	SourceKind sourcedomain.Kind `gorm:"type:text;not null;index:ix_invoices_source"`
	SourceID   snowflake.ID      `gorm:"not null;index:ix_invoices_source"`
	Status     InvoiceStatus     `gorm:"type:text;not null;default:'DRAFT'"`
	// TotalAmount always equals the sum of the line item amounts.
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	IssueDate   time.Time       `gorm:"not null"`
	// LogicalDate scopes the reference number month; it comes from the
	// source's billing date, not from creation time.
	LogicalDate time.Time         `gorm:"not null"`
	DueAt       *time.Time        `gorm:"index"`
	FinalizedAt *time.Time        `gorm:""`
	CancelledAt *time.Time        `gorm:""`
	PaidAt      *time.Time        `gorm:""`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// LineItemKind distinguishes billed hours from appended fees.
type LineItemKind string

const (
	LineItemKindHours   LineItemKind = "hours"
	LineItemKindLateFee LineItemKind = "late_fee"
)

// LineItem represents one billed component of an invoice. Hours-based
// items satisfy amount = hours x rate; fee items carry a fixed amount.
type LineItem struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	OrgID       snowflake.ID    `gorm:"not null;index"`
	InvoiceID   snowflake.ID    `gorm:"not null;index"`
	Kind        LineItemKind    `gorm:"type:text;not null;default:'hours'"`
	Description string          `gorm:"type:text"`
	Hours       decimal.Decimal `gorm:"type:numeric(8,2);not null;default:0"`
	Rate        decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	// SourceKind/SourceID reference the billed entity (milestone,
	// service request or monthly report); both are nil for fee items.
	SourceKind *timesheetdomain.SourceKind `gorm:"type:text"`
	SourceID   *snowflake.ID               `gorm:""`
	CreatedAt  time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LineItem) TableName() string { return "line_items" }

// DeriveStatus computes the lifecycle state from the invoice record and
// the amount paid so far. It is the single source of truth; callers
// persist whatever it returns.
func DeriveStatus(invoice Invoice, paid decimal.Decimal, now time.Time) InvoiceStatus {
	switch {
	case invoice.CancelledAt != nil:
		return InvoiceStatusCancelled
	case invoice.FinalizedAt == nil:
		return InvoiceStatusDraft
	case paid.GreaterThanOrEqual(invoice.TotalAmount):
		return InvoiceStatusPaid
	case invoice.DueAt != nil && invoice.DueAt.Before(now):
		return InvoiceStatusOverdue
	case paid.IsPositive():
		return InvoiceStatusPartial
	default:
		return InvoiceStatusPending
	}
}

// OpenStatuses are the states an unpaid, collectible invoice can hold.
func OpenStatuses() []InvoiceStatus {
	return []InvoiceStatus{InvoiceStatusPending, InvoiceStatusPartial, InvoiceStatusOverdue}
}
