// Package domain contains persistence models for the payment ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Method is the payment channel a payment arrived through.
type Method string

const (
	MethodCard          Method = "card"
	MethodBankTransfer  Method = "bank_transfer"
	MethodOtherTransfer Method = "other_transfer"
)

// Valid reports whether the method is one of the known channels.
func (m Method) Valid() bool {
	switch m {
	case MethodCard, MethodBankTransfer, MethodOtherTransfer:
		return true
	default:
		return false
	}
}

// Payment is one ledger row. Rows are append-only; corrections are new
// rows, never updates.
type Payment struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	OrgID     snowflake.ID `gorm:"not null;index"`
	InvoiceID snowflake.ID `gorm:"not null;index"`
	// Amount is the gross amount credited against the invoice.
	Amount decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	// Fee is the processing cost charged by the channel. It is kept for
	// reporting only and never counts toward the invoice balance.
	Fee            decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Method         Method          `gorm:"type:text;not null"`
	TransactionRef string          `gorm:"type:text"`
	RecordedAt     time.Time       `gorm:"not null;index"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }
