// Package domain contains the issued-reference registry.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// EntityType selects which numbered entity a reference belongs to.
type EntityType string

const (
	EntityTypeInvoice        EntityType = "invoice"
	EntityTypeReport         EntityType = "monthly_report"
	EntityTypeServiceRequest EntityType = "service_request"
)

// ReferenceNumber records every issued number. The unique index on the
// composed value is the cross-process backstop against double issue.
type ReferenceNumber struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	OrgID      snowflake.ID `gorm:"not null;index"`
	EntityType EntityType   `gorm:"type:text;not null"`
	Prefix     string       `gorm:"type:text;not null;index:ix_reference_numbers_scope"`
	YYMM       string       `gorm:"type:char(4);not null;index:ix_reference_numbers_scope;column:yymm"`
	Sequence   int          `gorm:"not null"`
	Value      string       `gorm:"type:text;not null;uniqueIndex:ux_reference_numbers_value"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ReferenceNumber) TableName() string { return "reference_numbers" }
