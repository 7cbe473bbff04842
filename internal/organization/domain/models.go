package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Organization is the billing tenant. Accounts and membership live
// outside this engine; only the ID scope matters here.
type Organization struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }
