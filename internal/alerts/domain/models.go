// Package domain contains the alert aggregation contract and the task
// entity the time-window scans run over.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TaskStatus tracks whether a task still needs attention.
type TaskStatus string

const (
	TaskStatusOpen TaskStatus = "open"
	TaskStatusDone TaskStatus = "done"
)

// Task is a project work item with an optional deadline.
type Task struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	OrgID     snowflake.ID `gorm:"not null;index"`
	ProjectID snowflake.ID `gorm:"not null;index"`
	Title     string       `gorm:"type:text;not null"`
	Status    TaskStatus   `gorm:"type:text;not null;default:'open'"`
	DueAt     *time.Time   `gorm:"index"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Task) TableName() string { return "tasks" }
