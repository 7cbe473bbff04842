// Package domain contains the entities whose accumulated time entries
// can be turned into invoices.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Milestone is a chunk of project work billed on its billing date.
type Milestone struct {
	ID                 snowflake.ID    `gorm:"primaryKey"`
	OrgID              snowflake.ID    `gorm:"not null;index"`
	ProjectID          snowflake.ID    `gorm:"not null;index"`
	Name               string          `gorm:"type:text;not null"`
	BillingDate        time.Time       `gorm:"not null"`
	FreeHoursAllowance decimal.Decimal `gorm:"type:numeric(8,2);not null;default:0"`
	HourlyRate         decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	CreatedAt          time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Milestone) TableName() string { return "milestones" }

// MonthlyReport summarizes a month of retainer work for one organization.
type MonthlyReport struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	OrgID          snowflake.ID    `gorm:"not null;index"`
	Number         *string         `gorm:"type:text"`
	PeriodStart    time.Time       `gorm:"not null"`
	PeriodEnd      time.Time       `gorm:"not null"`
	FreeHoursLimit decimal.Decimal `gorm:"type:numeric(8,2);not null;default:0"`
	HourlyRate     decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (MonthlyReport) TableName() string { return "monthly_reports" }

// ProjectStatus tracks whether a project still accumulates work.
type ProjectStatus string

const (
	ProjectStatusActive ProjectStatus = "active"
	ProjectStatusClosed ProjectStatus = "closed"
)

// Project owns milestones and service requests and provides the
// fallback hourly rate for closeout billing.
type Project struct {
	ID         snowflake.ID    `gorm:"primaryKey"`
	OrgID      snowflake.ID    `gorm:"not null;index"`
	Name       string          `gorm:"type:text;not null"`
	Status     ProjectStatus   `gorm:"type:text;not null;default:'active'"`
	HourlyRate decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Project) TableName() string { return "projects" }

// ServiceRequestStatus tracks the support request lifecycle.
type ServiceRequestStatus string

const (
	ServiceRequestStatusNew        ServiceRequestStatus = "new"
	ServiceRequestStatusInProgress ServiceRequestStatus = "in_progress"
	ServiceRequestStatusDone       ServiceRequestStatus = "done"
)

// ServiceRequest is ad-hoc work attached to a project. Its hours are
// billed through the project closeout.
type ServiceRequest struct {
	ID         snowflake.ID         `gorm:"primaryKey"`
	OrgID      snowflake.ID         `gorm:"not null;index"`
	ProjectID  snowflake.ID         `gorm:"not null;index"`
	Number     *string              `gorm:"type:text"`
	Title      string               `gorm:"type:text;not null"`
	Status     ServiceRequestStatus `gorm:"type:text;not null;default:'new'"`
	HourlyRate decimal.Decimal      `gorm:"type:numeric(10,2);not null;default:0"`
	DueAt      *time.Time           `gorm:""`
	CreatedAt  time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ServiceRequest) TableName() string { return "service_requests" }
