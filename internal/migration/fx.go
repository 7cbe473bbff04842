package migration

import (
	alertsdomain "github.com/clearhour/clearhour/internal/alerts/domain"
	sourcedomain "github.com/clearhour/clearhour/internal/billingsource/domain"
	"github.com/clearhour/clearhour/internal/config"
	invoicedomain "github.com/clearhour/clearhour/internal/invoice/domain"
	orgdomain "github.com/clearhour/clearhour/internal/organization/domain"
	paymentdomain "github.com/clearhour/clearhour/internal/payment/domain"
	referencedomain "github.com/clearhour/clearhour/internal/reference/domain"
	timesheetdomain "github.com/clearhour/clearhour/internal/timesheet/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// Non-postgres targets (sqlite for local/dev) use gorm's
		// schema sync instead of versioned SQL.
		return AutoMigrate(conn)
	}),
)

// AutoMigrate syncs the billing schema through gorm. Tests use this
// against sqlite.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&orgdomain.Organization{},
		&sourcedomain.Project{},
		&sourcedomain.Milestone{},
		&sourcedomain.MonthlyReport{},
		&sourcedomain.ServiceRequest{},
		&alertsdomain.Task{},
		&timesheetdomain.TimeEntry{},
		&referencedomain.ReferenceNumber{},
		&invoicedomain.Invoice{},
		&invoicedomain.LineItem{},
		&paymentdomain.Payment{},
	)
}
