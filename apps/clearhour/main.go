package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/clearhour/clearhour/internal/alerts"
	"github.com/clearhour/clearhour/internal/billingsource"
	"github.com/clearhour/clearhour/internal/clock"
	"github.com/clearhour/clearhour/internal/config"
	"github.com/clearhour/clearhour/internal/invoice"
	"github.com/clearhour/clearhour/internal/latefee"
	"github.com/clearhour/clearhour/internal/logger"
	"github.com/clearhour/clearhour/internal/migration"
	"github.com/clearhour/clearhour/internal/observability"
	"github.com/clearhour/clearhour/internal/payment"
	"github.com/clearhour/clearhour/internal/providers"
	"github.com/clearhour/clearhour/internal/reference"
	"github.com/clearhour/clearhour/internal/scheduler"
	"github.com/clearhour/clearhour/internal/timesheet"
	"github.com/clearhour/clearhour/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domain services
		reference.Module,
		timesheet.Module,
		billingsource.Module,
		invoice.Module,
		payment.Module,
		latefee.Module,
		alerts.Module,
		providers.Module,

		// Background jobs run in-process unless SCHEDULER_ENABLED=false
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
