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
	"github.com/clearhour/clearhour/internal/observability"
	"github.com/clearhour/clearhour/internal/payment"
	"github.com/clearhour/clearhour/internal/providers/notify"
	"github.com/clearhour/clearhour/internal/reference"
	"github.com/clearhour/clearhour/internal/scheduler"
	"github.com/clearhour/clearhour/internal/timesheet"
	"github.com/clearhour/clearhour/pkg/db"
	"go.uber.org/fx"
)

// The standalone scheduler binary. The run loop starts from
// scheduler.Module's lifecycle hook; deployments running this binary
// alongside the portal should set SCHEDULER_ENABLED=false there.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Domain services required by the jobs
		scheduler.Module,
		reference.Module,
		timesheet.Module,
		billingsource.Module,
		invoice.Module,
		payment.Module,
		latefee.Module,
		alerts.Module,
		notify.Module,

		// No server module and no PDF rendering here.
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
