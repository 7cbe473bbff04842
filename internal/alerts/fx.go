package alerts

import (
	"github.com/clearhour/clearhour/internal/alerts/service"
	"go.uber.org/fx"
)

var Module = fx.Module("alerts.service",
	fx.Provide(
		service.NewService,
		service.NewSummaryCache,
	),
)
