package latefee

import (
	"github.com/clearhour/clearhour/internal/latefee/service"
	"go.uber.org/fx"
)

var Module = fx.Module("latefee.service",
	fx.Provide(service.NewService),
)
