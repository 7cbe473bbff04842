package billingsource

import (
	"github.com/clearhour/clearhour/internal/billingsource/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingsource.service",
	fx.Provide(service.NewService),
)
