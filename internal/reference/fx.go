package reference

import (
	"github.com/clearhour/clearhour/internal/reference/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reference.service",
	fx.Provide(service.NewService),
)
