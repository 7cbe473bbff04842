package payment

import (
	"github.com/clearhour/clearhour/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(service.NewService),
)
