package providers

import (
	"github.com/clearhour/clearhour/internal/providers/notify"
	"github.com/clearhour/clearhour/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	notify.Module,
	pdf.Module,
)
