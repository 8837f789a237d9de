package reconcile

import (
	"github.com/boostlane/boostlane/internal/reconcile/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconcile",
	fx.Provide(service.New),
)
