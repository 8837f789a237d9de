package scheduler

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Provide(NewController),
	fx.Invoke(StartController),
)

func StartController(lc fx.Lifecycle, cfg Config, controller *Controller) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return controller.Start(cfg.RunInterval)
		},
		OnStop: func(context.Context) error {
			return controller.Stop()
		},
	})
}
