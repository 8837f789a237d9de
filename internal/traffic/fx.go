package traffic

import (
	"github.com/boostlane/boostlane/internal/config"
	"github.com/boostlane/boostlane/internal/traffic/adapters"
	_ "github.com/boostlane/boostlane/internal/traffic/adapters/clickmill"
	"github.com/boostlane/boostlane/internal/traffic/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("traffic",
	fx.Provide(func(cfg config.Config) (domain.Vendor, error) {
		return adapters.New(cfg.Vendor)
	}),
)
