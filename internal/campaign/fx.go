package campaign

import (
	"github.com/boostlane/boostlane/internal/campaign/repository"
	"github.com/boostlane/boostlane/internal/campaign/service"
	"go.uber.org/fx"
)

var Module = fx.Module("campaign",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
