package account

import (
	"github.com/boostlane/boostlane/internal/account/repository"
	"github.com/boostlane/boostlane/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
