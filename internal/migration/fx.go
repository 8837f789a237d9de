package migration

import (
	accountdomain "github.com/boostlane/boostlane/internal/account/domain"
	campaigndomain "github.com/boostlane/boostlane/internal/campaign/domain"
	"github.com/boostlane/boostlane/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// golang-migrate is wired for postgres; other dialects are
			// dev/test setups where AutoMigrate is sufficient.
			return conn.AutoMigrate(
				&accountdomain.Account{},
				&campaigndomain.Campaign{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
