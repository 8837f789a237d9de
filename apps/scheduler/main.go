// Headless scheduler deployment: reconciliation and archive sweep
// without the HTTP API.
package main

import (
	"github.com/boostlane/boostlane/internal/account"
	"github.com/boostlane/boostlane/internal/campaign"
	"github.com/boostlane/boostlane/internal/clock"
	"github.com/boostlane/boostlane/internal/config"
	"github.com/boostlane/boostlane/internal/migration"
	"github.com/boostlane/boostlane/internal/observability"
	"github.com/boostlane/boostlane/internal/reconcile"
	"github.com/boostlane/boostlane/internal/scheduler"
	"github.com/boostlane/boostlane/internal/traffic"
	"github.com/boostlane/boostlane/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domain services required by the scheduler
		account.Module,
		campaign.Module,
		traffic.Module,
		reconcile.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
