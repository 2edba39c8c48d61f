package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/numericalz/practicehub/internal/clock"
	"github.com/numericalz/practicehub/internal/migration"
	"github.com/numericalz/practicehub/internal/observability"
	"github.com/numericalz/practicehub/internal/scheduler"
	"github.com/numericalz/practicehub/internal/server"
	"github.com/numericalz/practicehub/pkg/db"
)

func main() {
	app := fx.New(
		// config.Module ships inside server.Module.
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		server.Module,
		scheduler.Module,
		migration.Module,
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
