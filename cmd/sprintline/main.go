package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/sprintline/sprintline/internal/clock"
	"github.com/sprintline/sprintline/internal/config"
	"github.com/sprintline/sprintline/internal/migration"
	"github.com/sprintline/sprintline/internal/observability"
	"github.com/sprintline/sprintline/internal/scheduler"
	"github.com/sprintline/sprintline/internal/server"
	"github.com/sprintline/sprintline/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		migration.Module,
		server.Module,
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
