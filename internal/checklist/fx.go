package checklist

import (
	"github.com/sprintline/sprintline/internal/checklist/repository"
	"github.com/sprintline/sprintline/internal/checklist/service"
	"go.uber.org/fx"
)

var Module = fx.Module("checklist.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
