package user

import (
	"github.com/sprintline/sprintline/internal/user/repository"
	"github.com/sprintline/sprintline/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
