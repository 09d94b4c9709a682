package progress

import (
	enrollmentdomain "github.com/sprintline/sprintline/internal/enrollment/domain"
	progressdomain "github.com/sprintline/sprintline/internal/progress/domain"
	"github.com/sprintline/sprintline/internal/progress/repository"
	"github.com/sprintline/sprintline/internal/progress/service"
	"go.uber.org/fx"
)

var Module = fx.Module("progress.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	// Enrollment activation seeds day rows through this binding without
	// importing the progress package.
	fx.Provide(func(svc progressdomain.Service) enrollmentdomain.ProgressInitializer {
		return svc
	}),
)
