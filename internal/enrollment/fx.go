package enrollment

import (
	enrollmentdomain "github.com/sprintline/sprintline/internal/enrollment/domain"
	"github.com/sprintline/sprintline/internal/enrollment/repository"
	"github.com/sprintline/sprintline/internal/enrollment/service"
	userdomain "github.com/sprintline/sprintline/internal/user/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("enrollment.service",
	fx.Provide(repository.Provide),
	fx.Provide(repository.ProvideCohort),
	fx.Provide(repository.ProvidePendingPurchase),
	fx.Provide(service.NewService),
	fx.Provide(service.NewPendingPurchaseService),
	// Account creation replays pre-signup checklist state through this
	// binding without importing the enrollment package.
	fx.Provide(func(svc enrollmentdomain.PendingPurchaseService) userdomain.LocalProgressImporter {
		return svc
	}),
)
