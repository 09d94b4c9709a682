package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	checklistdomain "github.com/sprintline/sprintline/internal/checklist/domain"
	"github.com/sprintline/sprintline/internal/config"
	enrollmentdomain "github.com/sprintline/sprintline/internal/enrollment/domain"
	progressdomain "github.com/sprintline/sprintline/internal/progress/domain"
	"github.com/sprintline/sprintline/internal/ratelimit"
	"github.com/sprintline/sprintline/internal/seed"
	userdomain "github.com/sprintline/sprintline/internal/user/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite and mysql are dev conveniences; let gorm derive
			// the schema from the models there.
			err := conn.AutoMigrate(
				&userdomain.User{},
				&enrollmentdomain.Cohort{},
				&enrollmentdomain.Enrollment{},
				&enrollmentdomain.PendingPurchase{},
				&progressdomain.DayProgress{},
				&checklistdomain.ChecklistCompletion{},
				&ratelimit.RateLimitWindow{},
			)
			if err != nil {
				return err
			}
		}

		return seed.EnsureDefaultCohort(conn, cfg)
	}),
)
