package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert reports whether the row was created. A conflicting
	// enrollment (same session id or same user and cohort) leaves the
	// table untouched and returns false, so the losing racer can
	// reread inside the same transaction.
	Insert(ctx context.Context, db *gorm.DB, enrollment *Enrollment) (bool, error)
	Update(ctx context.Context, db *gorm.DB, enrollment *Enrollment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Enrollment, error)
	// The ForUpdate variants row-lock the result until the transaction
	// ends; status transitions read through them.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Enrollment, error)
	FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*Enrollment, error)
	FindBySessionIDForUpdate(ctx context.Context, db *gorm.DB, sessionID string) (*Enrollment, error)
	FindByUserAndCohort(ctx context.Context, db *gorm.DB, userID, cohortID snowflake.ID) (*Enrollment, error)
	FindByUserAndCohortForUpdate(ctx context.Context, db *gorm.DB, userID, cohortID snowflake.ID) (*Enrollment, error)
	// FindCurrentByUser returns the user's enrollment in {active, completed},
	// if any. There is at most one.
	FindCurrentByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Enrollment, error)
	FindCurrentByUserForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Enrollment, error)
	// ExpireCredits flips completed enrollments whose credit window has
	// closed to expired, returning the number of rows swept.
	ExpireCredits(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}

type CohortRepository interface {
	Insert(ctx context.Context, db *gorm.DB, cohort *Cohort) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Cohort, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Cohort, error)
}

type PendingPurchaseRepository interface {
	// Insert reports whether the row was created; a session id that
	// already exists returns false without error.
	Insert(ctx context.Context, db *gorm.DB, purchase *PendingPurchase) (bool, error)
	Update(ctx context.Context, db *gorm.DB, purchase *PendingPurchase) error
	FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*PendingPurchase, error)
	FindBySessionIDForUpdate(ctx context.Context, db *gorm.DB, sessionID string) (*PendingPurchase, error)
	FindPendingByEmail(ctx context.Context, db *gorm.DB, email string) (*PendingPurchase, error)
	FindPendingByEmailForUpdate(ctx context.Context, db *gorm.DB, email string) (*PendingPurchase, error)
	FindCompletedByEmail(ctx context.Context, db *gorm.DB, email string) (*PendingPurchase, error)
	// ExpireStale flips pending rows created before the cutoff to expired,
	// returning the number of rows swept.
	ExpireStale(ctx context.Context, db *gorm.DB, cutoff time.Time, now time.Time) (int64, error)
}
