package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert seeds one day row. An existing (user, day) row is a
	// no-op, not an error, so an initialization retry never aborts the
	// surrounding transaction.
	Insert(ctx context.Context, db *gorm.DB, progress *DayProgress) error
	Update(ctx context.Context, db *gorm.DB, progress *DayProgress) error
	FindByUserAndDay(ctx context.Context, db *gorm.DB, userID snowflake.ID, day int) (*DayProgress, error)
	// FindByUserAndDayForUpdate row-locks the result until the
	// transaction ends. Mutating paths read through this so two flag
	// marks on the same day cannot clobber each other.
	FindByUserAndDayForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID, day int) (*DayProgress, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]DayProgress, error)
	CountByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, error)
}
