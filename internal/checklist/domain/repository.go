package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert records the completion. An already-present (user, day,
	// item) row is a no-op, not an error, so concurrent inserts and
	// replays never abort the surrounding transaction.
	Insert(ctx context.Context, db *gorm.DB, completion *ChecklistCompletion) error
	// Delete removes the completion row and reports whether one existed.
	Delete(ctx context.Context, db *gorm.DB, userID snowflake.ID, day int, itemID string) (bool, error)
	Exists(ctx context.Context, db *gorm.DB, userID snowflake.ID, day int, itemID string) (bool, error)
	ListItemIDs(ctx context.Context, db *gorm.DB, userID snowflake.ID, day int) ([]string, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]ChecklistCompletion, error)
	CountByDay(ctx context.Context, db *gorm.DB, userID snowflake.ID, day int) (int64, error)
}
