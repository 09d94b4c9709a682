package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrProgressNotFound = errors.New("progress_not_found")
	ErrDayLocked        = errors.New("day_locked")
	ErrInvalidDay       = errors.New("invalid_day")
)

// MarkResult reports what a flag write changed.
type MarkResult struct {
	Progress        *DayProgress `json:"progress"`
	Completed       bool         `json:"completed"`
	NextDayUnlocked bool         `json:"next_day_unlocked"`
	SprintCompleted bool         `json:"sprint_completed"`
}

type Service interface {
	// InitializeForEnrollment seeds the full run of day rows in the
	// caller's transaction: day 0 available, the rest locked. Retry-safe.
	InitializeForEnrollment(ctx context.Context, tx *gorm.DB, userID, enrollmentID snowflake.ID) error

	MarkTrainingWatched(ctx context.Context, userID snowflake.ID, day int) (*MarkResult, error)
	MarkWorksheetCompleted(ctx context.Context, userID snowflake.ID, day int) (*MarkResult, error)
	MarkProgressPosted(ctx context.Context, userID snowflake.ID, day int) (*MarkResult, error)

	GetByUserAndDay(ctx context.Context, userID snowflake.ID, day int) (*DayProgress, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]DayProgress, error)
	// CurrentDay returns the day the user should be working on.
	CurrentDay(ctx context.Context, userID snowflake.ID) (int, error)
	// CurrentDayProgress returns the current day together with its full
	// row. The row is nil for accounts without day rows.
	CurrentDayProgress(ctx context.Context, userID snowflake.ID) (int, *DayProgress, error)
}
