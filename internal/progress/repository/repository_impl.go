package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/sprintline/sprintline/internal/progress/domain"
	pkgdb "github.com/sprintline/sprintline/pkg/db"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, progress *domain.DayProgress) error {
	return db.WithContext(ctx).Exec(`
		INSERT INTO day_progress (
			id, user_id, enrollment_id, day, status,
			training_watched, worksheet_completed, progress_posted,
			completed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, day) DO NOTHING
	`, progress.ID, progress.UserID, progress.EnrollmentID, progress.Day, progress.Status,
		progress.TrainingWatched, progress.WorksheetCompleted, progress.ProgressPosted,
		progress.CompletedAt, progress.CreatedAt, progress.UpdatedAt).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, progress *domain.DayProgress) error {
	return db.WithContext(ctx).Exec(`
		UPDATE day_progress SET
			status = ?,
			training_watched = ?,
			worksheet_completed = ?,
			progress_posted = ?,
			completed_at = ?,
			updated_at = ?
		WHERE id = ?
	`, progress.Status, progress.TrainingWatched, progress.WorksheetCompleted,
		progress.ProgressPosted, progress.CompletedAt, progress.UpdatedAt, progress.ID).Error
}

func (r *repo) FindByUserAndDay(ctx context.Context, db *gorm.DB, userID snowflake.ID, day int) (*domain.DayProgress, error) {
	return r.findByUserAndDay(ctx, db, userID, day, "")
}

// FindByUserAndDayForUpdate locks the day row for the rest of the
// transaction before a read-decide-write sequence acts on it.
func (r *repo) FindByUserAndDayForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID, day int) (*domain.DayProgress, error) {
	return r.findByUserAndDay(ctx, db, userID, day, pkgdb.RowLockClause(db))
}

func (r *repo) findByUserAndDay(ctx context.Context, db *gorm.DB, userID snowflake.ID, day int, lock string) (*domain.DayProgress, error) {
	var progress domain.DayProgress
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM day_progress WHERE user_id = ? AND day = ?`+lock,
		userID, day,
	).Scan(&progress).Error
	if err != nil {
		return nil, err
	}
	if progress.ID == 0 {
		return nil, nil
	}
	return &progress, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.DayProgress, error) {
	var rows []domain.DayProgress
	err := db.WithContext(ctx).Raw(`
		SELECT * FROM day_progress
		WHERE user_id = ?
		ORDER BY day ASC
	`, userID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) CountByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`
		SELECT COUNT(1) FROM day_progress WHERE user_id = ?
	`, userID).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
