package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/sprintline/sprintline/internal/checklist/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, completion *domain.ChecklistCompletion) error {
	return db.WithContext(ctx).Exec(`
		INSERT INTO checklist_completions (id, user_id, day, item_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, day, item_id) DO NOTHING
	`, completion.ID, completion.UserID, completion.Day, completion.ItemID, completion.CreatedAt).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, userID snowflake.ID, day int, itemID string) (bool, error) {
	res := db.WithContext(ctx).Exec(`
		DELETE FROM checklist_completions
		WHERE user_id = ? AND day = ? AND item_id = ?
	`, userID, day, itemID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Exists(ctx context.Context, db *gorm.DB, userID snowflake.ID, day int, itemID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`
		SELECT COUNT(1) FROM checklist_completions
		WHERE user_id = ? AND day = ? AND item_id = ?
	`, userID, day, itemID).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) ListItemIDs(ctx context.Context, db *gorm.DB, userID snowflake.ID, day int) ([]string, error) {
	var items []string
	err := db.WithContext(ctx).Raw(`
		SELECT item_id FROM checklist_completions
		WHERE user_id = ? AND day = ?
		ORDER BY created_at ASC, item_id ASC
	`, userID, day).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.ChecklistCompletion, error) {
	var completions []domain.ChecklistCompletion
	err := db.WithContext(ctx).Raw(`
		SELECT * FROM checklist_completions
		WHERE user_id = ?
		ORDER BY day ASC, created_at ASC
	`, userID).Scan(&completions).Error
	if err != nil {
		return nil, err
	}
	return completions, nil
}

func (r *repo) CountByDay(ctx context.Context, db *gorm.DB, userID snowflake.ID, day int) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`
		SELECT COUNT(1) FROM checklist_completions
		WHERE user_id = ? AND day = ?
	`, userID, day).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
