package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/sprintline/sprintline/internal/enrollment/domain"
	pkgdb "github.com/sprintline/sprintline/pkg/db"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, enrollment *domain.Enrollment) (bool, error) {
	res := db.WithContext(ctx).Exec(`
		INSERT INTO enrollments (
			id, user_id, cohort_id, status,
			amount_paid, currency, checkout_session_id, payment_intent_id,
			enrolled_at, completed_at, credit_expires_at, credit_applied_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, enrollment.ID, enrollment.UserID, enrollment.CohortID, enrollment.Status,
		enrollment.AmountPaid, enrollment.Currency, enrollment.CheckoutSessionID, enrollment.PaymentIntentID,
		enrollment.EnrolledAt, enrollment.CompletedAt, enrollment.CreditExpiresAt, enrollment.CreditAppliedAt,
		enrollment.CreatedAt, enrollment.UpdatedAt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, enrollment *domain.Enrollment) error {
	return db.WithContext(ctx).Exec(`
		UPDATE enrollments SET
			status = ?,
			amount_paid = ?,
			currency = ?,
			checkout_session_id = ?,
			payment_intent_id = ?,
			enrolled_at = ?,
			completed_at = ?,
			credit_expires_at = ?,
			credit_applied_at = ?,
			updated_at = ?
		WHERE id = ?
	`, enrollment.Status, enrollment.AmountPaid, enrollment.Currency,
		enrollment.CheckoutSessionID, enrollment.PaymentIntentID,
		enrollment.EnrolledAt, enrollment.CompletedAt, enrollment.CreditExpiresAt,
		enrollment.CreditAppliedAt, enrollment.UpdatedAt, enrollment.ID).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Enrollment, error) {
	return r.findOne(ctx, db, `SELECT * FROM enrollments WHERE id = ?`, id)
}

// FindByIDForUpdate row-locks the enrollment for the rest of the
// transaction before a status transition acts on it.
func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Enrollment, error) {
	return r.findOne(ctx, db, `SELECT * FROM enrollments WHERE id = ?`+pkgdb.RowLockClause(db), id)
}

func (r *repo) FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Enrollment, error) {
	return r.findOne(ctx, db, `SELECT * FROM enrollments WHERE checkout_session_id = ?`, sessionID)
}

func (r *repo) FindBySessionIDForUpdate(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Enrollment, error) {
	return r.findOne(ctx, db, `SELECT * FROM enrollments WHERE checkout_session_id = ?`+pkgdb.RowLockClause(db), sessionID)
}

func (r *repo) FindByUserAndCohort(ctx context.Context, db *gorm.DB, userID, cohortID snowflake.ID) (*domain.Enrollment, error) {
	return r.findOne(ctx, db, `SELECT * FROM enrollments WHERE user_id = ? AND cohort_id = ?`, userID, cohortID)
}

func (r *repo) FindByUserAndCohortForUpdate(ctx context.Context, db *gorm.DB, userID, cohortID snowflake.ID) (*domain.Enrollment, error) {
	return r.findOne(ctx, db, `SELECT * FROM enrollments WHERE user_id = ? AND cohort_id = ?`+pkgdb.RowLockClause(db), userID, cohortID)
}

func (r *repo) FindCurrentByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.Enrollment, error) {
	return r.findCurrentByUser(ctx, db, userID, "")
}

func (r *repo) FindCurrentByUserForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.Enrollment, error) {
	return r.findCurrentByUser(ctx, db, userID, pkgdb.RowLockClause(db))
}

func (r *repo) findCurrentByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, lock string) (*domain.Enrollment, error) {
	return r.findOne(ctx, db, `
		SELECT * FROM enrollments
		WHERE user_id = ? AND status IN ('active', 'completed')
		ORDER BY created_at DESC
		LIMIT 1
	`+lock, userID)
}

func (r *repo) ExpireCredits(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(`
		UPDATE enrollments SET status = 'expired', updated_at = ?
		WHERE status = 'completed' AND credit_expires_at IS NOT NULL AND credit_expires_at <= ?
	`, now, now)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Enrollment, error) {
	var enrollment domain.Enrollment
	err := db.WithContext(ctx).Raw(query, args...).Scan(&enrollment).Error
	if err != nil {
		return nil, err
	}
	if enrollment.ID == 0 {
		return nil, nil
	}
	return &enrollment, nil
}
