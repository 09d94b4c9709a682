package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sprintline/sprintline/internal/enrollment/domain"
	pkgdb "github.com/sprintline/sprintline/pkg/db"
)

type pendingPurchaseRepo struct{}

func ProvidePendingPurchase() domain.PendingPurchaseRepository {
	return &pendingPurchaseRepo{}
}

func (r *pendingPurchaseRepo) Insert(ctx context.Context, db *gorm.DB, purchase *domain.PendingPurchase) (bool, error) {
	res := db.WithContext(ctx).Exec(`
		INSERT INTO pending_purchases (
			id, email, checkout_session_id, status, amount, currency,
			local_progress, completed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (checkout_session_id) DO NOTHING
	`, purchase.ID, purchase.Email, purchase.CheckoutSessionID, purchase.Status,
		purchase.Amount, purchase.Currency, purchase.LocalProgress,
		purchase.CompletedAt, purchase.CreatedAt, purchase.UpdatedAt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *pendingPurchaseRepo) Update(ctx context.Context, db *gorm.DB, purchase *domain.PendingPurchase) error {
	return db.WithContext(ctx).Exec(`
		UPDATE pending_purchases SET
			checkout_session_id = ?,
			status = ?,
			amount = ?,
			currency = ?,
			local_progress = ?,
			completed_at = ?,
			updated_at = ?
		WHERE id = ?
	`, purchase.CheckoutSessionID, purchase.Status, purchase.Amount, purchase.Currency,
		purchase.LocalProgress, purchase.CompletedAt, purchase.UpdatedAt, purchase.ID).Error
}

func (r *pendingPurchaseRepo) FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*domain.PendingPurchase, error) {
	return r.findOne(ctx, db, `SELECT * FROM pending_purchases WHERE checkout_session_id = ?`, sessionID)
}

func (r *pendingPurchaseRepo) FindBySessionIDForUpdate(ctx context.Context, db *gorm.DB, sessionID string) (*domain.PendingPurchase, error) {
	return r.findOne(ctx, db, `SELECT * FROM pending_purchases WHERE checkout_session_id = ?`+pkgdb.RowLockClause(db), sessionID)
}

func (r *pendingPurchaseRepo) FindPendingByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.PendingPurchase, error) {
	return r.findPendingByEmail(ctx, db, email, "")
}

// FindPendingByEmailForUpdate locks the pending row so concurrent
// checkout retries for one email serialize on the in-place update.
func (r *pendingPurchaseRepo) FindPendingByEmailForUpdate(ctx context.Context, db *gorm.DB, email string) (*domain.PendingPurchase, error) {
	return r.findPendingByEmail(ctx, db, email, pkgdb.RowLockClause(db))
}

func (r *pendingPurchaseRepo) findPendingByEmail(ctx context.Context, db *gorm.DB, email string, lock string) (*domain.PendingPurchase, error) {
	return r.findOne(ctx, db, `
		SELECT * FROM pending_purchases
		WHERE email = ? AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`+lock, email)
}

func (r *pendingPurchaseRepo) FindCompletedByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.PendingPurchase, error) {
	return r.findOne(ctx, db, `
		SELECT * FROM pending_purchases
		WHERE email = ? AND status = 'completed'
		ORDER BY completed_at DESC
		LIMIT 1
	`, email)
}

func (r *pendingPurchaseRepo) ExpireStale(ctx context.Context, db *gorm.DB, cutoff time.Time, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(`
		UPDATE pending_purchases SET status = 'expired', updated_at = ?
		WHERE status = 'pending' AND created_at < ?
	`, now, cutoff)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *pendingPurchaseRepo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.PendingPurchase, error) {
	var purchase domain.PendingPurchase
	err := db.WithContext(ctx).Raw(query, args...).Scan(&purchase).Error
	if err != nil {
		return nil, err
	}
	if purchase.ID == 0 {
		return nil, nil
	}
	return &purchase, nil
}
