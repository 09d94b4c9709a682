package ratelimit

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/sprintline/sprintline/internal/clock"
	"github.com/sprintline/sprintline/pkg/db"
)

// RateLimitWindow is the durable counter row, one per identifier.
type RateLimitWindow struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	Identifier  string       `gorm:"type:text;not null;uniqueIndex"`
	Count       int          `gorm:"not null;default:0"`
	WindowStart time.Time    `gorm:"not null"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (RateLimitWindow) TableName() string { return "rate_limit_windows" }

// StoreLimiter keeps the window in the primary store, surviving
// restarts without redis.
type StoreLimiter struct {
	db     *gorm.DB
	genID  *snowflake.Node
	clock  clock.Clock
	limit  int
	window time.Duration
}

func NewStoreLimiter(conn *gorm.DB, genID *snowflake.Node, clk clock.Clock, limit int, window time.Duration) *StoreLimiter {
	return &StoreLimiter{db: conn, genID: genID, clock: clk, limit: limit, window: window}
}

func (l *StoreLimiter) Check(ctx context.Context, identifier string) (*Result, error) {
	if identifier == "" {
		return nil, ErrEmptyIdentifier
	}

	var result *Result
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := l.clock.Now()
		// Lock the row for the rest of the transaction so concurrent
		// checks for the same identifier serialize on the increment.
		row, err := l.find(ctx, tx, identifier, db.RowLockClause(tx))
		if err != nil {
			return err
		}

		if row == nil {
			row = &RateLimitWindow{
				ID:          l.genID.Generate(),
				Identifier:  identifier,
				Count:       1,
				WindowStart: now,
				UpdatedAt:   now,
			}
			res := tx.WithContext(ctx).Exec(`
				INSERT INTO rate_limit_windows (id, identifier, count, window_start, updated_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (identifier) DO NOTHING
			`, row.ID, row.Identifier, row.Count, row.WindowStart, row.UpdatedAt)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				result = l.resultFor(row, true)
				return nil
			}
			// Lost the first-insert race; fall through to the
			// increment path against the winner's row.
			row, err = l.find(ctx, tx, identifier, db.RowLockClause(tx))
			if err != nil {
				return err
			}
			if row == nil {
				return gorm.ErrRecordNotFound
			}
		}

		if !now.Before(row.WindowStart.Add(l.window)) {
			row.Count = 1
			row.WindowStart = now
			row.UpdatedAt = now
			result = l.resultFor(row, true)
			return l.update(ctx, tx, row)
		}

		if row.Count < l.limit {
			row.Count++
			row.UpdatedAt = now
			result = l.resultFor(row, true)
			return l.update(ctx, tx, row)
		}

		result = l.resultFor(row, false)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (l *StoreLimiter) Status(ctx context.Context, identifier string) (*Result, error) {
	if identifier == "" {
		return nil, ErrEmptyIdentifier
	}

	now := l.clock.Now()
	row, err := l.find(ctx, l.db, identifier, "")
	if err != nil {
		return nil, err
	}
	if row == nil || !now.Before(row.WindowStart.Add(l.window)) {
		return &Result{
			Allowed:   true,
			Limit:     l.limit,
			Remaining: l.limit,
			ResetAt:   now.Add(l.window),
		}, nil
	}
	return &Result{
		Allowed:   row.Count < l.limit,
		Limit:     l.limit,
		Remaining: max(0, l.limit-row.Count),
		ResetAt:   row.WindowStart.Add(l.window),
	}, nil
}

func (l *StoreLimiter) resultFor(row *RateLimitWindow, allowed bool) *Result {
	return &Result{
		Allowed:   allowed,
		Limit:     l.limit,
		Remaining: max(0, l.limit-row.Count),
		ResetAt:   row.WindowStart.Add(l.window),
	}
}

func (l *StoreLimiter) find(ctx context.Context, conn *gorm.DB, identifier string, lock string) (*RateLimitWindow, error) {
	var row RateLimitWindow
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM rate_limit_windows WHERE identifier = ?`+lock,
		identifier,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (l *StoreLimiter) update(ctx context.Context, conn *gorm.DB, row *RateLimitWindow) error {
	return conn.WithContext(ctx).Exec(`
		UPDATE rate_limit_windows SET count = ?, window_start = ?, updated_at = ?
		WHERE id = ?
	`, row.Count, row.WindowStart, row.UpdatedAt, row.ID).Error
}
