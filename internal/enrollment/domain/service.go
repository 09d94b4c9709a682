package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrEnrollmentNotFound      = errors.New("enrollment_not_found")
	ErrCohortNotFound          = errors.New("cohort_not_found")
	ErrPendingPurchaseNotFound = errors.New("pending_purchase_not_found")
	ErrCreditWindowClosed      = errors.New("credit_window_closed")
	ErrEnrollmentNotCompleted  = errors.New("enrollment_not_completed")
	ErrInvalidEmail            = errors.New("invalid_email")
	ErrInvalidSessionID        = errors.New("invalid_session_id")
)

// ProgressInitializer seeds a user's day rows when an enrollment
// activates. Implemented by the progress service and bound through fx;
// the interface lives here so activation can run initialization inside
// its own transaction without a package cycle.
type ProgressInitializer interface {
	InitializeForEnrollment(ctx context.Context, tx *gorm.DB, userID, enrollmentID snowflake.ID) error
}

type CreatePendingRequest struct {
	UserID            snowflake.ID `json:"user_id"`
	CohortID          snowflake.ID `json:"cohort_id"`
	CheckoutSessionID string       `json:"checkout_session_id"`
}

type ActivateRequest struct {
	CheckoutSessionID string `json:"checkout_session_id"`
	PaymentIntentID   string `json:"payment_intent_id"`
	AmountPaid        int64  `json:"amount_paid"`
	Currency          string `json:"currency"`
}

type Service interface {
	CreatePending(ctx context.Context, req CreatePendingRequest) (*Enrollment, error)
	Activate(ctx context.Context, req ActivateRequest) (*Enrollment, error)
	MarkCompleted(ctx context.Context, enrollmentID snowflake.ID) (*Enrollment, error)
	ApplyCredit(ctx context.Context, enrollmentID snowflake.ID) (*Enrollment, error)
	GetByID(ctx context.Context, enrollmentID snowflake.ID) (*Enrollment, error)
	GetCurrentByUser(ctx context.Context, userID snowflake.ID) (*Enrollment, error)
}

type CreatePendingPurchaseRequest struct {
	Email             string            `json:"email"`
	CheckoutSessionID string            `json:"checkout_session_id"`
	Amount            int64             `json:"amount"`
	Currency          string            `json:"currency"`
	LocalProgress     datatypes.JSONMap `json:"local_progress"`
}

type PendingPurchaseService interface {
	Create(ctx context.Context, req CreatePendingPurchaseRequest) (*PendingPurchase, error)
	Complete(ctx context.Context, sessionID string) (*PendingPurchase, error)
	// ExpireStale sweeps pending rows older than the TTL.
	ExpireStale(ctx context.Context, olderThan time.Duration) (int64, error)
	// SyncLocalProgress replays a completed purchase's captured checklist
	// state for a freshly created account. Runs in the caller's
	// transaction; re-running is a no-op.
	SyncLocalProgress(ctx context.Context, tx *gorm.DB, userID snowflake.ID, email string) error
}
