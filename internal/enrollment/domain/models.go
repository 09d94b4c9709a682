// Package domain contains persistence models and contracts for the
// paid-enrollment lifecycle and pre-account pending purchases.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type EnrollmentStatus string

const (
	EnrollmentPending       EnrollmentStatus = "pending"
	EnrollmentActive        EnrollmentStatus = "active"
	EnrollmentCompleted     EnrollmentStatus = "completed"
	EnrollmentCreditApplied EnrollmentStatus = "credit_applied"
	EnrollmentExpired       EnrollmentStatus = "expired"
)

// Enrollment is one user's paid seat in a cohort. At most one row per
// (user, cohort); at most one enrollment per user may sit in
// {active, completed} at a time.
type Enrollment struct {
	ID       snowflake.ID     `gorm:"primaryKey"`
	UserID   snowflake.ID     `gorm:"not null;uniqueIndex:ux_enrollments_user_cohort"`
	CohortID snowflake.ID     `gorm:"not null;uniqueIndex:ux_enrollments_user_cohort"`
	Status   EnrollmentStatus `gorm:"type:text;not null;default:'pending';index"`

	AmountPaid        int64  `gorm:"not null;default:0"`
	Currency          string `gorm:"type:text;not null;default:'usd'"`
	CheckoutSessionID string `gorm:"type:text;uniqueIndex"`
	PaymentIntentID   string `gorm:"type:text"`

	EnrolledAt      *time.Time
	CompletedAt     *time.Time
	CreditExpiresAt *time.Time
	CreditAppliedAt *time.Time

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Enrollment) TableName() string { return "enrollments" }

// Complete moves the enrollment to completed and opens the credit
// window. A no-op when the enrollment is already terminal.
func (e *Enrollment) Complete(now time.Time, creditWindow time.Duration) bool {
	switch e.Status {
	case EnrollmentCompleted, EnrollmentCreditApplied:
		return false
	}
	expires := now.Add(creditWindow)
	e.Status = EnrollmentCompleted
	e.CompletedAt = &now
	e.CreditExpiresAt = &expires
	e.UpdatedAt = now
	return true
}

// CreditWindowOpen reports whether the completion credit is still
// redeemable at the given instant.
func (e *Enrollment) CreditWindowOpen(now time.Time) bool {
	return e.Status == EnrollmentCompleted &&
		e.CreditExpiresAt != nil &&
		now.Before(*e.CreditExpiresAt)
}

// Cohort is a named run of the sprint.
type Cohort struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null"`
	Slug      string       `gorm:"type:text;not null;uniqueIndex"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Cohort) TableName() string { return "cohorts" }

type PendingPurchaseStatus string

const (
	PendingPurchasePending   PendingPurchaseStatus = "pending"
	PendingPurchaseCompleted PendingPurchaseStatus = "completed"
	PendingPurchaseExpired   PendingPurchaseStatus = "expired"
)

// PendingPurchase captures a checkout started before the buyer has an
// account. Keyed by email; at most one pending row per email, enforced
// by the service upserting the session id in place. LocalProgress holds
// any checklist state the buyer accumulated client-side, replayed once
// when the account is created.
type PendingPurchase struct {
	ID                snowflake.ID          `gorm:"primaryKey"`
	Email             string                `gorm:"type:text;not null;index"`
	CheckoutSessionID string                `gorm:"type:text;not null;uniqueIndex"`
	Status            PendingPurchaseStatus `gorm:"type:text;not null;default:'pending'"`
	Amount            int64                 `gorm:"not null;default:0"`
	Currency          string                `gorm:"type:text;not null;default:'usd'"`
	LocalProgress     datatypes.JSONMap     `gorm:"type:jsonb"`

	CompletedAt *time.Time
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PendingPurchase) TableName() string { return "pending_purchases" }
