package scheduler_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	checklistrepo "github.com/sprintline/sprintline/internal/checklist/repository"
	"github.com/sprintline/sprintline/internal/clock"
	"github.com/sprintline/sprintline/internal/config"
	enrollmentdomain "github.com/sprintline/sprintline/internal/enrollment/domain"
	enrollmentrepo "github.com/sprintline/sprintline/internal/enrollment/repository"
	enrollmentservice "github.com/sprintline/sprintline/internal/enrollment/service"
	"github.com/sprintline/sprintline/internal/scheduler"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE enrollments (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			cohort_id BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			amount_paid BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'usd',
			checkout_session_id TEXT,
			payment_intent_id TEXT,
			enrolled_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			credit_expires_at TIMESTAMPTZ,
			credit_applied_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE pending_purchases (
			id BIGINT PRIMARY KEY,
			email TEXT NOT NULL,
			checkout_session_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			amount BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'usd',
			local_progress TEXT,
			completed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_pending_purchases_session ON pending_purchases(checkout_session_id)`,
		`CREATE TABLE checklist_completions (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			day INTEGER NOT NULL,
			item_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func TestRunOnceSweepsStalePurchasesAndLapsedCredits(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	node, err := snowflake.NewNode(6)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	enrollRepo := enrollmentrepo.Provide()

	ppSvc := enrollmentservice.NewPendingPurchaseService(enrollmentservice.PendingPurchaseServiceParam{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fake,
		Repo:       enrollmentrepo.ProvidePendingPurchase(),
		CheckRepo:  checklistrepo.Provide(),
		Curriculum: config.NewStaticCurriculumHolder(config.DefaultCurriculum()),
	})

	sched, err := scheduler.New(scheduler.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Cfg:   config.Config{PendingPurchaseTTL: 24 * time.Hour, SchedulerInterval: 15 * time.Minute},
		Clock: fake,
		EnrollRepo:  enrollRepo,
		PurchaseSvc: ppSvc,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	if _, err := ppSvc.Create(ctx, enrollmentdomain.CreatePendingPurchaseRequest{
		Email: "old@example.com", CheckoutSessionID: "cs_old",
	}); err != nil {
		t.Fatalf("create purchase: %v", err)
	}

	// A completed enrollment whose credit window has closed.
	completedAt := fake.Now().Add(-366 * 24 * time.Hour)
	expiresAt := completedAt.Add(365 * 24 * time.Hour)
	lapsed := enrollmentdomain.Enrollment{
		ID:                node.Generate(),
		UserID:            1,
		CohortID:          2,
		Status:            enrollmentdomain.EnrollmentCompleted,
		Currency:          "usd",
		CheckoutSessionID: "cs_lapsed",
		CompletedAt:       &completedAt,
		CreditExpiresAt:   &expiresAt,
		CreatedAt:         completedAt,
		UpdatedAt:         completedAt,
	}
	if _, err := enrollRepo.Insert(ctx, db, &lapsed); err != nil {
		t.Fatalf("insert lapsed enrollment: %v", err)
	}
	// And one still inside its window.
	openCompletedAt := fake.Now().Add(-24 * time.Hour)
	openExpiresAt := openCompletedAt.Add(365 * 24 * time.Hour)
	open := enrollmentdomain.Enrollment{
		ID:                node.Generate(),
		UserID:            3,
		CohortID:          2,
		Status:            enrollmentdomain.EnrollmentCompleted,
		Currency:          "usd",
		CheckoutSessionID: "cs_open",
		CompletedAt:       &openCompletedAt,
		CreditExpiresAt:   &openExpiresAt,
		CreatedAt:         openCompletedAt,
		UpdatedAt:         openCompletedAt,
	}
	if _, err := enrollRepo.Insert(ctx, db, &open); err != nil {
		t.Fatalf("insert open enrollment: %v", err)
	}

	// First sweep: purchase is fresh, lapsed credit goes.
	if err := sched.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}
	var status string
	if err := db.Raw(`SELECT status FROM enrollments WHERE id = ?`, lapsed.ID).Scan(&status).Error; err != nil {
		t.Fatalf("lapsed status: %v", err)
	}
	if status != "expired" {
		t.Fatalf("lapsed enrollment status = %s, want expired", status)
	}
	if err := db.Raw(`SELECT status FROM enrollments WHERE id = ?`, open.ID).Scan(&status).Error; err != nil {
		t.Fatalf("open status: %v", err)
	}
	if status != "completed" {
		t.Fatalf("open enrollment must survive, status = %s", status)
	}
	if err := db.Raw(`SELECT status FROM pending_purchases WHERE checkout_session_id = ?`, "cs_old").Scan(&status).Error; err != nil {
		t.Fatalf("purchase status: %v", err)
	}
	if status != "pending" {
		t.Fatalf("fresh purchase must survive, status = %s", status)
	}

	// A day later the purchase is stale.
	fake.Advance(25 * time.Hour)
	if err := sched.RunOnce(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if err := db.Raw(`SELECT status FROM pending_purchases WHERE checkout_session_id = ?`, "cs_old").Scan(&status).Error; err != nil {
		t.Fatalf("purchase status: %v", err)
	}
	if status != "expired" {
		t.Fatalf("stale purchase status = %s, want expired", status)
	}
}
