package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	checklistdomain "github.com/sprintline/sprintline/internal/checklist/domain"
	checklistrepo "github.com/sprintline/sprintline/internal/checklist/repository"
	"github.com/sprintline/sprintline/internal/clock"
	"github.com/sprintline/sprintline/internal/config"
	enrollmentdomain "github.com/sprintline/sprintline/internal/enrollment/domain"
	enrollmentrepo "github.com/sprintline/sprintline/internal/enrollment/repository"
	progressdomain "github.com/sprintline/sprintline/internal/progress/domain"
	progressrepo "github.com/sprintline/sprintline/internal/progress/repository"
	progressservice "github.com/sprintline/sprintline/internal/progress/service"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE day_progress (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			enrollment_id BIGINT NOT NULL,
			day INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'locked',
			training_watched BOOLEAN NOT NULL DEFAULT FALSE,
			worksheet_completed BOOLEAN NOT NULL DEFAULT FALSE,
			progress_posted BOOLEAN NOT NULL DEFAULT FALSE,
			completed_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_day_progress_user_day ON day_progress(user_id, day)`,
		`CREATE TABLE enrollments (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			cohort_id BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			amount_paid BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'usd',
			checkout_session_id TEXT,
			payment_intent_id TEXT,
			enrolled_at DATETIME,
			completed_at DATETIME,
			credit_expires_at DATETIME,
			credit_applied_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_enrollments_session ON enrollments(checkout_session_id)`,
		`CREATE TABLE checklist_completions (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			day INTEGER NOT NULL,
			item_id TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_checklist_completions_user_day_item ON checklist_completions(user_id, day, item_id)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

type fixture struct {
	db         *gorm.DB
	svc        progressdomain.Service
	clock      *clock.FakeClock
	enrollRepo enrollmentdomain.Repository
	node       *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(3)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	enrollRepo := enrollmentrepo.Provide()

	svc := progressservice.NewService(progressservice.ServiceParam{
		DB:         db,
		Cfg:        config.Config{CreditDuration: 365 * 24 * time.Hour},
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fake,
		Repo:       progressrepo.Provide(),
		EnrollRepo: enrollRepo,
		CheckRepo:  checklistrepo.Provide(),
		Curriculum: config.NewStaticCurriculumHolder(config.DefaultCurriculum()),
	})
	return &fixture{db: db, svc: svc, clock: fake, enrollRepo: enrollRepo, node: node}
}

func (f *fixture) initProgress(t *testing.T, userID snowflake.ID) snowflake.ID {
	t.Helper()

	enrollmentID := f.node.Generate()
	err := f.db.Transaction(func(tx *gorm.DB) error {
		return f.svc.InitializeForEnrollment(context.Background(), tx, userID, enrollmentID)
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return enrollmentID
}

func (f *fixture) insertActiveEnrollment(t *testing.T, userID snowflake.ID) snowflake.ID {
	t.Helper()

	now := f.clock.Now()
	enrollment := enrollmentdomain.Enrollment{
		ID:                f.node.Generate(),
		UserID:            userID,
		CohortID:          f.node.Generate(),
		Status:            enrollmentdomain.EnrollmentActive,
		Currency:          "usd",
		CheckoutSessionID: fmt.Sprintf("cs_%d", f.node.Generate()),
		EnrolledAt:        &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if _, err := f.enrollRepo.Insert(context.Background(), f.db, &enrollment); err != nil {
		t.Fatalf("insert enrollment: %v", err)
	}
	return enrollment.ID
}

func (f *fixture) completeDay(t *testing.T, userID snowflake.ID, day int) *progressdomain.MarkResult {
	t.Helper()

	ctx := context.Background()
	if _, err := f.svc.MarkTrainingWatched(ctx, userID, day); err != nil {
		t.Fatalf("day %d training: %v", day, err)
	}
	if day == 0 {
		res, err := f.svc.MarkTrainingWatched(ctx, userID, day)
		if err != nil {
			t.Fatalf("day 0 re-mark: %v", err)
		}
		return res
	}
	if _, err := f.svc.MarkWorksheetCompleted(ctx, userID, day); err != nil {
		t.Fatalf("day %d worksheet: %v", day, err)
	}
	res, err := f.svc.MarkProgressPosted(ctx, userID, day)
	if err != nil {
		t.Fatalf("day %d progress post: %v", day, err)
	}
	return res
}

func TestInitializeCreatesFullRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := snowflake.ID(100)

	enrollmentID := f.initProgress(t, userID)

	rows, err := f.svc.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 8 {
		t.Fatalf("expected 8 day rows, got %d", len(rows))
	}
	for _, row := range rows {
		want := progressdomain.DayLocked
		if row.Day == 0 {
			want = progressdomain.DayAvailable
		}
		if row.Status != want {
			t.Fatalf("day %d: expected %s, got %s", row.Day, want, row.Status)
		}
		if row.EnrollmentID != enrollmentID {
			t.Fatalf("day %d carries wrong enrollment id", row.Day)
		}
	}

	// A retry must not add or reset rows.
	f.initProgress(t, userID)
	rows, err = f.svc.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("list after retry: %v", err)
	}
	if len(rows) != 8 {
		t.Fatalf("expected 8 rows after retry, got %d", len(rows))
	}
}

func TestDayZeroCompletesOnTrainingAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := snowflake.ID(101)
	f.initProgress(t, userID)

	res, err := f.svc.MarkTrainingWatched(ctx, userID, 0)
	if err != nil {
		t.Fatalf("mark training: %v", err)
	}
	if !res.Completed {
		t.Fatalf("day 0 should complete on training alone")
	}
	if !res.NextDayUnlocked {
		t.Fatalf("day 1 should unlock")
	}
	if res.Progress.CompletedAt == nil {
		t.Fatalf("completed_at not set")
	}

	day1, err := f.svc.GetByUserAndDay(ctx, userID, 1)
	if err != nil {
		t.Fatalf("get day 1: %v", err)
	}
	if day1.Status != progressdomain.DayAvailable {
		t.Fatalf("day 1 status = %s, want available", day1.Status)
	}
}

func TestLaterDaysNeedAllThreeFlagsInAnyOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	type step func(context.Context, snowflake.ID, int) (*progressdomain.MarkResult, error)
	orders := [][]step{
		{f.svc.MarkTrainingWatched, f.svc.MarkWorksheetCompleted, f.svc.MarkProgressPosted},
		{f.svc.MarkProgressPosted, f.svc.MarkTrainingWatched, f.svc.MarkWorksheetCompleted},
		{f.svc.MarkWorksheetCompleted, f.svc.MarkProgressPosted, f.svc.MarkTrainingWatched},
	}

	for i, order := range orders {
		userID := snowflake.ID(200 + i)
		f.initProgress(t, userID)
		if _, err := f.svc.MarkTrainingWatched(ctx, userID, 0); err != nil {
			t.Fatalf("complete day 0: %v", err)
		}

		var last *progressdomain.MarkResult
		for n, mark := range order {
			res, err := mark(ctx, userID, 1)
			if err != nil {
				t.Fatalf("order %d step %d: %v", i, n, err)
			}
			if n < len(order)-1 && res.Completed {
				t.Fatalf("order %d: completed after %d flags", i, n+1)
			}
			last = res
		}
		if !last.Completed || !last.NextDayUnlocked {
			t.Fatalf("order %d: expected completion and unlock, got %+v", i, last)
		}
		if last.Progress.Status != progressdomain.DayCompleted {
			t.Fatalf("order %d: status = %s", i, last.Progress.Status)
		}
	}
}

func TestLockedDayRejectsFlags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := snowflake.ID(103)
	f.initProgress(t, userID)

	if _, err := f.svc.MarkTrainingWatched(ctx, userID, 3); err != progressdomain.ErrDayLocked {
		t.Fatalf("expected ErrDayLocked, got %v", err)
	}
	if _, err := f.svc.MarkTrainingWatched(ctx, userID, 8); err != progressdomain.ErrInvalidDay {
		t.Fatalf("expected ErrInvalidDay, got %v", err)
	}
}

func TestRedundantCompletionDoesNotRelockNextDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := snowflake.ID(104)
	f.initProgress(t, userID)

	if _, err := f.svc.MarkTrainingWatched(ctx, userID, 0); err != nil {
		t.Fatalf("complete day 0: %v", err)
	}
	// Put day 1 in progress, then re-trigger day 0's completion.
	if _, err := f.svc.MarkTrainingWatched(ctx, userID, 1); err != nil {
		t.Fatalf("start day 1: %v", err)
	}
	res, err := f.svc.MarkTrainingWatched(ctx, userID, 0)
	if err != nil {
		t.Fatalf("re-mark day 0: %v", err)
	}
	if !res.Completed {
		t.Fatalf("re-mark should still report the day as complete")
	}
	if res.NextDayUnlocked {
		t.Fatalf("an already-advanced day must not be re-unlocked")
	}

	day1, err := f.svc.GetByUserAndDay(ctx, userID, 1)
	if err != nil {
		t.Fatalf("get day 1: %v", err)
	}
	if day1.Status != progressdomain.DayInProgress {
		t.Fatalf("day 1 status = %s, want in_progress", day1.Status)
	}
}

func TestFinalDayCompletesEnrollmentWithExactCreditWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := snowflake.ID(105)

	completedAt := time.UnixMilli(1_700_000_000_000).UTC()
	f.clock.Set(completedAt)

	enrollmentID := f.insertActiveEnrollment(t, userID)
	f.initProgress(t, userID)

	for day := 0; day < 7; day++ {
		f.completeDay(t, userID, day)
	}
	res := f.completeDay(t, userID, 7)
	if !res.Completed || !res.SprintCompleted {
		t.Fatalf("final day should complete the sprint, got %+v", res)
	}
	if res.NextDayUnlocked {
		t.Fatalf("no day follows the final day")
	}

	enrollment, err := f.enrollRepo.FindByID(ctx, f.db, enrollmentID)
	if err != nil {
		t.Fatalf("find enrollment: %v", err)
	}
	if enrollment.Status != enrollmentdomain.EnrollmentCompleted {
		t.Fatalf("enrollment status = %s, want completed", enrollment.Status)
	}
	if enrollment.CompletedAt == nil || enrollment.CreditExpiresAt == nil {
		t.Fatalf("completion timestamps not set")
	}
	if got := enrollment.CompletedAt.UnixMilli(); got != 1_700_000_000_000 {
		t.Fatalf("completed_at = %d ms", got)
	}
	if got := enrollment.CreditExpiresAt.UnixMilli(); got != 1_731_536_000_000 {
		t.Fatalf("credit_expires_at = %d ms, want 1731536000000", got)
	}

	current, err := f.svc.CurrentDay(ctx, userID)
	if err != nil {
		t.Fatalf("current day: %v", err)
	}
	if current != 7 {
		t.Fatalf("current day after full run = %d, want 7", current)
	}
}

func TestCurrentDayTracksHighestOpenDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := snowflake.ID(106)
	f.initProgress(t, userID)

	current, err := f.svc.CurrentDay(ctx, userID)
	if err != nil {
		t.Fatalf("current day: %v", err)
	}
	if current != 0 {
		t.Fatalf("fresh run current day = %d, want 0", current)
	}

	f.completeDay(t, userID, 0)
	f.completeDay(t, userID, 1)

	current, err = f.svc.CurrentDay(ctx, userID)
	if err != nil {
		t.Fatalf("current day: %v", err)
	}
	if current != 2 {
		t.Fatalf("current day = %d, want 2", current)
	}
}

func TestCurrentDayProgressReturnsFullRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := snowflake.ID(109)

	// Without day rows there is nothing to return.
	day, row, err := f.svc.CurrentDayProgress(ctx, userID)
	if err != nil {
		t.Fatalf("current day progress: %v", err)
	}
	if day != 0 || row != nil {
		t.Fatalf("empty account: day=%d row=%v, want day 0 and nil row", day, row)
	}

	f.initProgress(t, userID)
	if _, err := f.svc.MarkTrainingWatched(ctx, userID, 0); err != nil {
		t.Fatalf("mark training: %v", err)
	}

	day, row, err = f.svc.CurrentDayProgress(ctx, userID)
	if err != nil {
		t.Fatalf("current day progress: %v", err)
	}
	if day != 1 {
		t.Fatalf("current day = %d, want 1", day)
	}
	if row == nil {
		t.Fatal("expected the day 1 row")
	}
	if row.Day != 1 || row.Status != progressdomain.DayAvailable {
		t.Fatalf("row day=%d status=%s, want day 1 available", row.Day, row.Status)
	}
}

func TestCurrentDayFallsBackToChecklistCounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := snowflake.ID(107)

	// No day rows at all: derive from checklist counts. Day 0 needs 3
	// items; with all of them done the answer moves to day 1.
	current, err := f.svc.CurrentDay(ctx, userID)
	if err != nil {
		t.Fatalf("current day: %v", err)
	}
	if current != 0 {
		t.Fatalf("empty fallback = %d, want 0", current)
	}

	checkRepo := checklistrepo.Provide()
	for _, item := range []string{"watch-welcome", "join-discord", "set-goal"} {
		completion := checklistdomain.ChecklistCompletion{
			ID:        f.node.Generate(),
			UserID:    userID,
			Day:       0,
			ItemID:    item,
			CreatedAt: f.clock.Now(),
		}
		if err := checkRepo.Insert(ctx, f.db, &completion); err != nil {
			t.Fatalf("insert completion: %v", err)
		}
	}
	current, err = f.svc.CurrentDay(ctx, userID)
	if err != nil {
		t.Fatalf("current day: %v", err)
	}
	if current != 1 {
		t.Fatalf("fallback after day 0 items = %d, want 1", current)
	}
}
