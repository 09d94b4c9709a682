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
	checklistservice "github.com/sprintline/sprintline/internal/checklist/service"
	"github.com/sprintline/sprintline/internal/clock"
	"github.com/sprintline/sprintline/internal/config"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
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

func newChecklistService(t *testing.T, db *gorm.DB) checklistdomain.Service {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return checklistservice.NewService(checklistservice.ServiceParam{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clock.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)),
		Repo:       checklistrepo.Provide(),
		Curriculum: config.NewStaticCurriculumHolder(config.DefaultCurriculum()),
	})
}

func TestToggleFlipsState(t *testing.T) {
	ctx := context.Background()
	svc := newChecklistService(t, setupTestDB(t))
	userID := snowflake.ID(42)

	res, err := svc.Toggle(ctx, userID, 0, "watch-welcome")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !res.Completed {
		t.Fatalf("expected first toggle to complete the item")
	}

	res, err = svc.Toggle(ctx, userID, 0, "watch-welcome")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if res.Completed {
		t.Fatalf("expected second toggle to uncomplete the item")
	}

	items, err := svc.CompletedItemIDs(ctx, userID, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items after double toggle, got %v", items)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newChecklistService(t, setupTestDB(t))
	userID := snowflake.ID(7)

	for i := 0; i < 3; i++ {
		if err := svc.Complete(ctx, userID, 1, "day1-task1"); err != nil {
			t.Fatalf("complete (%d): %v", i, err)
		}
	}

	items, err := svc.CompletedItemIDs(ctx, userID, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0] != "day1-task1" {
		t.Fatalf("expected exactly one completion, got %v", items)
	}

	if err := svc.Uncomplete(ctx, userID, 1, "day1-task1"); err != nil {
		t.Fatalf("uncomplete: %v", err)
	}
	if err := svc.Uncomplete(ctx, userID, 1, "day1-task1"); err != nil {
		t.Fatalf("uncomplete again: %v", err)
	}

	done, err := svc.IsItemCompleted(ctx, userID, 1, "day1-task1")
	if err != nil {
		t.Fatalf("is completed: %v", err)
	}
	if done {
		t.Fatalf("expected item to be cleared")
	}
}

func TestToggleRejectsUnknownDayAndItem(t *testing.T) {
	ctx := context.Background()
	svc := newChecklistService(t, setupTestDB(t))
	userID := snowflake.ID(9)

	if _, err := svc.Toggle(ctx, userID, 8, "day1-task1"); err != checklistdomain.ErrInvalidDay {
		t.Fatalf("expected ErrInvalidDay, got %v", err)
	}
	if _, err := svc.Toggle(ctx, userID, -1, "day1-task1"); err != checklistdomain.ErrInvalidDay {
		t.Fatalf("expected ErrInvalidDay, got %v", err)
	}
	if _, err := svc.Toggle(ctx, userID, 1, "nope"); err != checklistdomain.ErrInvalidItem {
		t.Fatalf("expected ErrInvalidItem, got %v", err)
	}
}

func TestSummaryTracksRequiredCount(t *testing.T) {
	ctx := context.Background()
	svc := newChecklistService(t, setupTestDB(t))
	userID := snowflake.ID(11)

	summary, err := svc.Summary(ctx, userID, 0)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.RequiredCount != 3 || summary.CompletedCount != 0 || summary.Complete {
		t.Fatalf("unexpected empty summary: %+v", summary)
	}

	for _, item := range []string{"watch-welcome", "join-discord"} {
		if err := svc.Complete(ctx, userID, 0, item); err != nil {
			t.Fatalf("complete %s: %v", item, err)
		}
	}
	done, err := svc.IsDayComplete(ctx, userID, 0)
	if err != nil {
		t.Fatalf("is day complete: %v", err)
	}
	if done {
		t.Fatalf("day should not be complete with 2 of 3 items")
	}

	if err := svc.Complete(ctx, userID, 0, "set-goal"); err != nil {
		t.Fatalf("complete set-goal: %v", err)
	}
	summary, err = svc.Summary(ctx, userID, 0)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !summary.Complete || summary.CompletedCount != 3 {
		t.Fatalf("expected complete day, got %+v", summary)
	}
}

func TestSummaryHonorsCurriculumRequiredOverride(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	cur := config.Curriculum{Days: []config.CurriculumDay{
		{Day: 0, Title: "Orientation", Items: []string{"a", "b", "c", "d"}, Required: 2},
	}}
	svc := checklistservice.NewService(checklistservice.ServiceParam{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clock.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)),
		Repo:       checklistrepo.Provide(),
		Curriculum: config.NewStaticCurriculumHolder(cur),
	})
	userID := snowflake.ID(13)

	for _, item := range []string{"a", "b"} {
		if err := svc.Complete(ctx, userID, 0, item); err != nil {
			t.Fatalf("complete %s: %v", item, err)
		}
	}

	done, err := svc.IsDayComplete(ctx, userID, 0)
	if err != nil {
		t.Fatalf("is day complete: %v", err)
	}
	if !done {
		t.Fatalf("day should be complete once the required count is met")
	}
}

func TestOverviewGroupsItemsByDay(t *testing.T) {
	ctx := context.Background()
	svc := newChecklistService(t, setupTestDB(t))
	userID := snowflake.ID(77)

	for _, item := range []string{"watch-welcome", "join-discord"} {
		if err := svc.Complete(ctx, userID, 0, item); err != nil {
			t.Fatalf("complete %s: %v", item, err)
		}
	}
	if err := svc.Complete(ctx, userID, 2, "day2-task1"); err != nil {
		t.Fatalf("complete day2-task1: %v", err)
	}

	overview, err := svc.Overview(ctx, userID)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if len(overview) != 2 {
		t.Fatalf("expected two days in overview, got %d", len(overview))
	}
	if len(overview[0]) != 2 || len(overview[2]) != 1 {
		t.Fatalf("unexpected overview contents: %+v", overview)
	}
	if _, ok := overview[1]; ok {
		t.Fatalf("day 1 should be absent from overview")
	}
}
