package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidDay  = errors.New("invalid_day")
	ErrInvalidItem = errors.New("invalid_item")
)

// ToggleResult reports the item's state after a toggle.
type ToggleResult struct {
	ItemID    string `json:"item_id"`
	Day       int    `json:"day"`
	Completed bool   `json:"completed"`
}

// DaySummary aggregates a user's checklist state for a single day.
type DaySummary struct {
	Day            int      `json:"day"`
	CompletedItems []string `json:"completed_items"`
	CompletedCount int      `json:"completed_count"`
	RequiredCount  int      `json:"required_count"`
	Complete       bool     `json:"complete"`
}

type Service interface {
	Toggle(ctx context.Context, userID snowflake.ID, day int, itemID string) (*ToggleResult, error)
	Complete(ctx context.Context, userID snowflake.ID, day int, itemID string) error
	Uncomplete(ctx context.Context, userID snowflake.ID, day int, itemID string) error
	CompletedItemIDs(ctx context.Context, userID snowflake.ID, day int) ([]string, error)
	IsItemCompleted(ctx context.Context, userID snowflake.ID, day int, itemID string) (bool, error)
	Summary(ctx context.Context, userID snowflake.ID, day int) (*DaySummary, error)
	// Overview groups the user's completed item ids by day.
	Overview(ctx context.Context, userID snowflake.ID) (map[int][]string, error)
	IsDayComplete(ctx context.Context, userID snowflake.ID, day int) (bool, error)
}
