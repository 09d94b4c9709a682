// Package domain contains persistence models for checklist completions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ChecklistCompletion marks one checklist item done for a (user, day).
// Existence of the row is the completion signal; deleting it uncompletes
// the item. At most one row per (user, day, item) tuple.
type ChecklistCompletion struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	UserID    snowflake.ID `gorm:"not null;uniqueIndex:ux_checklist_completions_user_day_item"`
	Day       int          `gorm:"not null;uniqueIndex:ux_checklist_completions_user_day_item"`
	ItemID    string       `gorm:"type:text;not null;uniqueIndex:ux_checklist_completions_user_day_item"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ChecklistCompletion) TableName() string { return "checklist_completions" }
