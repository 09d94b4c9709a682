// Package domain contains persistence models for per-day sprint progress.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type DayStatus string

const (
	DayLocked     DayStatus = "locked"
	DayAvailable  DayStatus = "available"
	DayInProgress DayStatus = "in_progress"
	DayCompleted  DayStatus = "completed"
)

// rank orders statuses along the forward-only state machine.
var rank = map[DayStatus]int{
	DayLocked:     0,
	DayAvailable:  1,
	DayInProgress: 2,
	DayCompleted:  3,
}

// Before reports whether s precedes other in the state machine.
// Transitions never move backwards.
func (s DayStatus) Before(other DayStatus) bool {
	return rank[s] < rank[other]
}

// DayProgress is the state machine row for one (user, day). Exactly one
// row per (user, day); day 0 is created available, days 1-7 locked.
type DayProgress struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	UserID       snowflake.ID `gorm:"not null;uniqueIndex:ux_day_progress_user_day"`
	EnrollmentID snowflake.ID `gorm:"not null;index"`
	Day          int          `gorm:"not null;uniqueIndex:ux_day_progress_user_day"`
	Status       DayStatus    `gorm:"type:text;not null;default:'locked'"`

	TrainingWatched    bool `gorm:"not null;default:false"`
	WorksheetCompleted bool `gorm:"not null;default:false"`
	ProgressPosted     bool `gorm:"not null;default:false"`

	CompletedAt *time.Time
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (DayProgress) TableName() string { return "day_progress" }

// RequirementsMet reports whether the day's completion predicate holds:
// day 0 needs the training only, later days need all three flags.
func (p *DayProgress) RequirementsMet() bool {
	if p.Day == 0 {
		return p.TrainingWatched
	}
	return p.TrainingWatched && p.WorksheetCompleted && p.ProgressPosted
}
