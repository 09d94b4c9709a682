// Package domain contains persistence models for user identity.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User maps an external identity-provider subject to an internal record.
// Identity is immutable; this subsystem never deletes users.
type User struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	ExternalID string       `gorm:"type:text;not null;uniqueIndex"`
	Email      string       `gorm:"type:text;not null;index"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }
