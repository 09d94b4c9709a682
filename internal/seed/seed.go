// Package seed bootstraps the records a fresh install needs.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/sprintline/sprintline/internal/config"
)

// EnsureDefaultCohort creates the configured default cohort if no
// cohort with its slug exists yet. Safe to run on every startup.
func EnsureDefaultCohort(db *gorm.DB, cfg config.Config) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	name := cfg.DefaultCohortName
	if name == "" {
		return nil
	}
	cohortSlug := slug.Make(name)

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Exec(`
		INSERT INTO cohorts (id, name, slug, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (slug) DO NOTHING
	`, node.Generate(), name, cohortSlug, time.Now().UTC()).Error
}
