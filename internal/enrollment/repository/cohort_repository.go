package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/sprintline/sprintline/internal/enrollment/domain"
)

type cohortRepo struct{}

func ProvideCohort() domain.CohortRepository {
	return &cohortRepo{}
}

func (r *cohortRepo) Insert(ctx context.Context, db *gorm.DB, cohort *domain.Cohort) error {
	return db.WithContext(ctx).Exec(`
		INSERT INTO cohorts (id, name, slug, created_at)
		VALUES (?, ?, ?, ?)
	`, cohort.ID, cohort.Name, cohort.Slug, cohort.CreatedAt).Error
}

func (r *cohortRepo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Cohort, error) {
	return r.findOne(ctx, db, `SELECT * FROM cohorts WHERE id = ?`, id)
}

func (r *cohortRepo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Cohort, error) {
	return r.findOne(ctx, db, `SELECT * FROM cohorts WHERE slug = ?`, slug)
}

func (r *cohortRepo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Cohort, error) {
	var cohort domain.Cohort
	err := db.WithContext(ctx).Raw(query, args...).Scan(&cohort).Error
	if err != nil {
		return nil, err
	}
	if cohort.ID == 0 {
		return nil, nil
	}
	return &cohort, nil
}
