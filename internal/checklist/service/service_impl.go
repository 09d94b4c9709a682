package service

import (
	"context"
	"slices"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	checklistdomain "github.com/sprintline/sprintline/internal/checklist/domain"
	"github.com/sprintline/sprintline/internal/clock"
	"github.com/sprintline/sprintline/internal/config"
	"github.com/sprintline/sprintline/internal/observability/metrics"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	repo       checklistdomain.Repository
	curriculum *config.CurriculumHolder
	metrics    *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       checklistdomain.Repository
	Curriculum *config.CurriculumHolder
	Metrics    *metrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) checklistdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("checklist.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		curriculum: p.Curriculum,
		metrics:    p.Metrics,
	}
}

func (s *Service) validateItem(day int, itemID string) error {
	cur := s.curriculum.Get()
	if day < 0 || day > cur.LastDay() {
		return checklistdomain.ErrInvalidDay
	}
	if !slices.Contains(cur.ItemIDs(day), itemID) {
		return checklistdomain.ErrInvalidItem
	}
	return nil
}

// Toggle flips the completion state of one item. The delete-first shape
// makes the operation safe under concurrent toggles of the same item:
// exactly one caller observes the delete, the other the insert.
func (s *Service) Toggle(ctx context.Context, userID snowflake.ID, day int, itemID string) (*checklistdomain.ToggleResult, error) {
	if err := s.validateItem(day, itemID); err != nil {
		return nil, err
	}

	result := &checklistdomain.ToggleResult{ItemID: itemID, Day: day}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted, err := s.repo.Delete(ctx, tx, userID, day, itemID)
		if err != nil {
			return err
		}
		if deleted {
			result.Completed = false
			return nil
		}
		if err := s.insertCompletion(ctx, tx, userID, day, itemID); err != nil {
			return err
		}
		result.Completed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordChecklistToggle(ctx, day, result.Completed)
	}
	return result, nil
}

// Complete marks an item done regardless of its current state.
func (s *Service) Complete(ctx context.Context, userID snowflake.ID, day int, itemID string) error {
	if err := s.validateItem(day, itemID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.insertCompletion(ctx, tx, userID, day, itemID)
	})
}

// Uncomplete clears an item regardless of its current state.
func (s *Service) Uncomplete(ctx context.Context, userID snowflake.ID, day int, itemID string) error {
	if err := s.validateItem(day, itemID); err != nil {
		return err
	}
	_, err := s.repo.Delete(ctx, s.db, userID, day, itemID)
	return err
}

func (s *Service) insertCompletion(ctx context.Context, tx *gorm.DB, userID snowflake.ID, day int, itemID string) error {
	completion := checklistdomain.ChecklistCompletion{
		ID:        s.genID.Generate(),
		UserID:    userID,
		Day:       day,
		ItemID:    itemID,
		CreatedAt: s.clock.Now(),
	}
	// An already-complete item is a repository-level no-op.
	return s.repo.Insert(ctx, tx, &completion)
}

func (s *Service) CompletedItemIDs(ctx context.Context, userID snowflake.ID, day int) ([]string, error) {
	cur := s.curriculum.Get()
	if day < 0 || day > cur.LastDay() {
		return nil, checklistdomain.ErrInvalidDay
	}
	return s.repo.ListItemIDs(ctx, s.db, userID, day)
}

func (s *Service) IsItemCompleted(ctx context.Context, userID snowflake.ID, day int, itemID string) (bool, error) {
	if err := s.validateItem(day, itemID); err != nil {
		return false, err
	}
	return s.repo.Exists(ctx, s.db, userID, day, itemID)
}

func (s *Service) Summary(ctx context.Context, userID snowflake.ID, day int) (*checklistdomain.DaySummary, error) {
	cur := s.curriculum.Get()
	if day < 0 || day > cur.LastDay() {
		return nil, checklistdomain.ErrInvalidDay
	}

	items, err := s.repo.ListItemIDs(ctx, s.db, userID, day)
	if err != nil {
		return nil, err
	}
	required := cur.RequiredItems(day)

	return &checklistdomain.DaySummary{
		Day:            day,
		CompletedItems: items,
		CompletedCount: len(items),
		RequiredCount:  required,
		Complete:       required > 0 && len(items) >= required,
	}, nil
}

func (s *Service) Overview(ctx context.Context, userID snowflake.ID) (map[int][]string, error) {
	rows, err := s.repo.ListByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	overview := make(map[int][]string)
	for _, row := range rows {
		overview[row.Day] = append(overview[row.Day], row.ItemID)
	}
	return overview, nil
}

func (s *Service) IsDayComplete(ctx context.Context, userID snowflake.ID, day int) (bool, error) {
	summary, err := s.Summary(ctx, userID, day)
	if err != nil {
		return false, err
	}
	return summary.Complete, nil
}
