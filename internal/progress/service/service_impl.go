package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	checklistdomain "github.com/sprintline/sprintline/internal/checklist/domain"
	"github.com/sprintline/sprintline/internal/clock"
	"github.com/sprintline/sprintline/internal/config"
	enrollmentdomain "github.com/sprintline/sprintline/internal/enrollment/domain"
	"github.com/sprintline/sprintline/internal/observability/metrics"
	progressdomain "github.com/sprintline/sprintline/internal/progress/domain"
)

type Service struct {
	db  *gorm.DB
	cfg config.Config
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	repo       progressdomain.Repository
	enrollRepo enrollmentdomain.Repository
	checkRepo  checklistdomain.Repository
	curriculum *config.CurriculumHolder
	metrics    *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Cfg        config.Config
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       progressdomain.Repository
	EnrollRepo enrollmentdomain.Repository
	CheckRepo  checklistdomain.Repository
	Curriculum *config.CurriculumHolder
	Metrics    *metrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) progressdomain.Service {
	return &Service{
		db:         p.DB,
		cfg:        p.Cfg,
		log:        p.Log.Named("progress.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		enrollRepo: p.EnrollRepo,
		checkRepo:  p.CheckRepo,
		curriculum: p.Curriculum,
		metrics:    p.Metrics,
	}
}

// InitializeForEnrollment seeds one row per curriculum day inside the
// caller's transaction. Safe to retry: an existing run short-circuits
// and each insert is a no-op against a day row that already exists.
func (s *Service) InitializeForEnrollment(ctx context.Context, tx *gorm.DB, userID, enrollmentID snowflake.ID) error {
	count, err := s.repo.CountByUser(ctx, tx, userID)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := s.clock.Now()
	lastDay := s.curriculum.Get().LastDay()
	for day := 0; day <= lastDay; day++ {
		status := progressdomain.DayLocked
		if day == 0 {
			status = progressdomain.DayAvailable
		}
		row := progressdomain.DayProgress{
			ID:           s.genID.Generate(),
			UserID:       userID,
			EnrollmentID: enrollmentID,
			Day:          day,
			Status:       status,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.repo.Insert(ctx, tx, &row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) MarkTrainingWatched(ctx context.Context, userID snowflake.ID, day int) (*progressdomain.MarkResult, error) {
	return s.mark(ctx, userID, day, func(p *progressdomain.DayProgress) { p.TrainingWatched = true })
}

func (s *Service) MarkWorksheetCompleted(ctx context.Context, userID snowflake.ID, day int) (*progressdomain.MarkResult, error) {
	return s.mark(ctx, userID, day, func(p *progressdomain.DayProgress) { p.WorksheetCompleted = true })
}

func (s *Service) MarkProgressPosted(ctx context.Context, userID snowflake.ID, day int) (*progressdomain.MarkResult, error) {
	return s.mark(ctx, userID, day, func(p *progressdomain.DayProgress) { p.ProgressPosted = true })
}

// mark sets one flag and walks the state machine forward in a single
// transaction: first flag moves available to in_progress; once the
// day's predicate holds the day completes, the next day unlocks, and
// finishing the last day completes the enrollment. The day row is
// read under a row lock so two concurrent flag marks serialize
// instead of clobbering each other's flags.
func (s *Service) mark(ctx context.Context, userID snowflake.ID, day int, set func(*progressdomain.DayProgress)) (*progressdomain.MarkResult, error) {
	lastDay := s.curriculum.Get().LastDay()
	if day < 0 || day > lastDay {
		return nil, progressdomain.ErrInvalidDay
	}

	result := &progressdomain.MarkResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		progress, err := s.repo.FindByUserAndDayForUpdate(ctx, tx, userID, day)
		if err != nil {
			return err
		}
		if progress == nil {
			return progressdomain.ErrProgressNotFound
		}
		if progress.Status == progressdomain.DayLocked {
			return progressdomain.ErrDayLocked
		}

		now := s.clock.Now()
		set(progress)
		if progress.Status == progressdomain.DayAvailable {
			progress.Status = progressdomain.DayInProgress
		}

		alreadyCompleted := progress.Status == progressdomain.DayCompleted
		if !alreadyCompleted && progress.RequirementsMet() {
			progress.Status = progressdomain.DayCompleted
			progress.CompletedAt = &now
			result.Completed = true
		}

		progress.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, progress); err != nil {
			return err
		}
		result.Progress = progress

		if alreadyCompleted {
			result.Completed = true
			return nil
		}
		if !result.Completed {
			return nil
		}

		if day < lastDay {
			unlocked, err := s.unlockNextDay(ctx, tx, userID, day+1, now)
			if err != nil {
				return err
			}
			result.NextDayUnlocked = unlocked
			return nil
		}
		completed, err := s.completeEnrollment(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		result.SprintCompleted = completed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil && result.Completed && result.Progress != nil && result.Progress.CompletedAt != nil {
		s.metrics.RecordDayCompletion(ctx, day)
		if result.SprintCompleted {
			s.metrics.RecordSprintCompletion(ctx)
		}
	}
	return result, nil
}

// unlockNextDay makes the following day available, but only from
// locked: a day that already advanced past available is never moved
// back, so a redundant completion trigger is a no-op.
func (s *Service) unlockNextDay(ctx context.Context, tx *gorm.DB, userID snowflake.ID, day int, now time.Time) (bool, error) {
	next, err := s.repo.FindByUserAndDayForUpdate(ctx, tx, userID, day)
	if err != nil {
		return false, err
	}
	if next == nil || next.Status != progressdomain.DayLocked {
		return false, nil
	}
	next.Status = progressdomain.DayAvailable
	next.UpdatedAt = now
	if err := s.repo.Update(ctx, tx, next); err != nil {
		return false, err
	}
	return true, nil
}

// completeEnrollment moves the user's current enrollment to completed
// and stamps the credit window, inside the caller's transaction.
func (s *Service) completeEnrollment(ctx context.Context, tx *gorm.DB, userID snowflake.ID, now time.Time) (bool, error) {
	enrollment, err := s.enrollRepo.FindCurrentByUserForUpdate(ctx, tx, userID)
	if err != nil {
		return false, err
	}
	if enrollment == nil {
		s.log.Warn("final day completed without a current enrollment",
			zap.Int64("user_id", int64(userID)))
		return false, nil
	}
	if !enrollment.Complete(now, s.cfg.CreditDuration) {
		return false, nil
	}
	if err := s.enrollRepo.Update(ctx, tx, enrollment); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) GetByUserAndDay(ctx context.Context, userID snowflake.ID, day int) (*progressdomain.DayProgress, error) {
	if day < 0 || day > s.curriculum.Get().LastDay() {
		return nil, progressdomain.ErrInvalidDay
	}
	progress, err := s.repo.FindByUserAndDay(ctx, s.db, userID, day)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		return nil, progressdomain.ErrProgressNotFound
	}
	return progress, nil
}

func (s *Service) ListByUser(ctx context.Context, userID snowflake.ID) ([]progressdomain.DayProgress, error) {
	return s.repo.ListByUser(ctx, s.db, userID)
}

// CurrentDay is the highest day sitting in available or in_progress.
// With every day completed it reports the final day; with no rows at
// all (accounts predating enrollment-driven initialization) it derives
// the answer from checklist counts against the curriculum's required
// counts.
func (s *Service) CurrentDay(ctx context.Context, userID snowflake.ID) (int, error) {
	rows, err := s.repo.ListByUser(ctx, s.db, userID)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return s.currentDayFromChecklist(ctx, userID)
	}

	current := -1
	allCompleted := true
	for _, row := range rows {
		switch row.Status {
		case progressdomain.DayAvailable, progressdomain.DayInProgress:
			if row.Day > current {
				current = row.Day
			}
			allCompleted = false
		case progressdomain.DayLocked:
			allCompleted = false
		}
	}
	if current >= 0 {
		return current, nil
	}
	if allCompleted {
		return s.curriculum.Get().LastDay(), nil
	}
	return rows[0].Day, nil
}

// CurrentDayProgress resolves CurrentDay and fetches its full day row.
// Accounts whose current day is derived from checklist counts have no
// row to return, so they get a nil row.
func (s *Service) CurrentDayProgress(ctx context.Context, userID snowflake.ID) (int, *progressdomain.DayProgress, error) {
	day, err := s.CurrentDay(ctx, userID)
	if err != nil {
		return 0, nil, err
	}
	row, err := s.repo.FindByUserAndDay(ctx, s.db, userID, day)
	if err != nil {
		return 0, nil, err
	}
	return day, row, nil
}

func (s *Service) currentDayFromChecklist(ctx context.Context, userID snowflake.ID) (int, error) {
	cur := s.curriculum.Get()
	for day := 0; day <= cur.LastDay(); day++ {
		required := cur.RequiredItems(day)
		if required == 0 {
			continue
		}
		count, err := s.checkRepo.CountByDay(ctx, s.db, userID, day)
		if err != nil {
			return 0, err
		}
		if count < int64(required) {
			return day, nil
		}
	}
	return cur.LastDay(), nil
}
