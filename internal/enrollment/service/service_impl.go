package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sprintline/sprintline/internal/clock"
	"github.com/sprintline/sprintline/internal/config"
	enrollmentdomain "github.com/sprintline/sprintline/internal/enrollment/domain"
	"github.com/sprintline/sprintline/internal/observability/metrics"
)

type Service struct {
	db  *gorm.DB
	cfg config.Config
	log *zap.Logger

	genID       *snowflake.Node
	clock       clock.Clock
	repo        enrollmentdomain.Repository
	cohortRepo  enrollmentdomain.CohortRepository
	initializer enrollmentdomain.ProgressInitializer
	metrics     *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Cfg        config.Config
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       enrollmentdomain.Repository
	CohortRepo enrollmentdomain.CohortRepository

	Initializer enrollmentdomain.ProgressInitializer `optional:"true"`
	Metrics     *metrics.Metrics                     `optional:"true"`
}

func NewService(p ServiceParam) enrollmentdomain.Service {
	return &Service{
		db:          p.DB,
		cfg:         p.Cfg,
		log:         p.Log.Named("enrollment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		cohortRepo:  p.CohortRepo,
		initializer: p.Initializer,
		metrics:     p.Metrics,
	}
}

// CreatePending records checkout intent for a (user, cohort). Calling
// it again while the enrollment is still pending swaps the checkout
// session id in place, so retried checkouts never pile up rows.
func (s *Service) CreatePending(ctx context.Context, req enrollmentdomain.CreatePendingRequest) (*enrollmentdomain.Enrollment, error) {
	sessionID := strings.TrimSpace(req.CheckoutSessionID)
	if sessionID == "" {
		return nil, enrollmentdomain.ErrInvalidSessionID
	}

	var enrollment *enrollmentdomain.Enrollment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cohort, err := s.cohortRepo.FindByID(ctx, tx, req.CohortID)
		if err != nil {
			return err
		}
		if cohort == nil {
			return enrollmentdomain.ErrCohortNotFound
		}

		existing, err := s.repo.FindByUserAndCohortForUpdate(ctx, tx, req.UserID, req.CohortID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Status == enrollmentdomain.EnrollmentPending && existing.CheckoutSessionID != sessionID {
				existing.CheckoutSessionID = sessionID
				existing.UpdatedAt = s.clock.Now()
				if err := s.repo.Update(ctx, tx, existing); err != nil {
					return err
				}
			}
			enrollment = existing
			return nil
		}

		now := s.clock.Now()
		enrollment = &enrollmentdomain.Enrollment{
			ID:                s.genID.Generate(),
			UserID:            req.UserID,
			CohortID:          req.CohortID,
			Status:            enrollmentdomain.EnrollmentPending,
			Currency:          "usd",
			CheckoutSessionID: sessionID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		inserted, err := s.repo.Insert(ctx, tx, enrollment)
		if err != nil {
			return err
		}
		if !inserted {
			reread, err := s.repo.FindByUserAndCohort(ctx, tx, req.UserID, req.CohortID)
			if err != nil {
				return err
			}
			if reread == nil {
				return gorm.ErrRecordNotFound
			}
			enrollment = reread
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return enrollment, nil
}

// Activate turns a pending enrollment active on payment confirmation
// and seeds the user's day rows, all in one transaction. Webhook
// redelivery and double purchases resolve to the already-held
// enrollment instead of a second activation.
func (s *Service) Activate(ctx context.Context, req enrollmentdomain.ActivateRequest) (*enrollmentdomain.Enrollment, error) {
	sessionID := strings.TrimSpace(req.CheckoutSessionID)
	if sessionID == "" {
		return nil, enrollmentdomain.ErrInvalidSessionID
	}

	var enrollment *enrollmentdomain.Enrollment
	activated := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.repo.FindBySessionIDForUpdate(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if found == nil {
			return enrollmentdomain.ErrEnrollmentNotFound
		}
		if found.Status != enrollmentdomain.EnrollmentPending {
			enrollment = found
			return nil
		}

		current, err := s.repo.FindCurrentByUserForUpdate(ctx, tx, found.UserID)
		if err != nil {
			return err
		}
		if current != nil {
			enrollment = current
			return nil
		}

		now := s.clock.Now()
		found.Status = enrollmentdomain.EnrollmentActive
		found.EnrolledAt = &now
		found.PaymentIntentID = req.PaymentIntentID
		found.AmountPaid = req.AmountPaid
		if req.Currency != "" {
			found.Currency = strings.ToLower(req.Currency)
		}
		found.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, found); err != nil {
			return err
		}

		if s.initializer != nil {
			if err := s.initializer.InitializeForEnrollment(ctx, tx, found.UserID, found.ID); err != nil {
				return err
			}
		}

		enrollment = found
		activated = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if activated && s.metrics != nil {
		s.metrics.RecordEnrollmentActivation(ctx)
	}
	return enrollment, nil
}

// MarkCompleted is the admin/backfill path to completion; the organic
// path is finishing the final day. Already-completed enrollments pass
// through unchanged.
func (s *Service) MarkCompleted(ctx context.Context, enrollmentID snowflake.ID) (*enrollmentdomain.Enrollment, error) {
	var enrollment *enrollmentdomain.Enrollment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.repo.FindByIDForUpdate(ctx, tx, enrollmentID)
		if err != nil {
			return err
		}
		if found == nil {
			return enrollmentdomain.ErrEnrollmentNotFound
		}
		if found.Complete(s.clock.Now(), s.cfg.CreditDuration) {
			if err := s.repo.Update(ctx, tx, found); err != nil {
				return err
			}
		}
		enrollment = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return enrollment, nil
}

// ApplyCredit redeems the completion credit while its window is open.
func (s *Service) ApplyCredit(ctx context.Context, enrollmentID snowflake.ID) (*enrollmentdomain.Enrollment, error) {
	var enrollment *enrollmentdomain.Enrollment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.repo.FindByIDForUpdate(ctx, tx, enrollmentID)
		if err != nil {
			return err
		}
		if found == nil {
			return enrollmentdomain.ErrEnrollmentNotFound
		}
		if found.Status == enrollmentdomain.EnrollmentCreditApplied {
			enrollment = found
			return nil
		}
		if found.Status != enrollmentdomain.EnrollmentCompleted {
			return enrollmentdomain.ErrEnrollmentNotCompleted
		}

		now := s.clock.Now()
		if !found.CreditWindowOpen(now) {
			return enrollmentdomain.ErrCreditWindowClosed
		}
		found.Status = enrollmentdomain.EnrollmentCreditApplied
		found.CreditAppliedAt = &now
		found.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, found); err != nil {
			return err
		}
		enrollment = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (s *Service) GetByID(ctx context.Context, enrollmentID snowflake.ID) (*enrollmentdomain.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, s.db, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, enrollmentdomain.ErrEnrollmentNotFound
	}
	return enrollment, nil
}

func (s *Service) GetCurrentByUser(ctx context.Context, userID snowflake.ID) (*enrollmentdomain.Enrollment, error) {
	enrollment, err := s.repo.FindCurrentByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, enrollmentdomain.ErrEnrollmentNotFound
	}
	return enrollment, nil
}
