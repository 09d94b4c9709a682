package service

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	checklistdomain "github.com/sprintline/sprintline/internal/checklist/domain"
	"github.com/sprintline/sprintline/internal/clock"
	"github.com/sprintline/sprintline/internal/config"
	enrollmentdomain "github.com/sprintline/sprintline/internal/enrollment/domain"
)

type PendingPurchaseService struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	repo       enrollmentdomain.PendingPurchaseRepository
	checkRepo  checklistdomain.Repository
	curriculum *config.CurriculumHolder
}

type PendingPurchaseServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       enrollmentdomain.PendingPurchaseRepository
	CheckRepo  checklistdomain.Repository
	Curriculum *config.CurriculumHolder
}

func NewPendingPurchaseService(p PendingPurchaseServiceParam) enrollmentdomain.PendingPurchaseService {
	return &PendingPurchaseService{
		db:         p.DB,
		log:        p.Log.Named("pendingpurchase.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		checkRepo:  p.CheckRepo,
		curriculum: p.Curriculum,
	}
}

// Create records a checkout started before the buyer has an account.
// While a pending row exists for the email, repeated calls refresh it
// in place, so an email never accumulates pending rows.
func (s *PendingPurchaseService) Create(ctx context.Context, req enrollmentdomain.CreatePendingPurchaseRequest) (*enrollmentdomain.PendingPurchase, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, enrollmentdomain.ErrInvalidEmail
	}
	sessionID := strings.TrimSpace(req.CheckoutSessionID)
	if sessionID == "" {
		return nil, enrollmentdomain.ErrInvalidSessionID
	}

	var purchase *enrollmentdomain.PendingPurchase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindPendingByEmailForUpdate(ctx, tx, email)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if existing != nil {
			existing.CheckoutSessionID = sessionID
			existing.Amount = req.Amount
			if req.Currency != "" {
				existing.Currency = strings.ToLower(req.Currency)
			}
			if req.LocalProgress != nil {
				existing.LocalProgress = req.LocalProgress
			}
			existing.UpdatedAt = now
			if err := s.repo.Update(ctx, tx, existing); err != nil {
				return err
			}
			purchase = existing
			return nil
		}

		purchase = &enrollmentdomain.PendingPurchase{
			ID:                s.genID.Generate(),
			Email:             email,
			CheckoutSessionID: sessionID,
			Status:            enrollmentdomain.PendingPurchasePending,
			Amount:            req.Amount,
			Currency:          "usd",
			LocalProgress:     req.LocalProgress,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if req.Currency != "" {
			purchase.Currency = strings.ToLower(req.Currency)
		}
		inserted, err := s.repo.Insert(ctx, tx, purchase)
		if err != nil {
			return err
		}
		if !inserted {
			reread, err := s.repo.FindBySessionID(ctx, tx, sessionID)
			if err != nil {
				return err
			}
			if reread == nil {
				return gorm.ErrRecordNotFound
			}
			purchase = reread
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

// Complete marks the purchase paid. Redelivered confirmations pass
// through the already-completed row unchanged.
func (s *PendingPurchaseService) Complete(ctx context.Context, sessionID string) (*enrollmentdomain.PendingPurchase, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, enrollmentdomain.ErrInvalidSessionID
	}

	var purchase *enrollmentdomain.PendingPurchase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.repo.FindBySessionIDForUpdate(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if found == nil {
			return enrollmentdomain.ErrPendingPurchaseNotFound
		}
		if found.Status == enrollmentdomain.PendingPurchaseCompleted {
			purchase = found
			return nil
		}

		now := s.clock.Now()
		found.Status = enrollmentdomain.PendingPurchaseCompleted
		found.CompletedAt = &now
		found.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, found); err != nil {
			return err
		}
		purchase = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

func (s *PendingPurchaseService) ExpireStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := s.clock.Now()
	return s.repo.ExpireStale(ctx, s.db, now.Add(-olderThan), now)
}

// SyncLocalProgress replays the checklist state a buyer accumulated
// before signing up. Each insert is existence-guarded and the unique
// index absorbs races, so replaying twice changes nothing.
func (s *PendingPurchaseService) SyncLocalProgress(ctx context.Context, tx *gorm.DB, userID snowflake.ID, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	purchase, err := s.repo.FindCompletedByEmail(ctx, tx, email)
	if err != nil {
		return err
	}
	if purchase == nil || len(purchase.LocalProgress) == 0 {
		return nil
	}

	cur := s.curriculum.Get()
	for dayKey, raw := range purchase.LocalProgress {
		day, err := strconv.Atoi(dayKey)
		if err != nil || day < 0 || day > cur.LastDay() {
			s.log.Warn("skipping local progress for unknown day", zap.String("day", dayKey))
			continue
		}
		items, ok := raw.([]any)
		if !ok {
			continue
		}
		known := cur.ItemIDs(day)
		for _, rawItem := range items {
			itemID, ok := rawItem.(string)
			if !ok || !slices.Contains(known, itemID) {
				continue
			}
			exists, err := s.checkRepo.Exists(ctx, tx, userID, day, itemID)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			completion := checklistdomain.ChecklistCompletion{
				ID:        s.genID.Generate(),
				UserID:    userID,
				Day:       day,
				ItemID:    itemID,
				CreatedAt: s.clock.Now(),
			}
			if err := s.checkRepo.Insert(ctx, tx, &completion); err != nil {
				return err
			}
		}
	}
	return nil
}
