// Package scheduler runs the periodic sweeps: expiring stale
// pre-account purchases and closing lapsed completion credits.
package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sprintline/sprintline/internal/clock"
	"github.com/sprintline/sprintline/internal/config"
	enrollmentdomain "github.com/sprintline/sprintline/internal/enrollment/domain"
	"github.com/sprintline/sprintline/internal/observability/metrics"
	"github.com/sprintline/sprintline/internal/ratelimit"
)

var ErrInvalidConfig = errors.New("scheduler missing required dependencies")

const sweepLockKey = "sprintline:scheduler:sweep"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Cfg         config.Config
	Clock       clock.Clock
	EnrollRepo  enrollmentdomain.Repository
	PurchaseSvc enrollmentdomain.PendingPurchaseService

	Locker  *ratelimit.Locker `optional:"true"`
	Metrics *metrics.Metrics  `optional:"true"`
}

type Scheduler struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         config.Config
	clock       clock.Clock
	enrollRepo  enrollmentdomain.Repository
	purchaseSvc enrollmentdomain.PendingPurchaseService
	locker      *ratelimit.Locker
	metrics     *metrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.EnrollRepo == nil || p.PurchaseSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:          p.DB,
		log:         p.Log.Named("scheduler"),
		cfg:         p.Cfg,
		clock:       p.Clock,
		enrollRepo:  p.EnrollRepo,
		purchaseSvc: p.PurchaseSvc,
		locker:      p.Locker,
		metrics:     p.Metrics,
	}, nil
}

// RunOnce executes a single sweep. With a locker configured only one
// instance sweeps per interval; without one every call sweeps, which
// is harmless since both jobs are idempotent updates.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.locker != nil {
		token, ok, err := s.locker.TryLock(ctx, sweepLockKey, s.cfg.SchedulerInterval)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Debug("sweep lock held elsewhere, skipping")
			return nil
		}
		defer func() {
			if err := s.locker.Release(ctx, sweepLockKey, token); err != nil {
				s.log.Warn("failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	if err := s.expireStalePurchases(ctx); err != nil {
		return err
	}
	return s.expireCredits(ctx)
}

func (s *Scheduler) expireStalePurchases(ctx context.Context) error {
	swept, err := s.purchaseSvc.ExpireStale(ctx, s.cfg.PendingPurchaseTTL)
	if err != nil {
		return err
	}
	if swept > 0 {
		s.log.Info("expired stale pending purchases", zap.Int64("count", swept))
		if s.metrics != nil {
			s.metrics.RecordSweepExpiration(ctx, "pending_purchase", swept)
		}
	}
	return nil
}

func (s *Scheduler) expireCredits(ctx context.Context) error {
	swept, err := s.enrollRepo.ExpireCredits(ctx, s.db, s.clock.Now())
	if err != nil {
		return err
	}
	if swept > 0 {
		s.log.Info("expired lapsed completion credits", zap.Int64("count", swept))
		if s.metrics != nil {
			s.metrics.RecordSweepExpiration(ctx, "credit", swept)
		}
	}
	return nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SchedulerInterval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.log.Error("sweep failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.log.Error("sweep failed", zap.Error(err))
			}
		}
	}
}
