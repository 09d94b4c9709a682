package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/sprintline/sprintline/internal/checklist"
	checklistdomain "github.com/sprintline/sprintline/internal/checklist/domain"
	"github.com/sprintline/sprintline/internal/clock"
	"github.com/sprintline/sprintline/internal/config"
	"github.com/sprintline/sprintline/internal/enrollment"
	enrollmentdomain "github.com/sprintline/sprintline/internal/enrollment/domain"
	"github.com/sprintline/sprintline/internal/observability"
	obsmiddleware "github.com/sprintline/sprintline/internal/observability/logger"
	obsmetrics "github.com/sprintline/sprintline/internal/observability/metrics"
	obstracing "github.com/sprintline/sprintline/internal/observability/tracing"
	"github.com/sprintline/sprintline/internal/progress"
	progressdomain "github.com/sprintline/sprintline/internal/progress/domain"
	"github.com/sprintline/sprintline/internal/ratelimit"
	"github.com/sprintline/sprintline/internal/user"
	userdomain "github.com/sprintline/sprintline/internal/user/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	user.Module,
	checklist.Module,
	progress.Module,
	enrollment.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	genID  *snowflake.Node
	clock  clock.Clock

	userSvc       userdomain.Service
	checklistSvc  checklistdomain.Service
	progressSvc   progressdomain.Service
	enrollmentSvc enrollmentdomain.Service
	purchaseSvc   enrollmentdomain.PendingPurchaseService
	cohortRepo    enrollmentdomain.CohortRepository
	limiter       ratelimit.Limiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin   *gin.Engine
	Cfg   config.Config
	DB    *gorm.DB
	GenID *snowflake.Node
	Clock clock.Clock

	UserSvc       userdomain.Service
	ChecklistSvc  checklistdomain.Service
	ProgressSvc   progressdomain.Service
	EnrollmentSvc enrollmentdomain.Service
	PurchaseSvc   enrollmentdomain.PendingPurchaseService
	CohortRepo    enrollmentdomain.CohortRepository
	Limiter       ratelimit.Limiter

	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		clock:         p.Clock,
		userSvc:       p.UserSvc,
		checklistSvc:  p.ChecklistSvc,
		progressSvc:   p.ProgressSvc,
		enrollmentSvc: p.EnrollmentSvc,
		purchaseSvc:   p.PurchaseSvc,
		cohortRepo:    p.CohortRepo,
		limiter:       p.Limiter,
		obsMetrics:    p.ObsMetrics,
	}
	svc.registerRoutes()
	return svc
}

func (s *Server) registerRoutes() {
	r := s.engine

	// Pre-account surface: no resolved user yet.
	r.POST("/api/pending-purchases", s.CreatePendingPurchase)
	r.POST("/webhooks/payment", s.HandlePaymentWebhook)
	r.POST("/api/users", s.CreateUser)

	api := r.Group("/api", s.UserRequired())
	{
		api.GET("/users/me", s.GetCurrentUser)

		api.POST("/checklist/toggle", s.ToggleChecklistItem)
		api.POST("/checklist/complete", s.CompleteChecklistItem)
		api.POST("/checklist/uncomplete", s.UncompleteChecklistItem)
		api.GET("/checklist", s.GetChecklistOverview)
		api.GET("/checklist/days/:day", s.GetChecklistDay)

		api.GET("/progress", s.ListProgress)
		api.GET("/progress/current-day", s.GetCurrentDay)
		api.GET("/progress/days/:day", s.GetDayProgress)
		api.POST("/progress/days/:day/training", s.MarkTrainingWatched)
		api.POST("/progress/days/:day/worksheet", s.MarkWorksheetCompleted)
		api.POST("/progress/days/:day/post", s.MarkProgressPosted)

		api.POST("/enrollments", s.CreatePendingEnrollment)
		api.GET("/enrollments/current", s.GetCurrentEnrollment)
		api.POST("/enrollments/:id/complete", s.MarkEnrollmentCompleted)
		api.POST("/enrollments/:id/credit", s.ApplyEnrollmentCredit)

		api.POST("/rate-limit/check", s.CheckRateLimit)
		api.GET("/rate-limit/status", s.GetRateLimitStatus)
	}
}
