package ratelimit

import (
	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sprintline/sprintline/internal/clock"
	"github.com/sprintline/sprintline/internal/config"
)

// NewRedisClient returns nil when no address is configured; downstream
// consumers treat a nil client as "feature off".
func NewRedisClient(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func NewLimiter(cfg config.Config, client *redis.Client, conn *gorm.DB, genID *snowflake.Node, clk clock.Clock, log *zap.Logger) Limiter {
	if client != nil {
		log.Named("ratelimit").Info("using redis fixed-window limiter")
		return NewRedisLimiter(client, cfg.RateLimitRequests, cfg.RateLimitWindow)
	}
	log.Named("ratelimit").Info("using store-backed fixed-window limiter")
	return NewStoreLimiter(conn, genID, clk, cfg.RateLimitRequests, cfg.RateLimitWindow)
}

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewLocker),
	fx.Provide(NewLimiter),
)
