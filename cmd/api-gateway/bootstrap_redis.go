package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	config "github.com/NordCoder/GetMoreSeo/internal/config/api-gateway"
)

// initRedis connects the rate limiter store. An unreachable Redis is logged
// and tolerated since the limiter fails open.
func initRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		logger.Warn("redis unreachable, rate limiting disabled until it recovers",
			zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	return rdb
}
