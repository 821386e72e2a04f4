package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/inventory/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyHostIngestAccount = "inventory:ratelimit:ingest:%s"

// Limiter throttles host ingest per account.
type Limiter interface {
	AllowAccount(ctx context.Context, account string) (*RateLimitResult, error)
}

type Params struct {
	fx.In

	Client *redis.Client `optional:"true"`
	Config config.Config
	Log    *zap.Logger
}

type IngestLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewIngestLimiter returns nil when limiting is off or Redis is not
// configured; callers treat a nil Limiter as unlimited.
func NewIngestLimiter(p Params) Limiter {
	cfg := p.Config.RateLimit
	if !cfg.Enabled {
		return nil
	}
	if p.Client == nil {
		p.Log.Named("ratelimit").Warn("ingest rate limit needs redis, running unlimited")
		return nil
	}
	if cfg.AccountRate <= 0 || cfg.AccountBurst <= 0 {
		p.Log.Named("ratelimit").Warn("ingest rate limit must be positive, running unlimited",
			zap.Float64("rate", cfg.AccountRate),
			zap.Int("burst", cfg.AccountBurst),
		)
		return nil
	}
	return &IngestLimiter{
		bucket: NewTokenBucket(p.Client),
		rate:   cfg.AccountRate,
		burst:  cfg.AccountBurst,
	}
}

func (l *IngestLimiter) AllowAccount(ctx context.Context, account string) (*RateLimitResult, error) {
	return l.bucket.Allow(ctx, accountKey(account), l.rate, l.burst)
}

func accountKey(account string) string {
	return fmt.Sprintf(keyHostIngestAccount, strings.TrimSpace(account))
}
