// AngelaMos | 2026
// pacing.go

// Package pacing spaces outbound completion calls so the upstream rate
// limit is respected without blanket sleeps.
package pacing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/config"
)

// Pacer blocks until the next upstream call may start or ctx is done.
type Pacer interface {
	Wait(ctx context.Context) error
}

type Noop struct{}

func (Noop) Wait(ctx context.Context) error {
	return ctx.Err()
}

type Local struct {
	limiter *rate.Limiter
}

func NewLocal(interval time.Duration, burst int) *Local {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Local{limiter: rate.NewLimiter(limit, max(burst, 1))}
}

func (l *Local) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacing wait: %w", err)
	}
	return nil
}

// Redis shares one call budget across every replica through redis_rate.
// When Redis is unreachable it degrades to a process-local bucket.
type Redis struct {
	limiter  *redis_rate.Limiter
	key      string
	limit    redis_rate.Limit
	fallback *Local
	logger   *slog.Logger
}

const redisKey = "pacing:llm"

func NewRedis(
	rdb *redis.Client,
	interval time.Duration,
	burst int,
	logger *slog.Logger,
) *Redis {
	return &Redis{
		limiter: redis_rate.NewLimiter(rdb),
		key:     redisKey,
		limit: redis_rate.Limit{
			Rate:   1,
			Burst:  max(burst, 1),
			Period: interval,
		},
		fallback: NewLocal(interval, burst),
		logger:   logger,
	}
}

func (p *Redis) Wait(ctx context.Context) error {
	for {
		res, err := p.limiter.Allow(ctx, p.key, p.limit)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("pacing wait: %w", ctx.Err())
			}
			p.logger.Warn("redis pacer unavailable, pacing locally",
				"error", err,
			)
			return p.fallback.Wait(ctx)
		}

		if res.Allowed > 0 {
			return nil
		}

		timer := time.NewTimer(res.RetryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("pacing wait: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// New builds the pacer selected by cfg.Pacing.
func New(
	cfg config.AnalysisConfig,
	rdb *redis.Client,
	logger *slog.Logger,
) (Pacer, error) {
	switch cfg.Pacing {
	case config.PacingLocal, "":
		return NewLocal(cfg.CallInterval, cfg.CallBurst), nil
	case config.PacingRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis pacing requires a redis client")
		}
		if cfg.CallInterval <= 0 {
			return NewLocal(0, cfg.CallBurst), nil
		}
		return NewRedis(rdb, cfg.CallInterval, cfg.CallBurst, logger), nil
	default:
		return nil, fmt.Errorf("unknown pacing backend %q", cfg.Pacing)
	}
}
