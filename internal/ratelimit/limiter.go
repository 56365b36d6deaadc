// Package ratelimit throttles outbound calls to the upstream movie API.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/release-calendar/internal/metrics"
)

// Defaults seeded by the config layer. New treats a zero Config field as
// disabling that behavior.
const (
	DefaultRequestsPerSecond = 4.0
	DefaultPauseEvery        = 40
	DefaultPauseDuration     = 10 * time.Second
)

// Config holds rate limiter configuration.
type Config struct {
	// RequestsPerSecond bounds call spacing. Zero or negative disables spacing.
	RequestsPerSecond float64
	// PauseEvery triggers an extra pause after every N calls. Zero disables it.
	PauseEvery int
	// PauseDuration is the length of the periodic pause.
	PauseDuration time.Duration
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Limiter spaces calls at a fixed rate and inserts a longer pause every PauseEvery calls.
type Limiter struct {
	mu            sync.Mutex
	limiter       *rate.Limiter
	pauseEvery    int
	pauseDuration time.Duration
	count         int
	sleep         SleepFunc
	logger        *zap.Logger
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithSleeper replaces the sleep function, mostly for tests.
func WithSleeper(fn SleepFunc) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.sleep = fn
		}
	}
}

// New creates a Limiter.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	l := &Limiter{
		limiter:       rate.NewLimiter(limit, 1),
		pauseEvery:    cfg.PauseEvery,
		pauseDuration: cfg.PauseDuration,
		sleep:         sleepContext,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Unlimited returns a limiter that never blocks.
func Unlimited() *Limiter {
	return New(Config{}, nil)
}

// Count reports how many calls have passed through the limiter.
func (l *Limiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// WaitIfNeeded blocks until the next call is allowed. The only error is context cancellation.
func (l *Limiter) WaitIfNeeded(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	reservation := l.limiter.Reserve()
	if delay := reservation.Delay(); delay > 0 {
		if err := l.sleep(ctx, delay); err != nil {
			reservation.Cancel()
			return fmt.Errorf("rate limit wait: %w", err)
		}
		metrics.ObserveRateLimitDelay("spacing", delay)
	}

	l.count++
	if l.pauseEvery > 0 && l.pauseDuration > 0 && l.count%l.pauseEvery == 0 {
		l.logger.Info("pausing upstream requests",
			zap.Int("requests", l.count),
			zap.Duration("pause", l.pauseDuration),
		)
		if err := l.sleep(ctx, l.pauseDuration); err != nil {
			return fmt.Errorf("rate limit pause: %w", err)
		}
		metrics.ObserveRateLimitDelay("pause", l.pauseDuration)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
