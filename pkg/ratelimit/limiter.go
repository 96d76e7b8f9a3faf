package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrBudgetExhausted is returned by Wait while the error budget is critical.
var ErrBudgetExhausted = errors.New("request blocked: remote error budget exhausted")

var (
	errorsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storesync_errors_remaining",
		Help: "Remote failures still allowed in the current error budget window",
	})

	blocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storesync_ratelimit_blocks_total",
		Help: "Calls refused because the error budget was critical",
	})

	throttlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storesync_ratelimit_throttles_total",
		Help: "Calls slowed down because the error budget was low",
	})

	waitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storesync_ratelimit_wait_seconds",
		Help:    "Time spent waiting for a request slot",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// Config holds limiter configuration.
type Config struct {
	// RequestsPerSecond is the sustained call rate. <= 0 disables pacing.
	RequestsPerSecond float64

	// Burst is the token bucket size (default: max(1, RequestsPerSecond)).
	Burst int

	// ErrorBudget is the number of failures tolerated per window.
	ErrorBudget int

	// BudgetWindow is the length of one error budget window.
	BudgetWindow time.Duration

	// ThrottleDelay is added to each call while the budget is in warning state.
	ThrottleDelay time.Duration
}

// DefaultConfig returns a conservative configuration.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		Burst:             10,
		ErrorBudget:       100,
		BudgetWindow:      time.Minute,
		ThrottleDelay:     time.Second,
	}
}

// Limiter gates calls to one store. Safe for concurrent use.
type Limiter struct {
	limiter *rate.Limiter
	config  Config
	logger  zerolog.Logger

	mu    sync.Mutex
	state State
	now   func() time.Time
}

// New creates a limiter.
func New(cfg Config, logger zerolog.Logger) *Limiter {
	if cfg.ErrorBudget <= 0 {
		cfg.ErrorBudget = 100
	}
	if cfg.BudgetWindow <= 0 {
		cfg.BudgetWindow = time.Minute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = max(1, int(cfg.RequestsPerSecond))
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	l := &Limiter{
		limiter: rate.NewLimiter(limit, cfg.Burst),
		config:  cfg,
		logger:  logger,
		now:     time.Now,
	}
	l.state = State{ErrorsRemaining: cfg.ErrorBudget, ResetAt: l.now().Add(cfg.BudgetWindow)}
	l.state.UpdateHealth()
	return l
}

// Wait blocks until a call may proceed. It returns ErrBudgetExhausted while
// the error budget is critical, or the context error if ctx ends first.
func (l *Limiter) Wait(ctx context.Context) error {
	state := l.State()

	if state.NeedsCriticalBlock() {
		l.logger.Error().
			Int("errors_remaining", state.ErrorsRemaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Error budget critical - blocking call")
		blocksTotal.Inc()
		return ErrBudgetExhausted
	}

	start := time.Now()
	if state.NeedsThrottling() && l.config.ThrottleDelay > 0 {
		l.logger.Warn().
			Int("errors_remaining", state.ErrorsRemaining).
			Msg("Error budget low - throttling call")
		throttlesTotal.Inc()

		select {
		case <-ctx.Done():
			return fmt.Errorf("throttle wait: %w", ctx.Err())
		case <-time.After(l.config.ThrottleDelay):
		}
	}

	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate wait: %w", err)
	}

	waited := time.Since(start)
	waitSeconds.Observe(waited.Seconds())
	if waited > 100*time.Millisecond {
		l.logger.Debug().Dur("waited", waited).Msg("Call delayed by rate limiter")
	}
	return nil
}

// Report records the outcome of a remote call against the error budget.
func (l *Limiter) Report(err error) {
	if err == nil {
		return
	}

	l.mu.Lock()
	l.rollWindow()
	if l.state.ErrorsRemaining > 0 {
		l.state.ErrorsRemaining--
	}
	l.state.UpdateHealth()
	remaining := l.state.ErrorsRemaining
	l.mu.Unlock()

	errorsRemaining.Set(float64(remaining))
	if remaining == ErrorThresholdWarning-1 || remaining == ErrorThresholdCritical-1 {
		l.logger.Warn().
			Int("errors_remaining", remaining).
			Err(err).
			Msg("Error budget crossed a threshold")
	}
}

// State returns a snapshot of the error budget.
func (l *Limiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollWindow()
	return l.state
}

// rollWindow restarts the budget once the window has passed. Caller holds mu.
func (l *Limiter) rollWindow() {
	now := l.now()
	if now.Before(l.state.ResetAt) {
		return
	}
	l.state.ErrorsRemaining = l.config.ErrorBudget
	l.state.ResetAt = now.Add(l.config.BudgetWindow)
	l.state.UpdateHealth()
	errorsRemaining.Set(float64(l.state.ErrorsRemaining))
}
