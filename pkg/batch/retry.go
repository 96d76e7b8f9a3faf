package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// RetryPolicy holds the configuration for per-element retry.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts (including the initial call).
	// Values <= 1 disable retry.
	MaxAttempts int

	// InitialBackoff is the first (or, when Constant, every) backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff caps exponential growth.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64

	// Constant switches from exponential to fixed backoff.
	Constant bool
}

// DefaultRetryPolicy returns the default retry configuration.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// NoRetry runs every element exactly once.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// Enabled reports whether the policy retries at all.
func (p RetryPolicy) Enabled() bool {
	return p.MaxAttempts > 1
}

func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff
	if p.Constant {
		b = backoff.NewConstantBackOff(p.InitialBackoff)
	} else {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = p.InitialBackoff
		exp.MaxInterval = p.MaxBackoff
		if p.BackoffMultiplier > 0 {
			exp.Multiplier = p.BackoffMultiplier
		}
		// ±20% jitter; attempts, not elapsed time, bound the retry.
		exp.RandomizationFactor = 0.2
		exp.MaxElapsedTime = 0
		b = exp
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)
}

// Retry executes fn under the policy. Permanent errors (see Classify) stop
// immediately. When transient errors exhaust the attempts the last error is
// returned wrapped in ErrRetryExhausted. The attempt count is returned too.
func Retry(ctx context.Context, name string, policy RetryPolicy, fn func() error) (int, error) {
	attempts := 0
	if !policy.Enabled() {
		attempts = 1
		return attempts, fn()
	}

	op := func() error {
		attempts++
		err := fn()
		if err != nil && Classify(err) == ErrorClassPermanent {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		retriesTotal.WithLabelValues(name).Inc()
		log.Debug().
			Str("batch", name).
			Int("attempt", attempts).
			Dur("backoff", wait).
			Err(err).
			Msg("Retrying element after backoff")
	}

	err := backoff.RetryNotify(op, policy.newBackOff(ctx), notify)
	if err == nil {
		if attempts > 1 {
			log.Info().
				Str("batch", name).
				Int("attempt", attempts).
				Msg("Element succeeded after retry")
		}
		return attempts, nil
	}

	if attempts >= policy.MaxAttempts && Classify(err) == ErrorClassTransient {
		retryExhaustedTotal.WithLabelValues(name).Inc()
		log.Warn().
			Str("batch", name).
			Int("max_attempts", policy.MaxAttempts).
			Err(err).
			Msg("Retry attempts exhausted")
		return attempts, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, err)
	}
	return attempts, err
}
