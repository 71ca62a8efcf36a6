package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/permagate/aogo/core"
)

// RetryPolicy bounds the dispatch retry loop. MaxRetries counts
// re-attempts after the first, so a policy of 3 allows 4 attempts.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      core.DefaultMaxRetries,
		InitialInterval: core.DefaultInitialInterval,
		MaxInterval:     10 * time.Second,
		Multiplier:      core.DefaultBackoffFactor,
		Jitter:          core.DefaultJitter,
	}
}

// retries applies a per-call override: 0 keeps the policy default and
// a negative value disables retries.
func (p RetryPolicy) retries(override int) uint64 {
	switch {
	case override < 0:
		return 0
	case override == 0:
		return uint64(p.MaxRetries)
	default:
		return uint64(override)
	}
}

// retry runs fn under the policy. Transient failures back off and
// retry; everything else is surfaced immediately. Cancellation wins
// over both.
func (p RetryPolicy) retry(ctx context.Context, op string, maxRetries uint64, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.Jitter
	b.MaxElapsedTime = 0

	attempt := func() error {
		attemptsTotal.WithLabelValues(op).Inc()
		err := fn()
		if err == nil {
			return nil
		}
		if core.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx))
	if err == nil {
		return nil
	}

	failuresTotal.WithLabelValues(op).Inc()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return core.NewCancelledError(err)
	}
	return err
}
