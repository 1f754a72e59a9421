package collector

import (
	"context"
	"time"

	"codeberg.org/mutker/fleetinv/internal/backend"
	"codeberg.org/mutker/fleetinv/internal/logger"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 500 * time.Millisecond
	defaultRetryStep   = 500 * time.Millisecond
)

// RetryPolicy bounds re-attempts of transient fetch failures. The first
// retry waits Delay; every further retry adds Step on top of the previous
// wait. Permanent failures are never retried.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Step        time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultMaxAttempts,
		Delay:       defaultRetryDelay,
		Step:        defaultRetryStep,
	}
}

func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return errFactory.WithMessage(ErrInvalidConfig, "retry attempts must be at least 1")
	}

	if p.Delay < 0 || p.Step < 0 {
		return errFactory.WithMessage(ErrInvalidConfig, "retry delays cannot be negative")
	}

	return nil
}

// Do runs op until it succeeds, fails permanently, or MaxAttempts is
// reached. Cancellation interrupts the wait between attempts.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	delay := p.Delay

	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}

		if attempt >= p.MaxAttempts || !backend.IsTransient(err) {
			return err
		}

		logger.Debug().
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("retrying transient failure")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay += p.Step
	}
}
