package collector_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/fleetinv/internal/backend"
	"codeberg.org/mutker/fleetinv/internal/collector"
)

func TestRetryPolicyPermanentFailure(t *testing.T) {
	policy := collector.RetryPolicy{MaxAttempts: 5, Delay: time.Millisecond}
	attempts := 0

	err := policy.Do(context.Background(), func() error {
		attempts++

		return &backend.StatusError{StatusCode: http.StatusNotFound}
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "permanent failures are never retried")
}

func TestRetryPolicyTransientRecovery(t *testing.T) {
	policy := collector.RetryPolicy{MaxAttempts: 5, Delay: time.Millisecond}
	attempts := 0

	err := policy.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return &backend.StatusError{StatusCode: http.StatusServiceUnavailable}
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryPolicyExhaustion(t *testing.T) {
	policy := collector.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond, Step: time.Millisecond}
	attempts := 0

	err := policy.Do(context.Background(), func() error {
		attempts++

		return &backend.StatusError{StatusCode: http.StatusBadGateway}
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts, "attempts stop at the policy bound")

	var statusErr *backend.StatusError
	require.ErrorAs(t, err, &statusErr, "the last failure is returned as-is")
}

func TestRetryPolicyCancelledDuringWait(t *testing.T) {
	policy := collector.RetryPolicy{MaxAttempts: 3, Delay: 10 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := policy.Do(ctx, func() error {
		return &backend.StatusError{StatusCode: http.StatusServiceUnavailable}
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second, "cancellation must interrupt the backoff wait")
}

func TestRetryPolicyValidate(t *testing.T) {
	require.NoError(t, collector.DefaultRetryPolicy().Validate())

	err := collector.RetryPolicy{MaxAttempts: 0}.Validate()
	require.Error(t, err)

	err = collector.RetryPolicy{MaxAttempts: 1, Delay: -time.Second}.Validate()
	require.Error(t, err)
}
