package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstantPolicyAttempts(t *testing.T) {
	p := ConstantPolicy(10*time.Second, time.Minute)
	assert.Equal(t, 7, p.MaxAttempts)
	assert.Equal(t, 10*time.Second, p.InitialInterval)
	assert.Equal(t, 10*time.Second, p.MaxInterval)
}

func TestConstantPolicyGuardsZeroInterval(t *testing.T) {
	p := ConstantPolicy(0, time.Minute)
	assert.Greater(t, p.MaxAttempts, 0)
	assert.Greater(t, p.InitialInterval, time.Duration(0))

	p = ConstantPolicy(0, 0)
	assert.Greater(t, p.MaxAttempts, 0)
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), ConstantPolicy(time.Millisecond, time.Second), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnFatalError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), ConstantPolicy(time.Millisecond, time.Second), func() error {
		calls++
		return NewFatalError(fmt.Errorf("bad credentials"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, ConstantPolicy(50*time.Millisecond, time.Minute), func() error {
		return fmt.Errorf("not yet")
	})
	require.Error(t, err)
}
