package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		var notified []int
		err := Do(ctx, fastConfig(5), func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		}, func(attempt int, _ time.Duration, _ error) {
			notified = append(notified, attempt)
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []int{1, 2}, notified)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := Do(ctx, fastConfig(3), func(context.Context) error {
			calls++
			return assert.AnError
		}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		calls := 0
		err := Do(ctx, fastConfig(5), func(context.Context) error {
			calls++
			return Permanent(assert.AnError)
		}, nil)
		assert.Equal(t, assert.AnError, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("context cancelled between attempts", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cfg := fastConfig(5)
		cfg.BaseDelay = time.Second
		err := Do(cctx, cfg, func(context.Context) error {
			cancel()
			return assert.AnError
		}, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDelay(t *testing.T) {
	cfg := Config{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	assert.Equal(t, time.Duration(0), Delay(cfg, 0))
	assert.Equal(t, 100*time.Millisecond, Delay(cfg, 1))
	assert.Equal(t, 400*time.Millisecond, Delay(cfg, 3))
	assert.Equal(t, time.Second, Delay(cfg, 10))

	cfg.Jitter = 0.5
	for i := 0; i < 20; i++ {
		d := Delay(cfg, 1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}
