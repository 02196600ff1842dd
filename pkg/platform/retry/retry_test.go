package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shepherd/pkg/platform/sentinel"
)

func noSleep() (Option, *[]time.Duration) {
	var delays []time.Duration
	return withSleep(func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}), &delays
}

func TestDoRetriesOnlyUnavailable(t *testing.T) {
	ctx := context.Background()
	unavailable := fmt.Errorf("dial: %w", sentinel.ErrUnavailable)

	t.Run("succeeds after transient failures", func(t *testing.T) {
		sleep, delays := noSleep()
		p := New(sleep)
		calls := 0
		err := p.Do(ctx, func(context.Context) error {
			calls++
			if calls < 3 {
				return unavailable
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{50 * time.Millisecond, 100 * time.Millisecond}, *delays)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		sleep, _ := noSleep()
		p := New(sleep)
		calls := 0
		err := p.Do(ctx, func(context.Context) error {
			calls++
			return unavailable
		})
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
		assert.Equal(t, 3, calls)
	})

	t.Run("factual errors propagate immediately", func(t *testing.T) {
		sleep, _ := noSleep()
		p := New(sleep)
		calls := 0
		err := p.Do(ctx, func(context.Context) error {
			calls++
			return sentinel.ErrNotFound
		})
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.Equal(t, 1, calls)
	})

	t.Run("respects attempt override", func(t *testing.T) {
		sleep, _ := noSleep()
		p := New(WithAttempts(5), sleep)
		calls := 0
		_ = p.Do(ctx, func(context.Context) error {
			calls++
			return unavailable
		})
		assert.Equal(t, 5, calls)
	})

	t.Run("cancelled context stops the loop", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		p := New()
		calls := 0
		err := p.Do(cancelled, func(context.Context) error {
			calls++
			return unavailable
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
