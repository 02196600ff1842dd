// Package retry provides bounded retry with backoff for transient store failures.
// It belongs at the I/O boundary only; pure decision logic must never retry.
package retry

import (
	"context"
	"errors"
	"time"

	"shepherd/pkg/platform/sentinel"
)

// Policy controls how many attempts are made and how long to wait between them.
type Policy struct {
	attempts int
	backoff  time.Duration
	factor   int
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures a Policy instance.
type Option func(*Policy)

// WithAttempts sets the total number of attempts (first try included). Default is 3.
func WithAttempts(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.attempts = n
		}
	}
}

// WithBackoff sets the initial delay between attempts. Default is 50ms.
func WithBackoff(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.backoff = d
		}
	}
}

// withSleep replaces the sleep function, letting tests run without real delays.
func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Policy) {
		p.sleep = fn
	}
}

// New creates a retry policy with the given options.
func New(opts ...Option) *Policy {
	p := &Policy{
		attempts: 3,
		backoff:  50 * time.Millisecond,
		factor:   2,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Do runs fn up to the configured number of attempts, doubling the delay after
// each failure. Only sentinel.ErrUnavailable is retried: factual states such as
// ErrNotFound or ErrConflict will not change on a second read and propagate
// immediately.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	delay := p.backoff
	var err error
	for attempt := 0; attempt < p.attempts; attempt++ {
		if attempt > 0 {
			if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
				return sleepErr
			}
			delay *= time.Duration(p.factor)
		}
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sentinel.ErrUnavailable) {
			return err
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
