// Package resilience provides bounded, retried and panic-safe execution of
// pipeline agents plus per-run health tracking.
package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "stock-agents/internal/errors"
)

// GuardConfig bounds one guarded call.
type GuardConfig struct {
	// Timeout is the budget of each attempt
	Timeout time.Duration
	// Grace is how long a timed-out attempt may take to exit before a retry is allowed
	Grace time.Duration
	// MaxAttempts includes the first attempt; values below 1 mean 1
	MaxAttempts int
}

// DefaultGuardConfig returns one retry, a 30s budget and a 1s grace period.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout:     30 * time.Second,
		Grace:       time.Second,
		MaxAttempts: 2,
	}
}

// Attempt records one try of a guarded call.
type Attempt struct {
	Number   int
	Started  time.Time
	Duration time.Duration
	Err      error
	// Exited is false when a timed-out attempt was still running after the grace period.
	Exited bool
}

// Outcome is the result of a guarded call across all attempts.
type Outcome[T any] struct {
	Value    T
	Attempts []Attempt
	Err      error
}

// Retried reports whether the value came from a retry.
func (o Outcome[T]) Retried() bool {
	return len(o.Attempts) > 1
}

// Clock returns the current time. It is injected so tests can freeze it.
type Clock func() time.Time

// Execute runs fn with a per-attempt deadline, converting panics and timeouts
// into errors and retrying sequentially. A retry starts only once the previous
// attempt has returned; if it has not returned within the grace period the
// call gives up. Validation errors and a cancelled parent are not retried.
func Execute[T any](ctx context.Context, name string, cfg GuardConfig, clock Clock,
	fn func(ctx context.Context, attempt int) (T, error), onAttempt func(Attempt)) Outcome[T] {
	if clock == nil {
		clock = time.Now
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var out Outcome[T]
	for n := 1; n <= maxAttempts; n++ {
		value, att := runOnce(ctx, name, n, cfg, clock, fn)
		out.Attempts = append(out.Attempts, att)
		if onAttempt != nil {
			onAttempt(att)
		}
		if att.Err == nil {
			out.Value = value
			out.Err = nil
			return out
		}
		out.Err = att.Err
		if !att.Exited || ctx.Err() != nil || permanent(att.Err) {
			break
		}
	}
	return out
}

type attemptResult[T any] struct {
	value T
	err   error
}

func runOnce[T any](ctx context.Context, name string, n int, cfg GuardConfig, clock Clock,
	fn func(ctx context.Context, attempt int) (T, error)) (T, Attempt) {
	var zero T
	att := Attempt{Number: n, Started: clock(), Exited: true}

	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if cfg.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
	}
	defer cancel()

	done := make(chan attemptResult[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptResult[T]{err: apperrors.NewAgentExecutionError(name, "execute",
					fmt.Errorf("%w: %v", apperrors.ErrAgentPanic, r))}
			}
		}()
		v, err := fn(attemptCtx, n)
		done <- attemptResult[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		att.Duration = clock().Sub(att.Started)
		if r.err != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			r.err = apperrors.NewAgentTimeoutError(name, cfg.Timeout, n)
		}
		att.Err = r.err
		if r.err != nil {
			return zero, att
		}
		return r.value, att
	case <-attemptCtx.Done():
		att.Duration = clock().Sub(att.Started)
		if ctx.Err() != nil {
			att.Err = apperrors.NewAgentExecutionError(name, "execute", ctx.Err())
		} else {
			att.Err = apperrors.NewAgentTimeoutError(name, cfg.Timeout, n)
		}
	}

	// Wait for the abandoned attempt to observe cancellation.
	grace := time.NewTimer(cfg.Grace)
	defer grace.Stop()
	select {
	case <-done:
	case <-grace.C:
		att.Exited = false
	}
	return zero, att
}

func permanent(err error) bool {
	var ve *apperrors.ValidationError
	return apperrors.As(err, &ve)
}
