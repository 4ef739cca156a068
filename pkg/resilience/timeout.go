package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAttemptTimeout marks a call abandoned after its own time limit while the
// caller's context was still live.
var ErrAttemptTimeout = errors.New("attempt timed out")

// CallWithTimeout runs fn on its own goroutine under a deadline derived from
// ctx and returns its result. If the limit passes first the call is
// abandoned: whatever it returns later is dropped and never reaches the
// caller. A non-positive timeout calls fn directly.
func CallWithTimeout[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(attemptCtx)
		done <- result{value: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && attemptCtx.Err() != nil {
			return zero, fmt.Errorf("%s: %w after %v: %w", name, ErrAttemptTimeout, timeout, r.err)
		}
		return r.value, r.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: %w", name, ctx.Err())
		}
		return zero, fmt.Errorf("%s: %w after %v: %w", name, ErrAttemptTimeout, timeout, context.DeadlineExceeded)
	}
}
