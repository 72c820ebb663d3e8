package orchestrator

import (
	"context"
	"errors"
)

var (
	errTimeout   = errors.New("provider call timed out")
	errCancelled = errors.New("provider call cancelled")
)

// call runs fn in its own goroutine and waits for it or for ctx. A provider
// that ignores ctx keeps running in the background; its result is dropped.
func call[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, errTimeout
		}
		return zero, errCancelled
	}
}
