package formatter

import "context"

// Future is a string value that may still be computed in the background.
// A nil value means the path matched but carries no value.
type Future struct {
	done  chan struct{}
	value *string
	err   error
}

// Completed returns a future that is already resolved to value.
func Completed(value *string) *Future {
	future := &Future{done: make(chan struct{}), value: value}
	close(future.done)

	return future
}

// Value returns a future already resolved to the given string.
func Value(value string) *Future {
	return Completed(&value)
}

// Go starts fn in its own goroutine and returns a future for its result.
func Go(ctx context.Context, fn func(ctx context.Context) (*string, error)) *Future {
	future := &Future{done: make(chan struct{})}

	go func() {
		defer close(future.done)

		future.value, future.err = fn(ctx)
	}()

	return future
}

// Await blocks until the value is available or ctx is done.
func (f *Future) Await(ctx context.Context) (*string, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
