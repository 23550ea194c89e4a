package contxt

import (
	"context"
	"time"
)

// NewContext returns a background context that cancels itself after timeout.
func NewContext(timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ctx
}

// Detached keeps parent's values but not its cancellation, bounded by timeout.
// Work started under it runs to completion (or the deadline) even if parent is cancelled.
func Detached(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), timeout)
}
