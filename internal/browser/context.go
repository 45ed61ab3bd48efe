// internal/browser/context.go
package browser

import (
	"context"
	"time"
)

// combineContext derives a context from tab, which carries the CDP target,
// that is also cancelled when op is done. Values come from tab only.
func combineContext(tab, op context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(tab)

	go func() {
		select {
		case <-op.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}

// valueOnlyContext keeps the values of its parent but drops its deadline and
// cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// detach returns a context that still reaches the browser after ctx is
// cancelled. Used for teardown.
func detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
