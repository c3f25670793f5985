// internal/browser/session/context_utils.go
package session

import (
	"context"
	"time"
)

// CombineContext returns a context that carries the values of tabCtx (the
// chromedp target) and is canceled when either tabCtx or opCtx is done. Every
// browser operation runs under one, so the caller's deadline applies without
// losing the CDP connection stored in tabCtx.
func CombineContext(tabCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancelCause(tabCtx)
	stop := context.AfterFunc(opCtx, func() {
		cancel(context.Cause(opCtx))
	})
	return combined, func() {
		stop()
		cancel(context.Canceled)
	}
}

// valueOnlyContext keeps the parent's values but none of its cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context with the values of ctx that is never canceled.
// Work that must finish once started, such as recording a submission that
// already happened, runs under a detached context with its own timeout.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
