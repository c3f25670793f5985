// internal/browser/humanoid/interface.go
package humanoid

import (
	"context"
	"time"
)

// Executor is the low-level clock the humanoid waits on.
type Executor interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// KeySender dispatches text to the focused element.
type KeySender interface {
	SendKeys(ctx context.Context, keys string) error
}

// RealExecutor sleeps on the wall clock and honours cancellation.
type RealExecutor struct{}

func (RealExecutor) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
