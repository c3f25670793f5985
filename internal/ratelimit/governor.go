// File: internal/ratelimit/governor.go
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/easyapply/api/schemas"
)

// ErrDailyLimitExceeded is fatal for an attempt: the caller must stop, not retry.
var ErrDailyLimitExceeded = errors.New("daily application limit reached")

const dateLayout = "2006-01-02"

// Limits configures the governor.
type Limits struct {
	ActionsPerWindow int
	Window           time.Duration
	MaxDaily         int
}

// DefaultLimits returns 12 actions per minute and 50 submissions per day.
func DefaultLimits() Limits {
	return Limits{ActionsPerWindow: 12, Window: time.Minute, MaxDaily: 50}
}

// Option customises a Governor.
type Option func(*Governor)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) { g.now = now }
}

// WithSleeper replaces the context-aware sleep used while throttling.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Governor) { g.sleep = sleep }
}

// Governor throttles browser actions and enforces the daily submission ceiling.
// Counters are guarded by mu, which is never held across a sleep.
type Governor struct {
	limits  Limits
	counter DailyCounter
	logger  *zap.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	logSome rate.Sometimes

	mu sync.Mutex
	// actions holds the timestamps of the most recent actions, oldest first,
	// never more than ActionsPerWindow of them.
	actions       []time.Time
	lastActionAt  time.Time
	appliesToday  int
	lastResetDate string
}

// NewGovernor builds a governor. A nil counter keeps the daily count in memory.
func NewGovernor(limits Limits, counter DailyCounter, logger *zap.Logger, opts ...Option) *Governor {
	if counter == nil {
		counter = NewMemoryCounter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Governor{
		limits:  limits,
		counter: counter,
		logger:  logger.Named("governor"),
		now:     time.Now,
		sleep:   sleepContext,
		logSome: rate.Sometimes{Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckAndWait must be called before every externally visible browser action.
// It returns ErrDailyLimitExceeded once the ceiling is reached and otherwise
// blocks until the action fits inside the trailing window.
func (g *Governor) CheckAndWait(ctx context.Context) error {
	if err := g.rollover(ctx); err != nil {
		return err
	}

	g.mu.Lock()
	if g.appliesToday >= g.limits.MaxDaily {
		applies := g.appliesToday
		g.mu.Unlock()
		return fmt.Errorf("%w (%d/%d), continue manually", ErrDailyLimitExceeded, applies, g.limits.MaxDaily)
	}
	g.mu.Unlock()

	for {
		g.mu.Lock()
		now := g.now()
		g.pruneLocked(now)
		if g.limits.ActionsPerWindow <= 0 || len(g.actions) < g.limits.ActionsPerWindow {
			g.actions = append(g.actions, now)
			g.lastActionAt = now
			g.mu.Unlock()
			return nil
		}
		wait := g.actions[0].Add(g.limits.Window).Sub(now)
		g.mu.Unlock()

		g.logSome.Do(func() {
			g.logger.Info("Throttling browser actions.", zap.Duration("wait", wait))
		})
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// pruneLocked drops actions that have left the trailing window ending at now.
func (g *Governor) pruneLocked(now time.Time) {
	keep := 0
	for keep < len(g.actions) && now.Sub(g.actions[keep]) >= g.limits.Window {
		keep++
	}
	if keep > 0 {
		g.actions = append(g.actions[:0], g.actions[keep:]...)
	}
}

// RecordSubmission counts one submit click against today's ceiling.
func (g *Governor) RecordSubmission(ctx context.Context) error {
	if err := g.rollover(ctx); err != nil {
		return err
	}

	g.mu.Lock()
	date := g.lastResetDate
	g.appliesToday++
	local := g.appliesToday
	g.mu.Unlock()

	stored, err := g.counter.Increment(ctx, date)
	if err != nil {
		// The in-memory count still holds the ceiling for this process.
		g.logger.Warn("Failed to persist daily submission count.", zap.Error(err))
		return nil
	}
	if stored > local {
		g.mu.Lock()
		if g.lastResetDate == date && stored > g.appliesToday {
			g.appliesToday = stored
		}
		g.mu.Unlock()
	}
	return nil
}

// State returns a snapshot of the counters. WindowStart is the oldest action
// still inside the trailing window.
func (g *Governor) State() schemas.RateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	var inWindow []time.Time
	for i, ts := range g.actions {
		if now.Sub(ts) < g.limits.Window {
			inWindow = g.actions[i:]
			break
		}
	}
	var windowStart time.Time
	if len(inWindow) > 0 {
		windowStart = inWindow[0]
	}
	return schemas.RateState{
		ActionsInWindow: len(inWindow),
		WindowStart:     windowStart,
		LastActionAt:    g.lastActionAt,
		AppliesToday:    g.appliesToday,
		LastResetDate:   g.lastResetDate,
		MaxDaily:        g.limits.MaxDaily,
	}
}

// rollover resets the daily counter when the local date changes, hydrating it
// from the counter store so restarts within a day keep their count.
func (g *Governor) rollover(ctx context.Context) error {
	today := g.now().Format(dateLayout)

	g.mu.Lock()
	current := g.lastResetDate
	g.mu.Unlock()
	if current == today {
		return nil
	}

	stored, err := g.counter.Load(ctx, today)
	if err != nil {
		g.logger.Warn("Failed to load daily submission count; starting from zero.", zap.Error(err))
		stored = 0
	}

	g.mu.Lock()
	if g.lastResetDate != today {
		g.appliesToday = stored
		g.lastResetDate = today
		g.logger.Debug("Daily counter reset.", zap.String("date", today), zap.Int("applies_today", stored))
	}
	g.mu.Unlock()
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
