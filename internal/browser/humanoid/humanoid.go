// internal/browser/humanoid/humanoid.go
package humanoid

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Humanoid produces human-like pauses and keystroke cadence.
type Humanoid struct {
	// mu protects rng; math/rand sources are not safe for concurrent use.
	mu       sync.Mutex
	cfg      Config
	logger   *zap.Logger
	executor Executor
	rng      *rand.Rand
}

// New creates a Humanoid. A nil executor sleeps on the wall clock.
func New(cfg Config, logger *zap.Logger, executor Executor) *Humanoid {
	if executor == nil {
		executor = RealExecutor{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rng := cfg.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Humanoid{
		cfg:      cfg,
		logger:   logger.Named("humanoid"),
		executor: executor,
		rng:      rng,
	}
}

// NewTestHumanoid creates a deterministic Humanoid for tests.
func NewTestHumanoid(executor Executor, seed int64) *Humanoid {
	cfg := DefaultConfig()
	cfg.Rng = rand.New(rand.NewSource(seed))
	return New(cfg, zap.NewNop(), executor)
}

// Pause waits for a uniformly random duration in [min, max].
func (h *Humanoid) Pause(ctx context.Context, min, max time.Duration) error {
	if max < min {
		min, max = max, min
	}
	d := min
	if span := max - min; span > 0 {
		h.mu.Lock()
		d += time.Duration(h.rng.Int63n(int64(span) + 1))
		h.mu.Unlock()
	}
	return h.executor.Sleep(ctx, d)
}

// CognitivePause waits for a normally distributed duration, clamped at zero.
func (h *Humanoid) CognitivePause(ctx context.Context, meanMs, stdDevMs float64) error {
	h.mu.Lock()
	norm := h.rng.NormFloat64()
	h.mu.Unlock()

	d := time.Duration((meanMs + norm*stdDevMs) * float64(time.Millisecond))
	if d <= 0 {
		return nil
	}
	return h.executor.Sleep(ctx, d)
}
