// internal/browser/humanoid/trajectory.go
package humanoid

import (
	"context"
	"math"
	"time"
)

// MouseMover dispatches a pointer move to the page.
type MouseMover interface {
	MoveMouse(ctx context.Context, x, y float64) error
}

// targetWidth is the assumed width of a button, in pixels, for Fitts's law.
const targetWidth = 30.0

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// MovementDuration models how long a person takes to reach a target at
// distance pixels away, with +/-15% jitter.
func (h *Humanoid) MovementDuration(distance float64) time.Duration {
	id := math.Log2(1.0 + distance/targetWidth)
	mt := h.cfg.FittsA + h.cfg.FittsB*id

	h.mu.Lock()
	mt += mt * (h.rng.Float64()*0.3 - 0.15)
	h.mu.Unlock()

	return time.Duration(mt * float64(time.Millisecond))
}

// Path returns a curved trajectory of steps points from start to end. The
// curve bows to one side by up to a fifth of the distance and always ends
// exactly on end.
func (h *Humanoid) Path(start, end Vector2D, steps int) []Vector2D {
	dist := start.Dist(end)
	if dist < 1.0 || steps <= 1 {
		return []Vector2D{end}
	}

	dir := end.Sub(start).Mul(1.0 / dist)
	side := dir.Perp()

	h.mu.Lock()
	bow1 := (h.rng.Float64()*2 - 1) * dist * 0.2
	bow2 := (h.rng.Float64()*2 - 1) * dist * 0.2
	h.mu.Unlock()

	p0, p3 := start, end
	p1 := start.Add(dir.Mul(dist / 3.0)).Add(side.Mul(bow1))
	p2 := start.Add(dir.Mul(dist * 2.0 / 3.0)).Add(side.Mul(bow2))

	path := make([]Vector2D, steps)
	for i := range path {
		t := easeInOutCubic(float64(i) / float64(steps-1))
		omt := 1.0 - t
		path[i] = p0.Mul(omt * omt * omt).
			Add(p1.Mul(3 * omt * omt * t)).
			Add(p2.Mul(3 * omt * t * t)).
			Add(p3.Mul(t * t * t))
	}
	path[steps-1] = end
	return path
}

// MoveTo glides the pointer from start to end and returns the final position.
// When the humanoid is disabled the pointer jumps straight to end.
func (h *Humanoid) MoveTo(ctx context.Context, mover MouseMover, start, end Vector2D) (Vector2D, error) {
	if !h.cfg.Enabled {
		return end, mover.MoveMouse(ctx, end.X, end.Y)
	}

	duration := h.MovementDuration(start.Dist(end))
	// About one event per 10ms, like a real pointer.
	steps := max(2, int(duration/(10*time.Millisecond)))
	path := h.Path(start, end, steps)
	interval := duration / time.Duration(len(path))

	for _, p := range path {
		if err := mover.MoveMouse(ctx, p.X, p.Y); err != nil {
			return p, err
		}
		if err := h.executor.Sleep(ctx, interval); err != nil {
			return p, err
		}
	}
	return end, nil
}
