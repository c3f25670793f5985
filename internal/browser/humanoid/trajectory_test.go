// internal/browser/humanoid/trajectory_test.go
package humanoid

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMouse struct {
	points []Vector2D
	failAt int
}

func (r *recordingMouse) MoveMouse(_ context.Context, x, y float64) error {
	r.points = append(r.points, Vector2D{X: x, Y: y})
	if r.failAt > 0 && len(r.points) >= r.failAt {
		return errors.New("target closed")
	}
	return nil
}

func TestEaseInOutCubic(t *testing.T) {
	assert.Equal(t, 0.0, easeInOutCubic(0))
	assert.Equal(t, 0.5, easeInOutCubic(0.5))
	assert.Equal(t, 1.0, easeInOutCubic(1))
	assert.Less(t, easeInOutCubic(0.1), 0.1, "starts slow")
	assert.Greater(t, easeInOutCubic(0.9), 0.9, "ends slow")
}

func TestMovementDuration(t *testing.T) {
	h := NewTestHumanoid(&mockExecutor{}, 3)

	near := h.MovementDuration(10)
	far := h.MovementDuration(1500)
	assert.Less(t, near, far)

	// Bounds follow from the default coefficients and the 15% jitter.
	assert.GreaterOrEqual(t, near, time.Duration(0.85*80*float64(time.Millisecond)))
	assert.LessOrEqual(t, far, time.Duration(1.15*(80+120*6.7)*float64(time.Millisecond)))
}

func TestPath(t *testing.T) {
	h := NewTestHumanoid(&mockExecutor{}, 11)
	start, end := Vector2D{X: 10, Y: 10}, Vector2D{X: 410, Y: 310}

	path := h.Path(start, end, 40)
	require.Len(t, path, 40)
	assert.InDelta(t, start.X, path[0].X, 1e-9)
	assert.InDelta(t, start.Y, path[0].Y, 1e-9)
	assert.Equal(t, end, path[len(path)-1])

	// The bow is bounded, so no point strays far from the segment's box.
	dist := start.Dist(end)
	for _, p := range path {
		assert.LessOrEqual(t, p.Dist(start), dist*1.25)
	}

	t.Run("degenerate", func(t *testing.T) {
		assert.Equal(t, []Vector2D{end}, h.Path(end, end, 40))
		assert.Equal(t, []Vector2D{end}, h.Path(start, end, 1))
	})
}

func TestMoveTo(t *testing.T) {
	t.Run("glides and sleeps between events", func(t *testing.T) {
		exec := &mockExecutor{}
		h := NewTestHumanoid(exec, 5)
		mouse := &recordingMouse{}

		final, err := h.MoveTo(context.Background(), mouse, Vector2D{}, Vector2D{X: 300, Y: 200})
		require.NoError(t, err)
		assert.Equal(t, Vector2D{X: 300, Y: 200}, final)
		assert.Greater(t, len(mouse.points), 2)
		assert.Equal(t, final, mouse.points[len(mouse.points)-1])
		assert.Len(t, exec.sleeps, len(mouse.points))
	})

	t.Run("disabled jumps", func(t *testing.T) {
		exec := &mockExecutor{}
		h := NewTestHumanoid(exec, 5)
		h.cfg.Enabled = false
		mouse := &recordingMouse{}

		_, err := h.MoveTo(context.Background(), mouse, Vector2D{}, Vector2D{X: 300, Y: 200})
		require.NoError(t, err)
		assert.Equal(t, []Vector2D{{X: 300, Y: 200}}, mouse.points)
		assert.Empty(t, exec.sleeps)
	})

	t.Run("dispatch error stops the move", func(t *testing.T) {
		h := NewTestHumanoid(&mockExecutor{}, 5)
		mouse := &recordingMouse{failAt: 3}

		_, err := h.MoveTo(context.Background(), mouse, Vector2D{}, Vector2D{X: 900, Y: 700})
		require.Error(t, err)
		assert.Len(t, mouse.points, 3)
	})

	t.Run("cancellation", func(t *testing.T) {
		h := NewTestHumanoid(&mockExecutor{}, 5)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := h.MoveTo(ctx, &recordingMouse{}, Vector2D{}, Vector2D{X: 900, Y: 700})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
