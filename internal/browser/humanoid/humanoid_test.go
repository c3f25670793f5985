// internal/browser/humanoid/humanoid_test.go
package humanoid

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/easyapply/internal/config"
)

// mockExecutor records sleeps instead of waiting.
type mockExecutor struct {
	mu     sync.Mutex
	sleeps []time.Duration
	err    error
}

func (m *mockExecutor) Sleep(ctx context.Context, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sleeps = append(m.sleeps, d)
	return ctx.Err()
}

type recordingKeys struct {
	sent []string
}

func (r *recordingKeys) SendKeys(_ context.Context, keys string) error {
	r.sent = append(r.sent, keys)
	return nil
}

func TestPause_StaysInRange(t *testing.T) {
	exec := &mockExecutor{}
	h := NewTestHumanoid(exec, 42)

	for i := 0; i < 200; i++ {
		require.NoError(t, h.Pause(context.Background(), 2500*time.Millisecond, 4*time.Second))
	}
	for _, d := range exec.sleeps {
		assert.GreaterOrEqual(t, d, 2500*time.Millisecond)
		assert.LessOrEqual(t, d, 4*time.Second)
	}
}

func TestPause_SwappedBoundsAndZero(t *testing.T) {
	exec := &mockExecutor{}
	h := NewTestHumanoid(exec, 1)

	require.NoError(t, h.Pause(context.Background(), 800*time.Millisecond, 300*time.Millisecond))
	require.NoError(t, h.Pause(context.Background(), 0, 0))

	require.Len(t, exec.sleeps, 2)
	assert.GreaterOrEqual(t, exec.sleeps[0], 300*time.Millisecond)
	assert.LessOrEqual(t, exec.sleeps[0], 800*time.Millisecond)
	assert.Zero(t, exec.sleeps[1])
}

func TestCognitivePause_NeverNegative(t *testing.T) {
	exec := &mockExecutor{}
	h := NewTestHumanoid(exec, 7)

	for i := 0; i < 100; i++ {
		require.NoError(t, h.CognitivePause(context.Background(), 10, 50))
	}
	for _, d := range exec.sleeps {
		assert.Greater(t, d, time.Duration(0))
	}
}

func TestType_SendsEveryRune(t *testing.T) {
	exec := &mockExecutor{}
	h := NewTestHumanoid(exec, 3)
	keys := &recordingKeys{}

	require.NoError(t, h.Type(context.Background(), keys, "Jane Doe"))

	assert.Equal(t, "Jane Doe", strings.Join(keys.sent, ""))
	assert.Len(t, keys.sent, 8)
	// One hold per rune and one pause between consecutive runes.
	assert.Len(t, exec.sleeps, 8+7)
	for _, d := range exec.sleeps {
		assert.GreaterOrEqual(t, d, 20*time.Millisecond)
	}
}

func TestType_Disabled(t *testing.T) {
	exec := &mockExecutor{}
	h := New(FromSettings(config.HumanoidConfig{Enabled: false}), nil, exec)
	keys := &recordingKeys{}

	require.NoError(t, h.Type(context.Background(), keys, "+49123"))
	assert.Equal(t, []string{"+49123"}, keys.sent)
	assert.Empty(t, exec.sleeps)
}

func TestType_StopsOnExecutorError(t *testing.T) {
	exec := &mockExecutor{err: errors.New("boom")}
	h := NewTestHumanoid(exec, 3)
	keys := &recordingKeys{}

	err := h.Type(context.Background(), keys, "abc")
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, keys.sent)
}

func TestFromSettings(t *testing.T) {
	c := FromSettings(config.HumanoidConfig{Enabled: true, KeyHoldMeanMs: 80})
	assert.True(t, c.Enabled)
	assert.Equal(t, 80.0, c.KeyHoldMeanMs)
	assert.Equal(t, DefaultConfig().KeyPauseMean, c.KeyPauseMean)
}

func TestRealExecutor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RealExecutor{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
