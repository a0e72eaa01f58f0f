package session

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/loginguard/platform/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0m 0s"},
		{999 * time.Millisecond, "0m 0s"},
		{59 * time.Second, "0m 59s"},
		{60 * time.Second, "1m 0s"},
		{45*time.Minute + 30*time.Second, "45m 30s"},
		{125 * time.Minute, "125m 0s"},
		{-time.Second, "0m 0s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.d))
		})
	}
}

func TestTracker_StartStop(t *testing.T) {
	clock := &manualClock{t: time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)}
	tr := NewTracker(clock, provider.Fixed(0), time.Hour, testLogger())

	require.NoError(t, tr.Start("alice", "curl/8"))
	assert.True(t, tr.Active())

	snap := tr.Snapshot()
	assert.Equal(t, "alice", snap.Username)
	assert.Equal(t, "curl/8", snap.UserAgent)
	assert.Equal(t, 0, snap.TransmittedKB)

	clock.Advance(90 * time.Second)
	elapsed, ok := tr.Elapsed()
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, elapsed)

	final, stopped := tr.Stop()
	require.True(t, stopped)
	assert.Equal(t, "alice", final.Username)
	assert.Equal(t, "1m 30s", final.ElapsedDisplay)
	assert.False(t, tr.Active())

	_, ok = tr.Elapsed()
	assert.False(t, ok)
}

func TestTracker_StopIdleIsNoop(t *testing.T) {
	tr := NewTracker(provider.SystemClock{}, provider.Fixed(0), time.Hour, testLogger())

	_, stopped := tr.Stop()
	assert.False(t, stopped)

	require.NoError(t, tr.Start("alice", ""))
	_, stopped = tr.Stop()
	assert.True(t, stopped)
	_, stopped = tr.Stop()
	assert.False(t, stopped, "second stop is a no-op")
}

func TestTracker_RejectsSecondSession(t *testing.T) {
	tr := NewTracker(provider.SystemClock{}, provider.Fixed(0), time.Hour, testLogger())
	require.NoError(t, tr.Start("alice", ""))
	defer tr.Stop()

	err := tr.Start("bob", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionActive))
	assert.Equal(t, "alice", tr.Snapshot().Username)
}

func TestTracker_PeriodicEffects(t *testing.T) {
	clock := &manualClock{t: time.Now()}
	// Fixed(4) makes every traffic tick add 5 KB.
	tr := NewTracker(clock, provider.Fixed(4), 5*time.Millisecond, testLogger())
	require.NoError(t, tr.Start("alice", ""))
	clock.Advance(2 * time.Minute)

	assert.Eventually(t, func() bool {
		s := tr.Snapshot()
		return s.ElapsedDisplay == "2m 0s" && s.TransmittedKB >= 10
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, tr.Snapshot().TransmittedKB%5)

	tr.Stop()
	snap := tr.Snapshot()
	assert.False(t, snap.Active)
	assert.Zero(t, snap.TransmittedKB)

	// Nothing ticks after Stop.
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, tr.Snapshot().TransmittedKB)
}

func TestTracker_RestartResetsCounter(t *testing.T) {
	tr := NewTracker(provider.SystemClock{}, provider.Fixed(9), 2*time.Millisecond, testLogger())
	require.NoError(t, tr.Start("alice", ""))
	assert.Eventually(t, func() bool { return tr.Snapshot().TransmittedKB > 0 }, time.Second, 2*time.Millisecond)
	tr.Stop()

	require.NoError(t, tr.Start("bob", ""))
	defer tr.Stop()
	snap := tr.Snapshot()
	assert.Equal(t, "bob", snap.Username)
	assert.LessOrEqual(t, snap.TransmittedKB, 10)
}
