// Package session tracks the single active session of the process: its
// lifetime and the synthetic traffic counter shown on the dashboard.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loginguard/platform/internal/provider"
)

// ErrSessionActive is returned by Start while another session is open.
var ErrSessionActive = errors.New("session already active")

// DefaultTick is one time unit. Elapsed time refreshes every tick, traffic
// every TrafficTicks ticks.
const (
	DefaultTick  = time.Second
	TrafficTicks = 2
)

// Snapshot is a point-in-time view of the tracker.
type Snapshot struct {
	Active         bool      `json:"active"`
	Username       string    `json:"username,omitempty"`
	UserAgent      string    `json:"-"`
	StartedAt      time.Time `json:"started_at,omitempty"`
	ElapsedDisplay string    `json:"elapsed"`
	TransmittedKB  int       `json:"transmitted_kb"`
}

// Tracker runs two periodic effects while a session is active. Both are
// cancelled together by Stop.
type Tracker struct {
	clock   provider.Clock
	entropy provider.Entropy
	tick    time.Duration
	logger  *slog.Logger

	mu        sync.Mutex
	active    bool
	gen       uint64
	username  string
	userAgent string
	start     time.Time
	elapsed   string
	kb        int
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewTracker creates an idle tracker. tick <= 0 selects DefaultTick.
func NewTracker(clock provider.Clock, entropy provider.Entropy, tick time.Duration, logger *slog.Logger) *Tracker {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Tracker{
		clock:   clock,
		entropy: entropy,
		tick:    tick,
		logger:  logger,
		elapsed: FormatDuration(0),
	}
}

// Start opens a session for username. It fails with ErrSessionActive if one
// is already open; callers close the previous session first.
func (t *Tracker) Start(username, userAgent string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active {
		return fmt.Errorf("start session for %s: %w", username, ErrSessionActive)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.active = true
	t.gen++
	t.username = username
	t.userAgent = userAgent
	t.start = t.clock.Now()
	t.elapsed = FormatDuration(0)
	t.kb = 0
	t.cancel = cancel

	gen := t.gen
	t.wg.Add(2)
	go t.every(ctx, t.tick, func() { t.refreshElapsed(gen) })
	go t.every(ctx, TrafficTicks*t.tick, func() { t.addTraffic(gen) })

	t.logger.Debug("session started", "username", username)
	return nil
}

// Stop closes the active session and returns its final snapshot. Stopping an
// idle tracker is a no-op and returns false.
func (t *Tracker) Stop() (Snapshot, bool) {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return Snapshot{ElapsedDisplay: FormatDuration(0)}, false
	}
	t.elapsed = FormatDuration(t.clock.Now().Sub(t.start))
	final := t.snapshotLocked()
	cancel := t.cancel
	t.cancel = nil
	t.active = false
	t.username = ""
	t.userAgent = ""
	t.kb = 0
	t.elapsed = FormatDuration(0)
	t.mu.Unlock()

	cancel()
	t.wg.Wait()
	t.logger.Debug("session stopped", "username", final.Username, "elapsed", final.ElapsedDisplay)
	return final, true
}

// Active reports whether a session is open.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Elapsed returns the real elapsed time of the active session.
func (t *Tracker) Elapsed() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return 0, false
	}
	return t.clock.Now().Sub(t.start), true
}

// Snapshot returns the current state as last refreshed by the tickers.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	s := Snapshot{
		Active:         t.active,
		ElapsedDisplay: t.elapsed,
		TransmittedKB:  t.kb,
	}
	if t.active {
		s.Username = t.username
		s.UserAgent = t.userAgent
		s.StartedAt = t.start
	}
	return s
}

func (t *Tracker) every(ctx context.Context, d time.Duration, f func()) {
	defer t.wg.Done()
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f()
		}
	}
}

func (t *Tracker) refreshElapsed(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active || t.gen != gen {
		return
	}
	t.elapsed = FormatDuration(t.clock.Now().Sub(t.start))
}

func (t *Tracker) addTraffic(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active || t.gen != gen {
		return
	}
	t.kb += provider.TrafficIncrement(t.entropy)
}

// FormatDuration renders d as "<minutes>m <seconds>s", truncating to whole
// seconds.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}
