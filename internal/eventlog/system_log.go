// Package eventlog implements the process-wide system log: a bounded,
// chronologically ordered ring of structured entries persisted as a single
// named record.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loginguard/platform/internal/domain"
	"github.com/loginguard/platform/internal/metrics"
	"github.com/loginguard/platform/internal/provider"
	"github.com/loginguard/platform/internal/repository"
)

const (
	// MaxEntries caps the ring; the oldest entry is evicted first.
	MaxEntries = 1000
	// RecordName is the durable record holding the serialized log.
	RecordName = "systemLogs"

	persistTimeout = 3 * time.Second
)

// SystemLog is safe for concurrent use. Persistence failures are logged and
// counted; the in-memory log keeps working.
type SystemLog struct {
	mu      sync.Mutex
	entries []domain.SystemLogEntry
	max     int

	store  repository.RecordStore
	clock  provider.Clock
	logger *slog.Logger
	newID  func() string
}

// Option configures a SystemLog.
type Option func(*SystemLog)

// WithCapacity overrides MaxEntries.
func WithCapacity(n int) Option {
	return func(l *SystemLog) { l.max = n }
}

// WithClock overrides the entry timestamp source.
func WithClock(c provider.Clock) Option {
	return func(l *SystemLog) { l.clock = c }
}

// WithIDGenerator overrides the correlation id generator.
func WithIDGenerator(f func() string) Option {
	return func(l *SystemLog) { l.newID = f }
}

// New creates an empty system log backed by store. Call Load to restore the
// persisted record.
func New(store repository.RecordStore, logger *slog.Logger, opts ...Option) *SystemLog {
	l := &SystemLog{
		max:    MaxEntries,
		store:  store,
		clock:  provider.SystemClock{},
		logger: logger,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load replaces the in-memory log with the persisted record. A missing record
// yields an empty log; an unreadable one is logged and ignored.
func (l *SystemLog) Load(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	body, err := l.store.Load(ctx, RecordName)
	if err != nil {
		l.persistenceFailed("load", err)
		return
	}

	var entries []domain.SystemLogEntry
	if body != nil {
		if err := json.Unmarshal(body, &entries); err != nil {
			l.persistenceFailed("load", fmt.Errorf("decode record: %w", err))
			return
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(entries) > l.max {
		entries = entries[len(entries)-l.max:]
	}
	l.entries = entries
	metrics.SystemLogEntries.Set(float64(len(l.entries)))
	l.logger.Info("system log loaded", "entries", len(l.entries))
}

// Append records an event with an arbitrary JSON-encodable payload and
// rewrites the persisted record.
func (l *SystemLog) Append(ctx context.Context, action domain.EventTag, data interface{}) domain.SystemLogEntry {
	raw, err := json.Marshal(data)
	if err != nil {
		l.logger.Error("system log payload not encodable", "action", action, "error", err)
		raw = json.RawMessage(`null`)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := domain.SystemLogEntry{
		Timestamp: l.clock.Now().UTC(),
		Action:    action,
		Data:      raw,
		SessionID: l.newID(),
	}
	l.entries = append(l.entries, entry)
	if over := len(l.entries) - l.max; over > 0 {
		l.entries = append(l.entries[:0:0], l.entries[over:]...)
	}
	metrics.SystemLogEntries.Set(float64(len(l.entries)))

	l.persistLocked(ctx)
	l.logger.Debug("system log entry", "action", action, "session_id", entry.SessionID)
	return entry
}

// Entries returns a copy of the log, oldest first.
func (l *SystemLog) Entries() []domain.SystemLogEntry {
	return l.View("")
}

// View returns the entries whose action or serialized payload contains
// filter. An empty filter returns everything.
func (l *SystemLog) View(filter string) []domain.SystemLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.SystemLogEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if filter == "" ||
			strings.Contains(string(e.Action), filter) ||
			strings.Contains(string(e.Data), filter) {
			out = append(out, e)
		}
	}
	return out
}

// Export renders the log one line per entry as
// "[<timestamp>] <action> - <json payload>".
func (l *SystemLog) Export() string {
	entries := l.Entries()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("[%s] %s - %s", domain.ISOTimestamp(e.Timestamp), e.Action, string(e.Data))
	}
	return strings.Join(lines, "\n")
}

// Count returns the number of entries held.
func (l *SystemLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear empties the log and deletes the persisted record.
func (l *SystemLog) Clear(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = nil
	metrics.SystemLogEntries.Set(0)

	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := l.store.Delete(ctx, RecordName); err != nil {
		l.persistenceFailed("delete", err)
	}
	l.logger.Info("system log cleared")
}

// Flush rewrites the persisted record. Used on shutdown.
func (l *SystemLog) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.persistLocked(ctx)
}

func (l *SystemLog) persistLocked(ctx context.Context) error {
	entries := l.entries
	if entries == nil {
		entries = []domain.SystemLogEntry{}
	}
	body, err := json.Marshal(entries)
	if err != nil {
		return l.persistenceFailed("save", err)
	}
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := l.store.Save(ctx, RecordName, body); err != nil {
		return l.persistenceFailed("save", err)
	}
	return nil
}

func (l *SystemLog) persistenceFailed(op string, err error) error {
	appErr := domain.ErrPersistenceUnavailable(op, err)
	metrics.PersistenceFailures.WithLabelValues(op).Inc()
	l.logger.Warn("system log persistence unavailable, continuing in memory", "op", op, "error", err)
	return appErr
}
