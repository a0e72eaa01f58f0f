// Package telemetry turns authentication events into feature vectors, records
// them in the system log and ships them to the detection service.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/loginguard/platform/internal/domain"
	"github.com/loginguard/platform/internal/eventlog"
	"github.com/loginguard/platform/internal/metrics"
	"github.com/loginguard/platform/internal/policy"
	"github.com/loginguard/platform/internal/provider"
	"github.com/sony/gobreaker/v2"
)

// MirrorTopic receives a copy of every feature vector when a mirror is set.
const MirrorTopic = "loginguard.telemetry"

const sendTimeout = 10 * time.Second

// Event is the account state at the moment an authentication event happened.
type Event struct {
	Tag           domain.EventTag
	Username      string
	FailedLogins  int
	TotalAttempts int
	Reputation    float64
	UserAgent     string
}

// Detector classifies one feature vector.
type Detector interface {
	Detect(ctx context.Context, fv domain.FeatureVector) (domain.Verdict, error)
}

// SessionClock reports the elapsed time of the active session, if any.
type SessionClock interface {
	Elapsed() (time.Duration, bool)
}

// VerdictSink receives verdicts for presentation. It must not block.
type VerdictSink interface {
	PublishVerdict(n domain.VerdictNotice)
}

// Mirror publishes raw messages to a topic.
type Mirror interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Stats is the payload recorded in the system log for each event.
type Stats struct {
	Username    string          `json:"username"`
	Event       domain.EventTag `json:"event"`
	LoginStats  LoginStats      `json:"loginStats"`
	SessionInfo SessionInfo     `json:"sessionInfo"`
}

type LoginStats struct {
	FailedLogins    int     `json:"failedLogins"`
	TotalAttempts   int     `json:"totalAttempts"`
	ReputationScore float64 `json:"reputationScore"`
}

type SessionInfo struct {
	AccessTime string `json:"accessTime"`
	IP         string `json:"ip"`
	UserAgent  string `json:"userAgent"`
	Timestamp  string `json:"timestamp"`
	Hour       int    `json:"hour"`
}

// Dispatcher is fire-and-forget: Dispatch records the event synchronously and
// sends it on its own goroutine. Sends are never cancelled by the caller.
type Dispatcher struct {
	detector Detector
	syslog   *eventlog.SystemLog
	sessions SessionClock
	sink     VerdictSink
	mirror   Mirror
	clock    provider.Clock
	entropy  provider.Entropy
	logger   *slog.Logger

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMirror copies every feature vector to m under MirrorTopic.
func WithMirror(m Mirror) DispatcherOption {
	return func(d *Dispatcher) { d.mirror = m }
}

// WithClock overrides the event time source.
func WithClock(c provider.Clock) DispatcherOption {
	return func(d *Dispatcher) { d.clock = c }
}

// WithEntropy overrides the random source for simulated fields.
func WithEntropy(e provider.Entropy) DispatcherOption {
	return func(d *Dispatcher) { d.entropy = e }
}

// NewDispatcher creates a dispatcher. sink may be nil.
func NewDispatcher(detector Detector, syslog *eventlog.SystemLog, sessions SessionClock, sink VerdictSink, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	base, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		detector: detector,
		syslog:   syslog,
		sessions: sessions,
		sink:     sink,
		clock:    provider.SystemClock{},
		entropy:  provider.CSPRNG{},
		logger:   logger,
		base:     base,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch builds the feature vector for ev, appends it to the system log and
// starts the send. It returns the vector without waiting for the verdict.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) domain.FeatureVector {
	now := d.clock.Now()
	access := policy.ClassifyAccess(now)

	username := ev.Username
	if username == "" {
		username = domain.UnknownUsername
	}

	duration, ok := d.sessions.Elapsed()
	if !ok {
		duration = provider.FallbackSessionDuration(d.entropy)
	}

	ts := domain.ISOTimestamp(now)
	fv := domain.FeatureVector{
		Username:          username,
		Event:             ev.Tag,
		FailedLogins:      ev.FailedLogins,
		TotalAttempts:     ev.TotalAttempts,
		LoginAttempts:     ev.TotalAttempts,
		ReputationScore:   ev.Reputation,
		IsWorkingHours:    access.IsWorkingHours,
		HourOfDay:         access.HourOfDay,
		DayOfWeek:         access.DayOfWeek,
		SessionDurationMS: duration.Milliseconds(),
		UserAgent:         ev.UserAgent,
		Timestamp:         ts,
	}

	d.syslog.Append(ctx, ev.Tag, Stats{
		Username: username,
		Event:    ev.Tag,
		LoginStats: LoginStats{
			FailedLogins:    ev.FailedLogins,
			TotalAttempts:   ev.TotalAttempts,
			ReputationScore: ev.Reputation,
		},
		SessionInfo: SessionInfo{
			AccessTime: access.AccessLabel(),
			IP:         provider.SimulatedIP(d.entropy),
			UserAgent:  ev.UserAgent,
			Timestamp:  ts,
			Hour:       access.HourOfDay,
		},
	})

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.Debug("dispatcher closed, send skipped", "username", username, "event", ev.Tag)
		return fv
	}
	d.wg.Add(1)
	go d.send(fv)
	return fv
}

// Wait blocks until every in-flight send has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown stops new sends and waits for in-flight ones, bounded by ctx.
// Events dispatched afterwards are still recorded in the system log.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) send(fv domain.FeatureVector) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(d.base, sendTimeout)
	defer cancel()

	if d.mirror != nil {
		if body, err := json.Marshal(fv); err == nil {
			if err := d.mirror.Publish(ctx, MirrorTopic, []byte(fv.Username), body); err != nil {
				d.logger.Warn("telemetry mirror publish failed", "event", fv.Event, "error", err)
			}
		}
	}

	verdict, err := d.detector.Detect(ctx, fv)
	if err != nil {
		result := resultLabel(err)
		metrics.TelemetryDispatches.WithLabelValues(result).Inc()
		d.logger.Warn("telemetry dispatch failed",
			"event", fv.Event,
			"username", fv.Username,
			"result", result,
			"error", err,
		)
		return
	}

	metrics.TelemetryDispatches.WithLabelValues("verdict").Inc()
	classification := "legitimate"
	if verdict.IsAttacker {
		classification = "attacker"
	}
	metrics.AttackVerdicts.WithLabelValues(classification).Inc()
	d.logger.Info("verdict received",
		"event", fv.Event,
		"username", fv.Username,
		"is_attacker", verdict.IsAttacker,
		"risk_level", verdict.RiskLevel,
	)

	if d.sink != nil {
		d.sink.PublishVerdict(domain.VerdictNotice{
			Username:   fv.Username,
			Event:      fv.Event,
			Verdict:    verdict,
			ReceivedAt: d.clock.Now(),
		})
	}
}

func resultLabel(err error) string {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "circuit_open"
	}
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case domain.CodeTelemetryUnreachable:
			return "unreachable"
		case domain.CodeTelemetryRejected:
			return "rejected"
		case domain.CodeTelemetryMalformed:
			return "malformed"
		}
	}
	return "unreachable"
}
