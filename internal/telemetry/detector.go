package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/loginguard/platform/internal/domain"
	"github.com/loginguard/platform/internal/metrics"
	"github.com/sony/gobreaker/v2"
)

const (
	detectPath = "/api/detect-attack"
	healthPath = "/api/health"

	defaultDetectorTimeout = 5 * time.Second
	maxVerdictBody         = 64 << 10
)

// DetectorHealth is the detection service's health document.
type DetectorHealth struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// DetectorClient calls the external detection service. Each call is a
// single attempt behind a circuit breaker; an open circuit skips the call.
type DetectorClient struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[domain.Verdict]
	logger  *slog.Logger
}

// NewDetectorClient creates a client for the service rooted at baseURL.
func NewDetectorClient(baseURL string, timeout time.Duration, logger *slog.Logger) *DetectorClient {
	if timeout <= 0 {
		timeout = defaultDetectorTimeout
	}
	metrics.DetectorCircuitState.Set(0)

	cb := gobreaker.NewCircuitBreaker[domain.Verdict](gobreaker.Settings{
		Name:        "detector",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A malformed verdict still proves the service is reachable.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrTelemetryMalformed(nil))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("detector circuit state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.DetectorCircuitState.Set(circuitStateValue(to))
		},
	})

	return &DetectorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		cb:      cb,
		logger:  logger,
	}
}

// Detect posts one feature vector and returns the validated verdict.
// Errors are *domain.AppError with a telemetry code; an open circuit is
// reported as unreachable wrapping gobreaker.ErrOpenState.
func (c *DetectorClient) Detect(ctx context.Context, fv domain.FeatureVector) (domain.Verdict, error) {
	v, err := c.cb.Execute(func() (domain.Verdict, error) {
		return c.detect(ctx, fv)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.Verdict{}, domain.ErrTelemetryUnreachable(err)
	}
	return v, err
}

func (c *DetectorClient) detect(ctx context.Context, fv domain.FeatureVector) (domain.Verdict, error) {
	body, err := json.Marshal(fv)
	if err != nil {
		return domain.Verdict{}, domain.ErrInternal("encode feature vector", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+detectPath, bytes.NewReader(body))
	if err != nil {
		return domain.Verdict{}, domain.ErrTelemetryUnreachable(err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.TelemetryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.Verdict{}, domain.ErrTelemetryUnreachable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxVerdictBody))
		return domain.Verdict{}, domain.ErrTelemetryRejected(resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxVerdictBody))
	if err != nil {
		return domain.Verdict{}, domain.ErrTelemetryUnreachable(err)
	}
	return decodeVerdict(raw)
}

// Health probes the detection service.
func (c *DetectorClient) Health(ctx context.Context) (DetectorHealth, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return DetectorHealth{}, domain.ErrTelemetryUnreachable(err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return DetectorHealth{}, domain.ErrTelemetryUnreachable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return DetectorHealth{}, domain.ErrTelemetryRejected(resp.StatusCode)
	}
	var h DetectorHealth
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxVerdictBody)).Decode(&h); err != nil {
		return DetectorHealth{}, domain.ErrTelemetryMalformed(err)
	}
	return h, nil
}

// CircuitState reports the breaker state as "closed", "half-open" or "open".
func (c *DetectorClient) CircuitState() string {
	return c.cb.State().String()
}

type verdictWire struct {
	IsAttacker      *bool    `json:"is_attacker"`
	Confidence      *float64 `json:"confidence"`
	RiskLevel       string   `json:"risk_level"`
	RiskProbability *float64 `json:"risk_probability"`
}

func decodeVerdict(raw []byte) (domain.Verdict, error) {
	var w verdictWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.Verdict{}, domain.ErrTelemetryMalformed(err)
	}
	if w.IsAttacker == nil {
		return domain.Verdict{}, domain.ErrTelemetryMalformed(errors.New("is_attacker missing"))
	}
	if err := checkUnit("confidence", w.Confidence); err != nil {
		return domain.Verdict{}, domain.ErrTelemetryMalformed(err)
	}
	if err := checkUnit("risk_probability", w.RiskProbability); err != nil {
		return domain.Verdict{}, domain.ErrTelemetryMalformed(err)
	}
	return domain.Verdict{
		IsAttacker:      *w.IsAttacker,
		Confidence:      *w.Confidence,
		RiskLevel:       w.RiskLevel,
		RiskProbability: *w.RiskProbability,
	}, nil
}

func checkUnit(field string, v *float64) error {
	if v == nil {
		return fmt.Errorf("%s missing", field)
	}
	if *v < 0 || *v > 1 {
		return fmt.Errorf("%s %v outside [0,1]", field, *v)
	}
	return nil
}

func circuitStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
