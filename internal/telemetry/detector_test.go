package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loginguard/platform/internal/domain"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sampleVector() domain.FeatureVector {
	return domain.FeatureVector{
		Username:          "alice",
		Event:             domain.EventLoginFailedWrongPassword,
		FailedLogins:      1,
		TotalAttempts:     1,
		LoginAttempts:     1,
		ReputationScore:   0.45,
		HourOfDay:         10,
		DayOfWeek:         1,
		SessionDurationMS: 30_000_000,
		Timestamp:         "2026-10-19T10:00:00.000Z",
	}
}

func TestDetectorClient_Detect(t *testing.T) {
	var got domain.FeatureVector
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/detect-attack", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"is_attacker":true,"confidence":0.92,"risk_level":"HIGH","risk_probability":0.87}`))
	}))
	defer srv.Close()

	c := NewDetectorClient(srv.URL+"/", time.Second, testLogger())
	v, err := c.Detect(context.Background(), sampleVector())
	require.NoError(t, err)

	assert.Equal(t, domain.Verdict{IsAttacker: true, Confidence: 0.92, RiskLevel: "HIGH", RiskProbability: 0.87}, v)
	assert.Equal(t, sampleVector(), got)
}

func TestDetectorClient_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, domain.CodeTelemetryRejected},
		{"not found", http.StatusNotFound, ``, domain.CodeTelemetryRejected},
		{"not json", http.StatusOK, `<html>`, domain.CodeTelemetryMalformed},
		{"missing is_attacker", http.StatusOK, `{"confidence":0.5,"risk_level":"LOW","risk_probability":0.1}`, domain.CodeTelemetryMalformed},
		{"confidence out of range", http.StatusOK, `{"is_attacker":false,"confidence":1.5,"risk_level":"LOW","risk_probability":0.1}`, domain.CodeTelemetryMalformed},
		{"negative probability", http.StatusOK, `{"is_attacker":false,"confidence":0.5,"risk_level":"LOW","risk_probability":-0.1}`, domain.CodeTelemetryMalformed},
		{"missing probability", http.StatusOK, `{"is_attacker":false,"confidence":0.5}`, domain.CodeTelemetryMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewDetectorClient(srv.URL, time.Second, testLogger()).Detect(context.Background(), sampleVector())
			require.Error(t, err)
			var appErr *domain.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantCode, appErr.Code)
		})
	}
}

func TestDetectorClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewDetectorClient(url, time.Second, testLogger()).Detect(context.Background(), sampleVector())
	assert.True(t, errors.Is(err, domain.ErrTelemetryUnreachable(nil)))
}

func TestDetectorClient_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewDetectorClient(srv.URL, time.Second, testLogger())
	for i := 0; i < 5; i++ {
		_, err := c.Detect(context.Background(), sampleVector())
		require.True(t, errors.Is(err, domain.ErrTelemetryRejected(0)))
	}
	assert.Equal(t, "open", c.CircuitState())

	_, err := c.Detect(context.Background(), sampleVector())
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.True(t, errors.Is(err, domain.ErrTelemetryUnreachable(nil)))
	assert.Equal(t, int32(5), hits.Load(), "open circuit skips the call")
}

func TestDetectorClient_MalformedDoesNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewDetectorClient(srv.URL, time.Second, testLogger())
	for i := 0; i < 8; i++ {
		_, err := c.Detect(context.Background(), sampleVector())
		require.True(t, errors.Is(err, domain.ErrTelemetryMalformed(nil)))
	}
	assert.Equal(t, "closed", c.CircuitState())
}

func TestDetectorClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"healthy","model_loaded":true}`))
	}))
	defer srv.Close()

	h, err := NewDetectorClient(srv.URL, time.Second, testLogger()).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DetectorHealth{Status: "healthy", ModelLoaded: true}, h)
}

func TestDetectorClient_HealthDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewDetectorClient(srv.URL, time.Second, testLogger()).Health(context.Background())
	assert.True(t, errors.Is(err, domain.ErrTelemetryRejected(0)))
}
