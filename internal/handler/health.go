package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/loginguard/platform/internal/infra"
	"github.com/loginguard/platform/internal/telemetry"
)

const detectorProbeTimeout = 2 * time.Second

// DetectorProbe reports on the detection service.
type DetectorProbe interface {
	Health(ctx context.Context) (telemetry.DetectorHealth, error)
	CircuitState() string
}

type detectorStatus struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Circuit     string `json:"circuit"`
	Error       string `json:"error,omitempty"`
}

type healthResponse struct {
	Status   string          `json:"status"`
	Store    string          `json:"store"`
	Error    string          `json:"error,omitempty"`
	Detector *detectorStatus `json:"detector,omitempty"`
}

// HealthHandler returns a health check endpoint. Only a failing record store
// makes the service unhealthy; the detector is reported but never fatal.
// Either dependency may be nil.
func HealthHandler(store infra.Pinger, detector DetectorProbe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "healthy", Store: "ok"}
		status := http.StatusOK

		if store == nil {
			resp.Store = "n/a"
		} else if err := infra.HealthCheck(r.Context(), store); err != nil {
			resp.Status = "unhealthy"
			resp.Store = "down"
			resp.Error = err.Error()
			status = http.StatusServiceUnavailable
		}

		if detector != nil {
			ctx, cancel := context.WithTimeout(r.Context(), detectorProbeTimeout)
			defer cancel()
			ds := &detectorStatus{Circuit: detector.CircuitState()}
			h, err := detector.Health(ctx)
			if err != nil {
				ds.Status = "unreachable"
				ds.Error = err.Error()
			} else {
				ds.Status = h.Status
				ds.ModelLoaded = h.ModelLoaded
			}
			resp.Detector = ds
		}

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}
}
