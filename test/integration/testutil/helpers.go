//go:build integration

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/loginguard/platform/internal/domain"
	"github.com/loginguard/platform/internal/eventlog"
)

// serveDetector answers /api/detect-attack with an attacker verdict for any
// event carrying failed logins and /api/health with a loaded model.
func (env *TestEnv) serveDetector(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/health":
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok", "model_loaded": true})
	case "/api/detect-attack":
		env.DetectorHits.Add(1)
		var fv domain.FeatureVector
		if err := json.NewDecoder(r.Body).Decode(&fv); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		attacker := fv.FailedLogins > 0
		risk := "low"
		if attacker {
			risk = "high"
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"is_attacker":      attacker,
			"confidence":       0.9,
			"risk_level":       risk,
			"risk_probability": 0.5,
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// Register creates an account through the API.
func (env *TestEnv) Register(username, email, password string) {
	env.t.Helper()
	resp := env.POST("/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		env.t.Fatalf("Register: expected 201, got %d", resp.StatusCode)
	}
}

// Login authenticates and returns the account token.
func (env *TestEnv) Login(username, password string) string {
	env.t.Helper()
	resp := env.POST("/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		env.t.Fatalf("Login: expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		env.t.Fatalf("Login: decode: %v", err)
	}
	return result.Token
}

// OperatorToken exchanges the test operator key for a token with role.
func (env *TestEnv) OperatorToken(role string) string {
	env.t.Helper()
	resp := env.POST("/admin/token", map[string]string{"key": TestOperatorKey, "role": role}, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		env.t.Fatalf("OperatorToken: expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		env.t.Fatalf("OperatorToken: decode: %v", err)
	}
	return result.Token
}

// WaitForTelemetry blocks until every dispatched vector has been sent.
func (env *TestEnv) WaitForTelemetry() {
	env.App.Dispatcher.Wait()
}

// PersistedSystemLog reads the system log record straight from Postgres.
// A missing record returns nil.
func (env *TestEnv) PersistedSystemLog() []domain.SystemLogEntry {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var body []byte
	err := env.Pool.QueryRow(ctx,
		"SELECT body FROM kv_records WHERE name = $1", eventlog.RecordName).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		env.t.Fatalf("PersistedSystemLog: query: %v", err)
	}

	var entries []domain.SystemLogEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		env.t.Fatalf("PersistedSystemLog: decode: %v", err)
	}
	return entries
}

// GET performs an unauthenticated GET request.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	resp, err := http.Get(env.Server.URL + path)
	if err != nil {
		env.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// POST performs a POST request with optional auth token.
func (env *TestEnv) POST(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("POST %s: encode: %v", path, err)
		}
	}
	req, err := http.NewRequest("POST", env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("POST %s: new request: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "integration-test")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// AuthGET performs an authenticated GET request.
func (env *TestEnv) AuthGET(path, token string) *http.Response {
	env.t.Helper()
	req, err := http.NewRequest("GET", env.Server.URL+path, nil)
	if err != nil {
		env.t.Fatalf("AuthGET %s: new request: %v", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("AuthGET %s: %v", path, err)
	}
	return resp
}

// AuthDELETE performs an authenticated DELETE request.
func (env *TestEnv) AuthDELETE(path, token string) *http.Response {
	env.t.Helper()
	req, err := http.NewRequest("DELETE", env.Server.URL+path, nil)
	if err != nil {
		env.t.Fatalf("DELETE %s: new request: %v", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("DELETE %s: %v", path, err)
	}
	return resp
}

// OPTIONS performs an OPTIONS request.
func (env *TestEnv) OPTIONS(path string) *http.Response {
	env.t.Helper()
	req, err := http.NewRequest("OPTIONS", env.Server.URL+path, nil)
	if err != nil {
		env.t.Fatalf("OPTIONS %s: new request: %v", path, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("OPTIONS %s: %v", path, err)
	}
	return resp
}
