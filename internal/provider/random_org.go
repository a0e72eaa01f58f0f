package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// RandomOrgEntropy serves Entropy from a pre-fetched RANDOM.ORG batch and
// falls back to CSPRNG when the batch is exhausted or the API is unavailable.
type RandomOrgEntropy struct {
	apiKey   string
	endpoint string
	logger   *slog.Logger
	client   *http.Client

	mu   sync.Mutex
	pool []int
}

// NewRandomOrgEntropy creates a new RANDOM.ORG backed entropy source.
func NewRandomOrgEntropy(apiKey string, logger *slog.Logger) *RandomOrgEntropy {
	return &RandomOrgEntropy{
		apiKey:   apiKey,
		endpoint: "https://api.random.org/json-rpc/4/invoke",
		logger:   logger,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Refill fetches n raw values in [0, 1e9) into the local pool. Errors are
// logged and leave the CSPRNG fallback in charge.
func (e *RandomOrgEntropy) Refill(ctx context.Context, n int) {
	if e.apiKey == "" {
		e.logger.Debug("random.org api key not set, using CSPRNG fallback")
		return
	}
	data, err := e.fetchFromAPI(ctx, n)
	if err != nil {
		e.logger.Warn("random.org unavailable, falling back to CSPRNG", "error", err)
		return
	}
	e.mu.Lock()
	e.pool = append(e.pool, data...)
	e.mu.Unlock()
}

// Intn implements Entropy.
func (e *RandomOrgEntropy) Intn(n int) int {
	e.mu.Lock()
	if len(e.pool) > 0 {
		v := e.pool[0]
		e.pool = e.pool[1:]
		e.mu.Unlock()
		return v % n
	}
	e.mu.Unlock()
	return CSPRNG{}.Intn(n)
}

// Pooled returns the number of unused values.
func (e *RandomOrgEntropy) Pooled() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pool)
}

func (e *RandomOrgEntropy) fetchFromAPI(ctx context.Context, n int) ([]int, error) {
	reqBody := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "generateIntegers",
		"params": map[string]interface{}{
			"apiKey":      e.apiKey,
			"n":           n,
			"min":         0,
			"max":         999_999_999,
			"replacement": true,
		},
		"id": 1,
	}

	body, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api returned %d", resp.StatusCode)
	}

	var response struct {
		Result struct {
			Random struct {
				Data []int `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if response.Error != nil {
		return nil, fmt.Errorf("api error: %s", response.Error.Message)
	}

	return response.Result.Random.Data, nil
}
