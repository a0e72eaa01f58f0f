//go:build integration

package testutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loginguard/platform/internal/app"
	"github.com/loginguard/platform/internal/infra"
)

const (
	TestJWTSecret   = "integration-test-secret"
	TestOperatorKey = "integration-operator-key"
	TestDBHost      = "localhost"
	TestDBPort      = 5435
	TestDBUser      = "loginguard"
	TestDBPass      = "loginguard"
	TestDBName      = "loginguard_test"
)

// TestEnv holds all resources for an integration test.
type TestEnv struct {
	Server   *httptest.Server
	Detector *httptest.Server
	Pool     *pgxpool.Pool
	App      *app.App

	// DetectorHits counts requests received by the fake detection service.
	DetectorHits atomic.Int32

	t *testing.T
}

var (
	sharedPool *pgxpool.Pool
	poolOnce   sync.Once
	poolErr    error
)

func testDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		TestDBUser, TestDBPass, TestDBHost, TestDBPort, TestDBName)
}

func bootstrapDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		TestDBUser, TestDBPass, TestDBHost, TestDBPort, "loginguard")
}

func ensureTestDB() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Connect to the main database to create the test database
	bPool, err := pgxpool.New(ctx, bootstrapDSN())
	if err != nil {
		return fmt.Errorf("connect bootstrap db: %w", err)
	}
	defer bPool.Close()

	var exists bool
	err = bPool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", TestDBName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check db exists: %w", err)
	}

	if !exists {
		_, err = bPool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", TestDBName))
		if err != nil {
			return fmt.Errorf("create test db: %w", err)
		}
	}

	return nil
}

func runMigrations() error {
	migratePath := fmt.Sprintf("file://%s/db/migrations", findProjectRoot())

	m, err := newMigrate(migratePath, testDSN())
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "."
		}
		dir = parent
	}
}

func getSharedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	poolOnce.Do(func() {
		if err := ensureTestDB(); err != nil {
			poolErr = err
			return
		}
		if err := runMigrations(); err != nil {
			poolErr = fmt.Errorf("run migrations: %w", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		poolCfg, err := pgxpool.ParseConfig(testDSN())
		if err != nil {
			poolErr = fmt.Errorf("parse pool config: %w", err)
			return
		}
		poolCfg.MaxConns = 4
		poolCfg.MinConns = 1

		sharedPool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			poolErr = fmt.Errorf("create pool: %w", err)
		}
	})

	if poolErr != nil {
		t.Fatalf("failed to initialize test pool: %v", poolErr)
	}
	return sharedPool
}

// TestConfig returns a Postgres-backed configuration pointing at detectorURL.
func TestConfig(detectorURL string) *infra.Config {
	return &infra.Config{
		APIPort:            0,
		DetectorBaseURL:    detectorURL,
		DetectorTimeout:    2 * time.Second,
		RecordStore:        infra.StorePostgres,
		DatabaseURL:        testDSN(),
		JWTSecret:          TestJWTSecret,
		JWTAccountExpiry:   time.Hour,
		JWTOperatorExpiry:  time.Hour,
		OperatorKey:        TestOperatorKey,
		ResetDelay:         50 * time.Millisecond,
		SessionTick:        time.Second,
		LoginRateLimit:     0,
		LoginRateWindow:    time.Minute,
		CORSAllowedOrigins: "*",
	}
}

// NewTestEnv wires the real application against the test database and a
// fake detection service that flags every event after a failure.
func NewTestEnv(t *testing.T) *TestEnv {
	return NewTestEnvWithConfig(t, nil)
}

// NewTestEnvWithConfig is NewTestEnv with a hook to adjust the configuration.
func NewTestEnvWithConfig(t *testing.T, adjust func(*infra.Config)) *TestEnv {
	t.Helper()

	pool := getSharedPool(t)
	env := &TestEnv{Pool: pool, t: t}

	// Clean before wiring so the system log starts empty
	env.CleanAll()

	env.Detector = httptest.NewServer(http.HandlerFunc(env.serveDetector))

	cfg := TestConfig(env.Detector.URL)
	if adjust != nil {
		adjust(cfg)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	a, err := app.Wire(context.Background(), cfg, logger)
	if err != nil {
		env.Detector.Close()
		t.Fatalf("wire application: %v", err)
	}
	env.App = a
	env.Server = httptest.NewServer(a.Router)

	t.Cleanup(func() {
		env.Server.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Shutdown(ctx); err != nil {
			t.Logf("shutdown: %v", err)
		}
		env.Detector.Close()
		env.CleanAll()
	})

	return env
}
