// Package app builds the process-wide object graph from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/loginguard/platform/internal/auth"
	"github.com/loginguard/platform/internal/eventlog"
	"github.com/loginguard/platform/internal/guard"
	"github.com/loginguard/platform/internal/infra"
	"github.com/loginguard/platform/internal/provider"
	"github.com/loginguard/platform/internal/repository"
	"github.com/loginguard/platform/internal/service"
	"github.com/loginguard/platform/internal/session"
	"github.com/loginguard/platform/internal/telemetry"
)

// entropyBatch is how many RANDOM.ORG values are fetched at startup.
const entropyBatch = 256

// App owns every long-lived component. Build it with Wire and release it
// with Shutdown.
type App struct {
	Router       chi.Router
	Auth         *service.AuthService
	SystemLog    *eventlog.SystemLog
	Dispatcher   *telemetry.Dispatcher
	Hub          *infra.VerdictHub
	Tracker      *session.Tracker
	LoginLimiter *guard.RateLimiter

	producer *infra.KafkaProducer
	closeDB  func()
	logger   *slog.Logger
}

// Wire opens the record store, restores the system log and assembles the
// authentication pipeline and its router.
func Wire(ctx context.Context, cfg *infra.Config, logger *slog.Logger) (*App, error) {
	store, pinger, closeDB, err := OpenRecordStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var entropy provider.Entropy = provider.CSPRNG{}
	if cfg.RandomOrgAPIKey != "" {
		ro := provider.NewRandomOrgEntropy(cfg.RandomOrgAPIKey, logger)
		ro.Refill(ctx, entropyBatch)
		logger.Info("random.org entropy pool filled", "values", ro.Pooled())
		entropy = ro
	}

	syslog := eventlog.New(store, logger)
	syslog.Load(ctx)

	accounts := repository.NewAccountDirectory()
	if cfg.SeedDemoAccount {
		if err := service.SeedDemoAccount(ctx, accounts, time.Now()); err != nil {
			closeDB()
			return nil, fmt.Errorf("seed demo account: %w", err)
		}
		logger.Info("demo account seeded", "username", service.DemoUsername)
	}

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccountExpiry, cfg.JWTOperatorExpiry)
	hub := infra.NewVerdictHub(logger)
	tracker := session.NewTracker(provider.SystemClock{}, entropy, cfg.SessionTick, logger)
	detector := telemetry.NewDetectorClient(cfg.DetectorBaseURL, cfg.DetectorTimeout, logger)
	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)

	var dispatcherOpts []telemetry.DispatcherOption
	dispatcherOpts = append(dispatcherOpts, telemetry.WithEntropy(entropy))
	if producer.Enabled() {
		dispatcherOpts = append(dispatcherOpts, telemetry.WithMirror(producer))
	}
	dispatcher := telemetry.NewDispatcher(detector, syslog, tracker, hub, logger, dispatcherOpts...)

	authSvc := service.NewAuthService(accounts, tracker, dispatcher, jwtMgr, logger,
		service.WithEntropy(entropy),
		service.WithResetDelay(cfg.ResetDelay),
		service.WithVerdicts(hub),
	)

	limiter := guard.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow)

	router := NewRouter(RouterDeps{
		AuthSvc:      authSvc,
		SystemLog:    syslog,
		Hub:          hub,
		JWTMgr:       jwtMgr,
		Logger:       logger,
		Store:        pinger,
		Detector:     detector,
		LoginLimiter: limiter,
		OperatorKey:  cfg.OperatorKey,
		CORSOrigins:  cfg.CORSAllowedOrigins,
	})

	return &App{
		Router:       router,
		Auth:         authSvc,
		SystemLog:    syslog,
		Dispatcher:   dispatcher,
		Hub:          hub,
		Tracker:      tracker,
		LoginLimiter: limiter,
		producer:     producer,
		closeDB:      closeDB,
		logger:       logger,
	}, nil
}

// Shutdown closes the active session, drains in-flight telemetry, flushes
// the system log and releases connections. It returns every failure.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	a.Auth.Logout(ctx)
	if err := a.Dispatcher.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain telemetry: %w", err))
	}
	if err := a.SystemLog.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush system log: %w", err))
	}
	a.Hub.Shutdown(ctx)
	if err := a.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close kafka producer: %w", err))
	}
	a.closeDB()

	a.logger.Info("application stopped", "system_log_entries", a.SystemLog.Count())
	return errors.Join(errs...)
}

// OpenRecordStore returns the system log backend chosen by RECORD_STORE,
// a health pinger for it (nil for file and memory) and a release function.
func OpenRecordStore(ctx context.Context, cfg *infra.Config, logger *slog.Logger) (repository.RecordStore, infra.Pinger, func(), error) {
	noop := func() {}

	switch cfg.RecordStore {
	case infra.StoreMemory:
		logger.Info("record store: memory")
		return repository.NewMemoryRecordStore(), nil, noop, nil

	case infra.StoreFile:
		store, err := repository.NewFileRecordStore(cfg.DataDir)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open file store: %w", err)
		}
		logger.Info("record store: file", "dir", cfg.DataDir)
		return store, nil, noop, nil

	case infra.StoreSQLite:
		db, err := infra.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		store, err := repository.NewSQLiteRecordStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("init sqlite store: %w", err)
		}
		logger.Info("record store: sqlite", "path", cfg.SQLitePath)
		return store, infra.SQLPinger{DB: db}, func() { db.Close() }, nil

	case infra.StorePostgres:
		if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
			return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		pool, err := infra.NewPostgresPool(ctx, cfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		logger.Info("record store: postgres")
		return repository.NewPgRecordStore(pool), pool, pool.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown record store %q", cfg.RecordStore)
	}
}
