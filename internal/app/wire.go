package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/loginguard/platform/internal/auth"
	"github.com/loginguard/platform/internal/eventlog"
	"github.com/loginguard/platform/internal/guard"
	"github.com/loginguard/platform/internal/handler"
	adminhandler "github.com/loginguard/platform/internal/handler/admin"
	"github.com/loginguard/platform/internal/infra"
	"github.com/loginguard/platform/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	AuthSvc   *service.AuthService
	SystemLog *eventlog.SystemLog
	Hub       *infra.VerdictHub
	JWTMgr    *auth.JWTManager
	Logger    *slog.Logger

	// Optional. A nil Store reports "n/a"; a nil Detector is omitted.
	Store    infra.Pinger
	Detector handler.DetectorProbe

	// Optional. Nil disables throttling of the credential endpoints.
	LoginLimiter *guard.RateLimiter

	OperatorKey string
	CORSOrigins string
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger
	jwtMgr := deps.JWTMgr

	// Handlers
	authHandler := handler.NewAuthHandler(deps.AuthSvc)
	sessionHandler := handler.NewSessionHandler(deps.AuthSvc)
	streamHandler := handler.NewVerdictStreamHandler(deps.Hub, jwtMgr, deps.CORSOrigins, logger)

	// Admin handlers
	systemLogAdmin := adminhandler.NewSystemLogHandler(deps.SystemLog)
	accountAdmin := adminhandler.NewAccountAdminHandler(deps.AuthSvc)
	tokenAdmin := adminhandler.NewTokenHandler(jwtMgr, deps.OperatorKey, logger)

	throttle := func(next http.Handler) http.Handler { return next }
	if deps.LoginLimiter != nil {
		throttle = handler.RateLimit(deps.LoginLimiter, logger)
	}

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(deps.CORSOrigins))
	r.Use(handler.JSONContentType)

	// Health and metrics (no auth)
	r.Get("/health", handler.HealthHandler(deps.Store, deps.Detector))
	r.Handle("/metrics", promhttp.Handler())

	// Verdict stream (token checked by the handler before upgrading)
	r.Get("/ws/verdicts", streamHandler.Stream)

	// Auth routes
	r.Route("/auth", func(r chi.Router) {
		r.With(throttle).Post("/register", authHandler.Register)
		r.With(throttle).Post("/login", authHandler.Login)
		r.Get("/state", authHandler.State)
		r.With(auth.AuthenticateAccount(jwtMgr)).Post("/logout", authHandler.Logout)
	})

	// Account-authenticated routes for the session holder
	r.Route("/session", func(r chi.Router) {
		r.Use(auth.AuthenticateAccount(jwtMgr))
		r.Use(sessionHandler.RequireActiveSession)

		r.Get("/dashboard", sessionHandler.Dashboard)
		r.Get("/stats", sessionHandler.Stats)
	})

	// Operator routes
	r.Route("/admin", func(r chi.Router) {
		r.With(throttle).Post("/token", tokenAdmin.Issue)

		r.Group(func(r chi.Router) {
			r.Use(auth.AuthenticateOperator(jwtMgr))
			r.Use(auth.RequireRole(auth.AllOperatorRoles()...))

			r.Get("/session", accountAdmin.GetSession)
			r.Get("/accounts/{username}", accountAdmin.GetAccount)

			r.Route("/system-logs", func(r chi.Router) {
				r.Get("/", systemLogAdmin.View)
				r.Get("/export", systemLogAdmin.Export)
				r.Get("/count", systemLogAdmin.Count)
				r.With(auth.RequireRole(auth.WriteRoles()...)).Delete("/", systemLogAdmin.Clear)
			})
		})
	})

	return r
}
