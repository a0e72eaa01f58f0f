package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/loginguard/platform/internal/auth"
	"github.com/loginguard/platform/internal/domain"
	"github.com/loginguard/platform/internal/metrics"
	"github.com/loginguard/platform/internal/policy"
	"github.com/loginguard/platform/internal/provider"
	"github.com/loginguard/platform/internal/repository"
	"github.com/loginguard/platform/internal/session"
	"github.com/loginguard/platform/internal/telemetry"
)

// DefaultResetDelay is how long a successful login keeps the pre-login
// failed-login count visible before clearing it.
const DefaultResetDelay = 100 * time.Millisecond

// Audit actions.
const (
	ActionLogin              = "Login"
	ActionLoginWrongPassword = "Login failed - wrong password"
	ActionLoginUnknownUser   = "Login failed - unknown user"
	ActionLogout             = "Logout"
)

// Logout reasons, used as metric labels.
const (
	LogoutUser       = "user"
	LogoutSuperseded = "superseded"
)

// EventDispatcher receives every authentication event. Implementations must
// not block on the detection service.
type EventDispatcher interface {
	Dispatch(ctx context.Context, ev telemetry.Event) domain.FeatureVector
}

// VerdictReader exposes the latest verdict received for a username.
type VerdictReader interface {
	Latest(username string) (domain.VerdictNotice, bool)
}

// AuthState is the authentication state machine position.
type AuthState struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

// AuthService is the authentication state machine. Every transition runs to
// completion under one mutex; the deferred failed-login reset takes the same
// mutex when it fires.
type AuthService struct {
	mu sync.Mutex

	accounts  repository.AccountRepository
	tracker   *session.Tracker
	events    EventDispatcher
	jwtMgr    *auth.JWTManager
	verdicts  VerdictReader
	scheduler provider.Scheduler
	clock     provider.Clock
	entropy   provider.Entropy
	delay     time.Duration
	logger    *slog.Logger

	current string
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithScheduler overrides the scheduler running the deferred reset.
func WithScheduler(s provider.Scheduler) Option {
	return func(a *AuthService) { a.scheduler = s }
}

// WithClock overrides the time source for audit entries and last-session stamps.
func WithClock(c provider.Clock) Option {
	return func(a *AuthService) { a.clock = c }
}

// WithEntropy overrides the random source for simulated audit fields.
func WithEntropy(e provider.Entropy) Option {
	return func(a *AuthService) { a.entropy = e }
}

// WithResetDelay overrides DefaultResetDelay.
func WithResetDelay(d time.Duration) Option {
	return func(a *AuthService) { a.delay = d }
}

// WithVerdicts attaches the latest-verdict source used by the dashboard.
func WithVerdicts(v VerdictReader) Option {
	return func(a *AuthService) { a.verdicts = v }
}

// NewAuthService creates an AuthService in the Anonymous state.
func NewAuthService(
	accounts repository.AccountRepository,
	tracker *session.Tracker,
	events EventDispatcher,
	jwtMgr *auth.JWTManager,
	logger *slog.Logger,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		accounts:  accounts,
		tracker:   tracker,
		events:    events,
		jwtMgr:    jwtMgr,
		scheduler: provider.RealScheduler{},
		clock:     provider.SystemClock{},
		entropy:   provider.CSPRNG{},
		delay:     DefaultResetDelay,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput holds the registration request fields.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account. It does not change the authentication state.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.Account, error) {
	if err := domain.ValidateUsername(input.Username); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidateEmail(input.Email); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidatePassword(input.Password); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.accounts.Register(ctx, input.Username, input.Email, input.Password)
	if err != nil {
		return nil, err
	}
	s.logger.Info("account registered", "username", input.Username)
	return acct.Clone(), nil
}

// LoginInput holds the login request fields. UserAgent is filled in by the
// transport from the request headers.
type LoginInput struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	UserAgent string `json:"-"`
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string     `json:"token"`
	Dashboard *Dashboard `json:"dashboard"`
}

// AttemptLogin runs one login transition. Wrong credentials and unknown
// usernames are returned as INVALID_CREDENTIAL and UNKNOWN_ACCOUNT.
func (s *AuthService) AttemptLogin(ctx context.Context, input LoginInput) (*LoginResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.accounts.Find(ctx, input.Username)
	if err != nil {
		return nil, domain.ErrInternal("find account", err)
	}
	if acct == nil {
		s.unknownUserLocked(ctx, input)
		return nil, domain.ErrUnknownAccount()
	}

	acct.LoginAttempts++

	if acct.Password != input.Password {
		acct.FailedLogins++
		acct.Reputation = policy.Score(acct.Reputation, policy.OutcomeFailure)
		acct.PrependLog(s.auditEntry(ActionLoginWrongPassword, domain.AuditFailure, domain.NoDuration))
		s.dispatch(ctx, domain.EventLoginFailedWrongPassword, acct, input.UserAgent)

		metrics.LoginAttempts.WithLabelValues("wrong_password").Inc()
		s.logger.Info("login failed",
			"username", acct.Username,
			"failed_logins", acct.FailedLogins,
			"reputation", acct.Reputation,
		)
		return nil, domain.ErrInvalidCredential(acct.FailedLogins)
	}

	if s.current != "" {
		s.logoutLocked(ctx, LogoutSuperseded)
	}

	token, err := s.jwtMgr.GenerateToken(auth.RealmAccount, acct.Username, acct.Email, "")
	if err != nil {
		return nil, domain.ErrInternal("generate token", err)
	}

	s.current = acct.Username
	if err := s.tracker.Start(acct.Username, input.UserAgent); err != nil {
		s.logger.Error("session start failed", "username", acct.Username, "error", err)
	}
	metrics.ActiveSessions.Set(1)

	previous := acct.FailedLogins
	acct.PrependLog(s.auditEntry(ActionLogin, domain.AuditSuccess, domain.NoDuration))

	tag := domain.EventLoginSuccess
	if previous > 0 {
		tag = domain.EventLoginSuccessAfterFailures
	}
	s.dispatch(ctx, tag, acct, input.UserAgent)

	acct.Reputation = policy.Score(acct.Reputation, policy.OutcomeSuccess)
	now := s.clock.Now()
	acct.LastSession = &now

	username := acct.Username
	s.scheduler.AfterFunc(s.delay, func() { s.resetFailedLogins(username, previous) })

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.logger.Info("login succeeded",
		"username", acct.Username,
		"previous_failed_logins", previous,
		"reputation", acct.Reputation,
	)

	return &LoginResult{Token: token, Dashboard: s.dashboardLocked(acct)}, nil
}

// Logout closes the active session. It reports whether anything happened;
// logging out while Anonymous is a no-op.
func (s *AuthService) Logout(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == "" {
		return false
	}
	s.logoutLocked(ctx, LogoutUser)
	return true
}

// LogoutAs is Logout for a caller identified by username. It only closes
// the session when username holds it.
func (s *AuthService) LogoutAs(ctx context.Context, username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == "" || s.current != username {
		return false
	}
	s.logoutLocked(ctx, LogoutUser)
	return true
}

// State returns the current state machine position.
func (s *AuthService) State() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AuthState{Authenticated: s.current != "", Username: s.current}
}

// IsActive reports whether username holds the active session.
func (s *AuthService) IsActive(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != "" && s.current == username
}

func (s *AuthService) unknownUserLocked(ctx context.Context, input LoginInput) {
	// The entry belongs to whoever is signed in; with nobody signed in there
	// is no account to own it.
	if s.current != "" {
		if owner, err := s.accounts.Find(ctx, s.current); err == nil && owner != nil {
			owner.PrependLog(s.auditEntry(ActionLoginUnknownUser, domain.AuditFailure, domain.NoDuration))
		}
	}

	s.events.Dispatch(ctx, telemetry.Event{
		Tag:       domain.EventLoginFailedUserNotFound,
		Username:  input.Username,
		UserAgent: input.UserAgent,
	})

	metrics.LoginAttempts.WithLabelValues("unknown_user").Inc()
	s.logger.Info("login failed, unknown user", "username", input.Username)
}

func (s *AuthService) logoutLocked(ctx context.Context, reason string) {
	username := s.current
	elapsed, _ := s.tracker.Elapsed()

	acct, err := s.accounts.Find(ctx, username)
	if err != nil || acct == nil {
		s.logger.Error("active account missing at logout", "username", username, "error", err)
	} else {
		acct.PrependLog(s.auditEntry(ActionLogout, domain.AuditSuccess, session.FormatDuration(elapsed)))
		s.dispatch(ctx, domain.EventLogout, acct, s.tracker.Snapshot().UserAgent)
	}

	s.tracker.Stop()
	s.current = ""

	metrics.ActiveSessions.Set(0)
	metrics.Logouts.WithLabelValues(reason).Inc()
	s.logger.Info("logged out", "username", username, "reason", reason, "duration", session.FormatDuration(elapsed))
}

func (s *AuthService) resetFailedLogins(username string, previous int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.accounts.Find(context.Background(), username)
	if err != nil || acct == nil {
		s.logger.Error("deferred reset: account missing", "username", username, "error", err)
		return
	}

	acct.FailedLogins = 0
	if previous > 0 {
		acct.FailedLoginsHistory = append(acct.FailedLoginsHistory, domain.FailedLoginSnapshot{
			Count:   previous,
			ResetAt: s.clock.Now(),
		})
	}
	s.logger.Debug("failed logins reset", "username", username, "previous", previous)
}

func (s *AuthService) dispatch(ctx context.Context, tag domain.EventTag, acct *domain.Account, userAgent string) {
	s.events.Dispatch(ctx, telemetry.Event{
		Tag:           tag,
		Username:      acct.Username,
		FailedLogins:  acct.FailedLogins,
		TotalAttempts: acct.LoginAttempts,
		Reputation:    acct.Reputation,
		UserAgent:     userAgent,
	})
}

func (s *AuthService) auditEntry(action string, status domain.AuditStatus, duration string) domain.AuditEntry {
	return domain.AuditEntry{
		Timestamp: s.clock.Now(),
		Action:    action,
		Status:    status,
		IP:        provider.SimulatedIP(s.entropy),
		Duration:  duration,
		Packets:   provider.SimulatedPacketSize(s.entropy),
	}
}
