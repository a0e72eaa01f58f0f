package service

import (
	"context"
	"time"

	"github.com/loginguard/platform/internal/domain"
	"github.com/loginguard/platform/internal/policy"
	"github.com/loginguard/platform/internal/provider"
)

// DashboardLogs is how many audit entries the dashboard shows.
const DashboardLogs = 10

// Dashboard is the presentation snapshot for the active account.
type Dashboard struct {
	Username       string                `json:"username"`
	Email          string                `json:"email"`
	FailedLogins   int                   `json:"failed_logins"`
	Reputation     float64               `json:"reputation_score"`
	LoginAttempts  int                   `json:"login_attempts"`
	AccessTime     string                `json:"access_time"`
	LastSession    *time.Time            `json:"last_session"`
	RecentLogs     []domain.AuditEntry   `json:"recent_logs"`
	SessionElapsed string                `json:"session_elapsed"`
	TransmittedKB  int                   `json:"transmitted_kb"`
	LatestVerdict  *domain.VerdictNotice `json:"latest_verdict,omitempty"`
}

// Dashboard returns the snapshot for the active account.
func (s *AuthService) Dashboard(ctx context.Context) (*Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.activeAccountLocked(ctx)
	if err != nil {
		return nil, err
	}
	return s.dashboardLocked(acct), nil
}

func (s *AuthService) dashboardLocked(acct *domain.Account) *Dashboard {
	snap := s.tracker.Snapshot()
	d := &Dashboard{
		Username:       acct.Username,
		Email:          acct.Email,
		FailedLogins:   acct.FailedLogins,
		Reputation:     acct.Reputation,
		LoginAttempts:  acct.LoginAttempts,
		AccessTime:     policy.ClassifyAccess(s.clock.Now()).AccessLabel(),
		RecentLogs:     acct.RecentLogs(DashboardLogs),
		SessionElapsed: snap.ElapsedDisplay,
		TransmittedKB:  snap.TransmittedKB,
	}
	if acct.LastSession != nil {
		t := *acct.LastSession
		d.LastSession = &t
	}
	if s.verdicts != nil {
		if n, ok := s.verdicts.Latest(acct.Username); ok {
			d.LatestVerdict = &n
		}
	}
	return d
}

// StatsExport is the downloadable statistics document for the active account.
type StatsExport struct {
	Username    string              `json:"username"`
	Timestamp   string              `json:"timestamp"`
	LoginStats  ExportLoginStats    `json:"loginStats"`
	Logs        []domain.AuditEntry `json:"logs"`
	SessionInfo ExportSessionInfo   `json:"sessionInfo"`
}

type ExportLoginStats struct {
	FailedLogins    int        `json:"failedLogins"`
	TotalAttempts   int        `json:"totalAttempts"`
	LastSession     *time.Time `json:"lastSession"`
	ReputationScore float64    `json:"reputationScore"`
}

type ExportSessionInfo struct {
	AccessTime string `json:"accessTime"`
	CurrentIP  string `json:"currentIP"`
}

// Stats returns the statistics export for the active account.
func (s *AuthService) Stats(ctx context.Context) (*StatsExport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.activeAccountLocked(ctx)
	if err != nil {
		return nil, err
	}

	c := acct.Clone()
	now := s.clock.Now()
	return &StatsExport{
		Username:  c.Username,
		Timestamp: domain.ISOTimestamp(now),
		LoginStats: ExportLoginStats{
			FailedLogins:    c.FailedLogins,
			TotalAttempts:   c.LoginAttempts,
			LastSession:     c.LastSession,
			ReputationScore: c.Reputation,
		},
		Logs: c.Logs,
		SessionInfo: ExportSessionInfo{
			AccessTime: policy.ClassifyAccess(now).AccessLabel(),
			CurrentIP:  provider.SimulatedIP(s.entropy),
		},
	}, nil
}

// Inspect returns a copy of any account, for operators.
func (s *AuthService) Inspect(ctx context.Context, username string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.accounts.Find(ctx, username)
	if err != nil {
		return nil, domain.ErrInternal("find account", err)
	}
	if acct == nil {
		return nil, domain.ErrNotFound("account", username)
	}
	return acct.Clone(), nil
}

func (s *AuthService) activeAccountLocked(ctx context.Context) (*domain.Account, error) {
	if s.current == "" {
		return nil, domain.ErrUnauthorized("no active session")
	}
	acct, err := s.accounts.Find(ctx, s.current)
	if err != nil {
		return nil, domain.ErrInternal("find account", err)
	}
	if acct == nil {
		return nil, domain.ErrNotFound("account", s.current)
	}
	return acct, nil
}
