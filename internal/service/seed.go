package service

import (
	"context"
	"time"

	"github.com/loginguard/platform/internal/domain"
	"github.com/loginguard/platform/internal/repository"
)

// Demo account values.
const (
	DemoUsername   = "admin"
	DemoPassword   = "admin123"
	DemoEmail      = "admin@example.com"
	DemoReputation = 0.8
	DemoAttempts   = 5
)

// SeedDemoAccount inserts the demo account with two historical audit entries.
// It is a no-op if the account already exists.
func SeedDemoAccount(ctx context.Context, accounts repository.AccountRepository, now time.Time) error {
	existing, err := accounts.Find(ctx, DemoUsername)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	acct := domain.NewAccount(DemoUsername, DemoEmail, DemoPassword)
	acct.Reputation = DemoReputation
	acct.LoginAttempts = DemoAttempts
	acct.Logs = []domain.AuditEntry{
		{
			Timestamp: now.Add(-time.Hour),
			Action:    ActionLogin,
			Status:    domain.AuditSuccess,
			IP:        "192.168.1.100",
			Duration:  "45m 30s",
			Packets:   "1.2 MB",
		},
		{
			Timestamp: now.Add(-2 * time.Hour),
			Action:    "Login failed",
			Status:    domain.AuditFailure,
			IP:        "192.168.1.101",
			Duration:  domain.NoDuration,
			Packets:   "2 KB",
		},
	}
	return accounts.Seed(ctx, acct)
}
