package repository

import (
	"context"
	"sync"

	"github.com/loginguard/platform/internal/domain"
)

// AccountDirectory is the in-memory account registry. Accounts are never
// deleted or renamed.
type AccountDirectory struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

// NewAccountDirectory creates an empty directory.
func NewAccountDirectory() *AccountDirectory {
	return &AccountDirectory{accounts: make(map[string]*domain.Account)}
}

// Register creates a new account or fails with ALREADY_EXISTS.
func (d *AccountDirectory) Register(_ context.Context, username, email, password string) (*domain.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.accounts[username]; ok {
		return nil, domain.ErrAlreadyExists(username)
	}
	acct := domain.NewAccount(username, email, password)
	d.accounts[username] = acct
	return acct, nil
}

// Find returns the live account handle, or nil if not found.
func (d *AccountDirectory) Find(_ context.Context, username string) (*domain.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.accounts[username], nil
}

// Seed inserts a fully formed account.
func (d *AccountDirectory) Seed(_ context.Context, account *domain.Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.accounts[account.Username]; ok {
		return domain.ErrAlreadyExists(account.Username)
	}
	d.accounts[account.Username] = account
	return nil
}

// Count returns the number of registered accounts.
func (d *AccountDirectory) Count(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.accounts), nil
}
