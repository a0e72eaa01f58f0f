package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/loginguard/platform/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// AccountRepository owns the lifetime of every Account.
type AccountRepository interface {
	// Register creates an account in its initial state. Usernames are
	// compared byte for byte.
	Register(ctx context.Context, username, email, password string) (*domain.Account, error)

	// Find returns the live account handle, or nil if not found.
	Find(ctx context.Context, username string) (*domain.Account, error)

	// Seed inserts a fully formed account, replacing nothing.
	Seed(ctx context.Context, account *domain.Account) error

	// Count returns the number of registered accounts.
	Count(ctx context.Context) (int, error)
}

// RecordStore persists named opaque records, each rewritten whole.
type RecordStore interface {
	// Load returns the record body, or nil if the record does not exist.
	Load(ctx context.Context, name string) ([]byte, error)

	// Save replaces the record body.
	Save(ctx context.Context, name string, body []byte) error

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, name string) error
}
