package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// PgRecordStore implements RecordStore on the kv_records table.
type PgRecordStore struct {
	db DBTX
}

// NewPgRecordStore creates a new PgRecordStore.
func NewPgRecordStore(db DBTX) *PgRecordStore {
	return &PgRecordStore{db: db}
}

// Load returns the record body, or nil if not found.
func (s *PgRecordStore) Load(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRow(ctx,
		`SELECT body FROM kv_records WHERE name = $1`, name).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Save upserts the record.
func (s *PgRecordStore) Save(ctx context.Context, name string, body []byte) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO kv_records (name, body, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		name, body)
	return err
}

// Delete removes the record.
func (s *PgRecordStore) Delete(ctx context.Context, name string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM kv_records WHERE name = $1`, name)
	return err
}
