package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteRecordStore implements RecordStore on a kv_records table in SQLite.
type SQLiteRecordStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv_records (
  name          TEXT PRIMARY KEY,
  body          BLOB NOT NULL,
  updated_at_ms INTEGER NOT NULL
);`

// NewSQLiteRecordStore wraps an opened database and ensures the kv_records
// table exists. See infra.OpenSQLite.
func NewSQLiteRecordStore(ctx context.Context, db *sql.DB) (*SQLiteRecordStore, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("ensure kv_records: %w", err)
	}
	return &SQLiteRecordStore{db: db}, nil
}

func (s *SQLiteRecordStore) Load(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM kv_records WHERE name = ?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (s *SQLiteRecordStore) Save(ctx context.Context, name string, body []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_records (name, body, updated_at_ms) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at_ms = excluded.updated_at_ms`,
		name, body, time.Now().UTC().UnixMilli())
	return err
}

func (s *SQLiteRecordStore) Delete(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_records WHERE name = ?`, name)
	return err
}
