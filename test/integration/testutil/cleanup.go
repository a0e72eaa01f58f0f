//go:build integration

package testutil

import (
	"context"
	"time"
)

// CleanAll empties every table the record store writes to.
func (env *TestEnv) CleanAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tables := []string{
		"kv_records",
	}

	for _, table := range tables {
		_, _ = env.Pool.Exec(ctx, "TRUNCATE TABLE "+table)
	}
}
