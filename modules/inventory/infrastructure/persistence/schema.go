// Package persistence implements the hub/satellite/link stores on
// Postgres via pgx. Every operation runs inside one transaction whose
// first statement pins the tenant schema; the binding cannot change
// mid-transaction.
//
// Row state follows the legacy Data Vault convention: a satellite or link
// row is the current/open version while load_date = load_end_date, and
// becomes historical once load_end_date is advanced past load_date. Rows
// are never deleted.
package persistence

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

var timeNow = time.Now

var schemaNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// beginSchemaTx opens the transaction of one logical operation and binds
// it to the tenant schema. set_config with is_local=true keeps the
// search_path change scoped to this transaction only.
func beginSchemaTx(ctx context.Context, pool pgBeginner, schema string) (pgx.Tx, error) {
	if !schemaNameRe.MatchString(schema) {
		return nil, fmt.Errorf("invalid tenant schema name %q", schema)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `SELECT set_config('search_path', $1, true);`, schema); err != nil {
		_ = tx.Rollback(context.Background())
		return nil, err
	}
	return tx, nil
}

func scanKeys(ctx context.Context, tx pgx.Tx, query string, args []any) ([]string, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
