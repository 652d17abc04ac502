package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type beginFunc func(ctx context.Context) (pgx.Tx, error)

func (f beginFunc) Begin(ctx context.Context) (pgx.Tx, error) { return f(ctx) }

// txPool hands out scripted transactions in order, one per Begin.
type txPool struct {
	txs []*fakeTx
	i   int
}

func (p *txPool) Begin(context.Context) (pgx.Tx, error) {
	if p.i >= len(p.txs) {
		return nil, errors.New("no more transactions scripted")
	}
	tx := p.txs[p.i]
	p.i++
	return tx, nil
}

func pool(txs ...*fakeTx) *txPool { return &txPool{txs: txs} }

// fakeTx scripts QueryRow/Query/Exec responses by SQL fragment. Fragments
// must be distinct enough to match exactly one statement of the operation
// under test. Rows queue per fragment: repeated calls pop in order.
type fakeTx struct {
	rows       map[string][]stubRow
	results    map[string][][]any
	execTags   map[string]pgconn.CommandTag
	execErrs   map[string]error
	execSQL    []string
	querySQL   []string
	rowArgs    [][]any
	commitErr  error
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return t.commitErr
}
func (t *fakeTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}
func (t *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *fakeTx) Conn() *pgx.Conn { return nil }

func (t *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	t.execSQL = append(t.execSQL, sql)
	for frag, err := range t.execErrs {
		if strings.Contains(sql, frag) {
			return pgconn.CommandTag{}, err
		}
	}
	for frag, tag := range t.execTags {
		if strings.Contains(sql, frag) {
			return tag, nil
		}
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (t *fakeTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	t.rowArgs = append(t.rowArgs, args)
	for frag := range t.rows {
		if strings.Contains(sql, frag) {
			q := t.rows[frag]
			if len(q) == 0 {
				return stubRow{err: fmt.Errorf("rows exhausted for fragment %q", frag)}
			}
			t.rows[frag] = q[1:]
			return q[0]
		}
	}
	return stubRow{err: fmt.Errorf("row not scripted: %s", strings.TrimSpace(sql))}
}

func (t *fakeTx) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	t.querySQL = append(t.querySQL, sql)
	for frag, vals := range t.results {
		if strings.Contains(sql, frag) {
			return &stubRows{vals: vals}, nil
		}
	}
	return &stubRows{}, nil
}

func (t *fakeTx) execContaining(frag string) int {
	n := 0
	for _, sql := range t.execSQL {
		if strings.Contains(sql, frag) {
			n++
		}
	}
	return n
}

type stubRow struct {
	vals []any
	err  error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i := range dest {
		if i >= len(r.vals) {
			continue
		}
		v := r.vals[i]
		switch d := dest[i].(type) {
		case *int:
			if v != nil {
				*d = v.(int)
			}
		case *string:
			if v != nil {
				*d = v.(string)
			}
		case **string:
			if v == nil {
				*d = nil
			} else {
				s := v.(string)
				*d = &s
			}
		case **float64:
			if v == nil {
				*d = nil
			} else {
				f := v.(float64)
				*d = &f
			}
		case *time.Time:
			if v != nil {
				*d = v.(time.Time)
			}
		default:
			return fmt.Errorf("unsupported scan destination %T", d)
		}
	}
	return nil
}

type stubRows struct {
	vals [][]any
	idx  int
	err  error
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return r.err }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Next() bool {
	if r.idx >= len(r.vals) {
		return false
	}
	r.idx++
	return true
}
func (r *stubRows) Scan(dest ...any) error {
	return stubRow{vals: r.vals[r.idx-1]}.Scan(dest...)
}
func (r *stubRows) Values() ([]any, error) { return nil, nil }
func (r *stubRows) RawValues() [][]byte    { return nil }
func (r *stubRows) Conn() *pgx.Conn        { return nil }

func asType[T error](err error, target *T) bool { return errors.As(err, target) }

func contains(s, sub string) bool { return strings.Contains(s, sub) }

func mustNotCommit(t *testing.T, tx *fakeTx) {
	t.Helper()
	if tx.committed {
		t.Fatal("transaction committed, expected rollback")
	}
	if !tx.rolledBack {
		t.Fatal("transaction not rolled back")
	}
}
