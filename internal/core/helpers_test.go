package core

// helpers_test.go holds the shared in-memory DBTX fake. Query paths the
// pipeline uses are QueryRow and Exec only, so Query is left unimplemented.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hbm-systems/catalog-import/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeRow is one scripted QueryRow response.
type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) > len(r.vals) {
		return fmt.Errorf("fakeRow: %d dests, %d vals", len(dest), len(r.vals))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.vals[i].(int64)
		case *string:
			*p = r.vals[i].(string)
		case *bool:
			*p = r.vals[i].(bool)
		default:
			return fmt.Errorf("fakeRow: unsupported dest %T", d)
		}
	}
	return nil
}

// fakeDB replays scripted QueryRow responses in order and records Exec
// calls. execErr, when set, decides per-statement failure.
type fakeDB struct {
	rows     []fakeRow
	execSQL  []string
	execArgs [][]any
	execErr  func(sql string, args []any) error
	execTag  string // command tag returned by Exec, "UPDATE 1" when empty
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	if f.execErr != nil {
		if err := f.execErr(sql, args); err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	tag := f.execTag
	if tag == "" {
		tag = "UPDATE 1"
	}
	return pgconn.NewCommandTag(tag), nil
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("fakeDB: Query not supported")
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if len(f.rows) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	row := f.rows[0]
	f.rows = f.rows[1:]
	return row
}

// containsSQL reports whether any recorded Exec statement contains frag.
func (f *fakeDB) containsSQL(frag string) bool {
	for _, s := range f.execSQL {
		if strings.Contains(s, frag) {
			return true
		}
	}
	return false
}

// newTestService wires a Service around a fake, with sane import config.
func newTestService(t *testing.T, db *fakeDB) *Service {
	t.Helper()
	cfg := &config.Config{}
	cfg.Import.BatchSize = 3
	cfg.Import.ProgressEvery = 5
	cfg.Import.RootPosix = "/srv/import"
	cfg.Import.RootWindows = `D:\import`
	return &Service{
		db:       db,
		cfg:      cfg,
		sentinel: NewSentinel(nil),
	}
}
