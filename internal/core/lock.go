package core

// lock.go wraps Postgres session-scoped advisory locks to serialize
// writers per target table. The lock lives on one pooled connection and
// dies with it, so a crashed worker can never leave an orphaned lock.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hbm-systems/catalog-import/internal/database"
	"github.com/jackc/pgx/v5/pgconn"
)

const lockNamePrefix = "import:"

// lockNotAvailable is the Postgres error code raised when lock_timeout
// expires while waiting.
const lockNotAvailable = "55P03"

// LockName builds the advisory lock name for a target table.
func LockName(table string) string {
	return lockNamePrefix + table
}

// AdvisoryLock is a named, timeout-bounded mutual-exclusion primitive tied
// to one database session. Re-entrant acquisition is not supported.
type AdvisoryLock struct {
	conn database.DBTX
}

// NewAdvisoryLock binds the lock primitive to a dedicated connection.
// conn must be a single session (a *pgxpool.Conn, not the pool itself):
// advisory locks are session-scoped, so acquiring through a pool would
// lock on an arbitrary connection and never reliably release. The caller
// keeps the connection for the lock's lifetime.
func NewAdvisoryLock(conn database.DBTX) *AdvisoryLock {
	return &AdvisoryLock{conn: conn}
}

// Acquire blocks up to timeout waiting for the named lock, then reports
// whether it was obtained. A timeout is not an error; anything else is a
// PersistenceError.
func (l *AdvisoryLock) Acquire(ctx context.Context, name string, timeout time.Duration) (bool, error) {
	ms := timeout.Milliseconds()
	if ms <= 0 {
		ms = 1
	}

	// lock_timeout bounds the pg_advisory_lock wait; SET cannot take
	// bind parameters, but ms is derived from configuration only.
	if _, err := l.conn.Exec(ctx, fmt.Sprintf("SET lock_timeout = %d", ms)); err != nil {
		return false, &PersistenceError{Op: "set lock timeout", Err: err}
	}

	_, err := l.conn.Exec(ctx, "SELECT pg_advisory_lock(hashtext($1))", name)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable {
			return false, nil
		}
		return false, &PersistenceError{Op: "acquire advisory lock", Err: err}
	}

	// Restore the session default for subsequent statements on this conn
	if _, err := l.conn.Exec(ctx, "SET lock_timeout = 0"); err != nil {
		return true, &PersistenceError{Op: "reset lock timeout", Err: err}
	}

	return true, nil
}

// Release unlocks the named lock. Best-effort: releasing a lock this
// session does not hold is a no-op, and errors are swallowed because the
// session-scoped lock unwinds with the connection anyway.
func (l *AdvisoryLock) Release(ctx context.Context, name string) {
	_, _ = l.conn.Exec(ctx, "SELECT pg_advisory_unlock(hashtext($1))", name)
}
