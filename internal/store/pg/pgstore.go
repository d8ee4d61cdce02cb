package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// DriverName is the database/sql driver registered by pgx.
const DriverName = "pgx"

// LockKey names the advisory lock that serialises almadb runs on one server.
const LockKey = "almadb"

// ErrLocked is returned when another run holds the advisory lock.
var ErrLocked = errors.New("pg: another almadb run holds the lock")

// Open connects to dsn and verifies the connection. The pool is limited to a
// single connection: every statement of a run shares one session, which the
// engines rely on for session settings and the advisory lock.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// QuoteIdent quotes a database or table name for interpolation into DDL.
func QuoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// Lock is a held session-level advisory lock.
type Lock struct {
	conn *sql.Conn
	key  string
}

// AcquireRunLock takes pg_try_advisory_lock on a dedicated session. It does
// not wait: a held lock yields ErrLocked.
func AcquireRunLock(ctx context.Context, db *sql.DB, key string) (*Lock, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	var ok bool
	if err := conn.QueryRowContext(ctx, `select pg_try_advisory_lock(hashtext($1))`, key).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("advisory lock: %w", err)
	}
	if !ok {
		_ = conn.Close()
		return nil, ErrLocked
	}
	return &Lock{conn: conn, key: key}, nil
}

// Release unlocks and returns the session to the pool.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil || l.conn == nil {
		return nil
	}
	defer func() {
		_ = l.conn.Close()
		l.conn = nil
	}()
	if _, err := l.conn.ExecContext(ctx, `select pg_advisory_unlock(hashtext($1))`, l.key); err != nil {
		return fmt.Errorf("advisory unlock: %w", err)
	}
	return nil
}

// Connector opens databases on one server; DSN maps a database name to a
// connection string.
type Connector struct {
	DSN func(database string) string
}

func (c Connector) Open(ctx context.Context, database string) (*sql.DB, error) {
	if c.DSN == nil {
		return nil, errors.New("pg: connector has no DSN builder")
	}
	return Open(ctx, c.DSN(database))
}
