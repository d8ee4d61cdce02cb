package pg

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Parameters an operator can correct after a failed connection.
const (
	HintAddress  = "DB_HOST/DB_PORT"
	HintAuth     = "DB_USER/DB_PASSWORD"
	HintDatabase = "DB_NAME"
	HintSSL      = "DB_SSLMODE"
)

// ConnectionError wraps a failure to reach a database and names the setting
// that most likely needs attention.
type ConnectionError struct {
	Database string
	Hint     string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("connect to %s: %v", e.Database, e.Err)
	}
	return fmt.Sprintf("connect to %s: %v (check %s)", e.Database, e.Err, e.Hint)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Diagnose classifies err as a ConnectionError for database. Nil stays nil.
func Diagnose(database string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return err
	}
	return &ConnectionError{Database: database, Hint: hintFor(err), Err: err}
}

func hintFor(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "28P01", "28000":
			return HintAuth
		case "3D000":
			return HintDatabase
		}
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return HintAddress
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return HintAddress
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return HintAddress
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "ssl"), strings.Contains(msg, "tls"):
		return HintSSL
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return HintAddress
	case strings.Contains(msg, "password authentication failed"):
		return HintAuth
	}
	return ""
}

// IsUniqueViolation reports whether err is a unique-constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolation reports whether err is a foreign-key failure.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// ConstraintName extracts the violated constraint, if the server reported one.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}
