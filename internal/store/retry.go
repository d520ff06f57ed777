package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	"podcache/internal/logging"
)

const (
	retryAttempts     = 3
	retryBaseBackoff  = 250 * time.Millisecond
	reconnectDeadline = 2 * time.Second
)

// errorKind is the closed classification of metadata-store failures.
type errorKind int

const (
	// kindUnknown covers errors the classifier cannot place; treated as
	// non-retryable so surprises surface instead of looping.
	kindUnknown errorKind = iota
	kindTransient
	kindPermanent
)

// SQLite extended result codes that indicate contention or a lost connection
// rather than a broken statement.
var transientSQLiteCodes = map[int]struct{}{
	5:  {}, // SQLITE_BUSY
	6:  {}, // SQLITE_LOCKED
	10: {}, // SQLITE_IOERR
}

// SQLITE_CONSTRAINT: the statement itself is invalid for the current data.
const sqliteConstraintCode = 19

// classify places a store error into the closed taxonomy. Substring matching
// is kept here, and only here, for conditions the driver exposes no typed
// code for.
func classify(err error) errorKind {
	if err == nil {
		return kindUnknown
	}
	if errors.Is(err, driver.ErrBadConn) {
		return kindTransient
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		code := coder.Code()
		if _, ok := transientSQLiteCodes[code&0xff]; ok {
			return kindTransient
		}
		if code&0xff == sqliteConstraintCode {
			return kindPermanent
		}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "SQLITE_BUSY"),
		strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "database table is locked"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "bad connection"),
		strings.Contains(msg, "database engine exited"),
		strings.Contains(msg, "interrupted"):
		return kindTransient
	case strings.Contains(msg, "UNIQUE constraint"),
		strings.Contains(msg, "CHECK constraint"),
		strings.Contains(msg, "NOT NULL constraint"),
		strings.Contains(msg, "FOREIGN KEY constraint"):
		return kindPermanent
	}
	return kindUnknown
}

// withRetry runs op up to retryAttempts times, retrying only transient
// failures. Between attempts it pings the database so the pool can replace a
// dead connection, then sleeps a linearly growing backoff. The final failure
// is returned unwrapped so callers can add their own context.
func (s *Store) withRetry(ctx context.Context, operation string, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if classify(lastErr) != kindTransient || attempt == retryAttempts {
			break
		}
		s.logger.Warn("retrying store operation",
			logging.String("operation", operation),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Error(lastErr))
		s.reconnect(ctx)
		select {
		case <-time.After(retryBaseBackoff * time.Duration(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// reconnect asks the pool to verify connectivity. Failures are swallowed;
// the retried operation reports the real outcome.
func (s *Store) reconnect(ctx context.Context) {
	if s == nil || s.db == nil {
		return
	}
	pingCtx, cancel := context.WithTimeout(ctx, reconnectDeadline)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		s.logger.Debug("store reconnect ping failed", logging.Error(err))
	}
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
