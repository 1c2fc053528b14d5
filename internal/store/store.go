// Package store persists projects, embeddings, commits, questions and
// meetings in PostgreSQL. Vector similarity search runs on pgvector.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store manages all codelore persistence.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store backed by the given connection pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Transient-error retry settings for embedding writes. The pool re-dials
// dropped connections on the next acquire, so a short backoff plus retry is
// the whole reconnect cycle.
const (
	transientRetries      = 3
	transientInitialDelay = 250 * time.Millisecond
)

// transientPatterns match database errors worth retrying. pgx does not expose
// sentinel errors for every transport failure, so substring matching is the
// pragmatic fallback.
var transientPatterns = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"timeout",
	"unexpected eof",
	"conn closed",
}

// transientError reports whether err looks like a recoverable transport
// failure rather than a data error.
func transientError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 — connection exceptions.
		return strings.HasPrefix(pgErr.Code, "08")
	}
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// withTransientRetry runs fn, retrying transport failures with exponential
// backoff. Non-transient errors propagate immediately.
func (s *Store) withTransientRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	delay := transientInitialDelay

	for attempt := 0; attempt <= transientRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !transientError(err) {
			return err
		}
		if attempt == transientRetries {
			break
		}

		s.logger.Warn("retrying after transient database error",
			"op", op,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay *= 2
		}
	}

	return fmt.Errorf("%s after %d retries: %w", op, transientRetries, lastErr)
}
