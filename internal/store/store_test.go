package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelore/codelore/internal/log"
)

func TestTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"timeout", errors.New("i/o timeout"), true},
		{"conn closed", errors.New("conn closed"), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"constraint violation", errors.New("duplicate key value violates unique constraint"), false},
		{"syntax error", errors.New("syntax error at or near"), false},
		{"pg connection exception", &pgconn.PgError{Code: "08006"}, true},
		{"pg data error", &pgconn.PgError{Code: "22001"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, transientError(tt.err))
		})
	}
}

func TestWithTransientRetryRecovers(t *testing.T) {
	s := &Store{logger: log.NewNop()}

	attempts := 0
	err := s.withTransientRetry(context.Background(), "test op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithTransientRetryGivesUp(t *testing.T) {
	s := &Store{logger: log.NewNop()}

	attempts := 0
	err := s.withTransientRetry(context.Background(), "test op", func(context.Context) error {
		attempts++
		return errors.New("connection reset by peer")
	})

	require.Error(t, err)
	assert.Equal(t, transientRetries+1, attempts)
}

func TestWithTransientRetryNonTransientFailsFast(t *testing.T) {
	s := &Store{logger: log.NewNop()}

	attempts := 0
	permanent := errors.New("duplicate key value violates unique constraint")
	err := s.withTransientRetry(context.Background(), "test op", func(context.Context) error {
		attempts++
		return permanent
	})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestWithTransientRetryHonorsContext(t *testing.T) {
	s := &Store{logger: log.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := s.withTransientRetry(ctx, "test op", func(context.Context) error {
		return errors.New("connection reset by peer")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
