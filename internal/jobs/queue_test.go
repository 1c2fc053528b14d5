package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/codelore/codelore/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestQueueRunsJobs(t *testing.T) {
	q := New(2, 16, log.NewNop())

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		err := q.Submit("count", func(context.Context) {
			defer wg.Done()
			ran.Add(1)
		})
		require.NoError(t, err)
	}
	wg.Wait()
	q.Close()

	assert.Equal(t, int32(10), ran.Load())
}

func TestQueueAbsorbsPanic(t *testing.T) {
	q := New(1, 4, log.NewNop())
	defer q.Close()

	done := make(chan struct{})
	require.NoError(t, q.Submit("boom", func(context.Context) {
		panic("job went wrong")
	}))
	require.NoError(t, q.Submit("after", func(context.Context) {
		close(done)
	}))

	<-done // the worker survived the panic
}

func TestQueueFull(t *testing.T) {
	q := New(1, 1, log.NewNop())
	defer q.Close()

	block := make(chan struct{})
	require.NoError(t, q.Submit("blocker", func(context.Context) {
		<-block
	}))
	// Fill the backlog; the worker is stuck on the blocker.
	for {
		if err := q.Submit("filler", func(context.Context) {}); err != nil {
			assert.ErrorIs(t, err, ErrQueueFull)
			break
		}
	}
	close(block)
}

func TestQueueCloseDrains(t *testing.T) {
	q := New(1, 16, log.NewNop())

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Submit("drain", func(context.Context) {
			ran.Add(1)
		}))
	}
	q.Close()

	assert.Equal(t, int32(5), ran.Load(), "Close must drain queued jobs")
	assert.ErrorIs(t, q.Submit("late", func(context.Context) {}), ErrQueueClosed)
}

func TestQueueCloseIdempotent(t *testing.T) {
	q := New(1, 1, log.NewNop())
	q.Close()
	q.Close()
}
