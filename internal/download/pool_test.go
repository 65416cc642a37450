package download

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surge-downloader/coursedl/internal/engine/events"
)

func TestWorkerPool_RunsEveryUnitAndSettles(t *testing.T) {
	var handled atomic.Int32
	pool := NewWorkerPool(context.Background(), 3, func(ctx context.Context, u *unit) error {
		handled.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	var failed atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		pool.Add(&unit{
			ref: events.ItemRef{ID: string(rune('a' + i))},
			settle: func(f bool) {
				if f {
					failed.Add(1)
				}
				wg.Done()
			},
		})
	}
	wg.Wait()
	pool.Close()

	assert.EqualValues(t, 10, handled.Load())
	assert.Zero(t, failed.Load())
}

func TestWorkerPool_SlotsAreSharedWithCallers(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, func(ctx context.Context, u *unit) error { return nil })
	require.NoError(t, pool.Acquire(context.Background()))

	settled := make(chan bool, 1)
	pool.Add(&unit{ref: events.ItemRef{ID: "x"}, settle: func(f bool) { settled <- f }})

	select {
	case <-settled:
		require.FailNow(t, "unit ran while the only slot was held")
	case <-time.After(50 * time.Millisecond):
	}

	pool.Release()
	select {
	case f := <-settled:
		assert.False(t, f)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "unit did not run after the slot was released")
	}
	pool.Close()
}

func TestWorkerPool_AcquireHonoursContext(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, func(ctx context.Context, u *unit) error { return nil })
	require.NoError(t, pool.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Acquire(ctx), context.DeadlineExceeded)

	pool.Release()
	pool.Close()
}

func TestWorkerPool_CancelledContextStillSettles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pool := NewWorkerPool(ctx, 2, func(ctx context.Context, u *unit) error { return ctx.Err() })

	var wg sync.WaitGroup
	var failed atomic.Int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		pool.Add(&unit{ref: events.ItemRef{ID: string(rune('a' + i))}, settle: func(f bool) {
			if f {
				failed.Add(1)
			}
			wg.Done()
		}})
	}
	wg.Wait()
	pool.Close()
	assert.EqualValues(t, 5, failed.Load())
}

func TestNewWorkerPool_AtLeastOneWorker(t *testing.T) {
	done := make(chan struct{})
	pool := NewWorkerPool(context.Background(), 0, func(ctx context.Context, u *unit) error { return nil })
	pool.Add(&unit{ref: events.ItemRef{ID: "only"}, settle: func(bool) { close(done) }})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no worker picked up the unit")
	}
	pool.Close()
}
