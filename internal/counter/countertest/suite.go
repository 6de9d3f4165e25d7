// Package countertest holds the behavioural checks shared by every
// counter.Store implementation.
package countertest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/tckz/go-viewcount/internal/counter"
)

// Epoch is the time the suite's clock starts at. Whole seconds, since stores
// persist LastSeenAt at second resolution.
var Epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// Factory returns an empty store that stamps records with clock.
type Factory func(t *testing.T, clock counter.Clock) counter.Store

type options struct {
	concurrency int
}

type Option func(o *options)

// WithConcurrency sets how many goroutines the atomicity check fires.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory, opts ...Option) {
	o := options{concurrency: 50}
	for _, e := range opts {
		e(&o)
	}

	t.Run("LazyCreation", func(t *testing.T) {
		clock := counter.NewFixedClock(Epoch)
		s := newStore(t, clock)
		ctx := context.Background()

		_, err := s.Get(ctx, 42)
		require.ErrorIs(t, err, counter.ErrNotFound)

		require.NoError(t, s.UpsertIncrement(ctx, 42))

		rec, err := s.Get(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, int64(42), rec.ID)
		assert.Equal(t, int64(1), rec.DayCount)
		assert.Equal(t, int64(1), rec.WeekCount)
		assert.Equal(t, int64(1), rec.MonthCount)
		assert.Equal(t, int64(1), rec.YearCount)
		assert.Equal(t, int64(1), rec.TotalCount)
		assert.True(t, Epoch.Equal(rec.LastSeenAt), "LastSeenAt=%s", rec.LastSeenAt)
	})

	t.Run("Monotonic", func(t *testing.T) {
		clock := counter.NewFixedClock(Epoch)
		s := newStore(t, clock)
		ctx := context.Background()

		const n = 5
		prev := int64(0)
		for i := 0; i < n; i++ {
			require.NoError(t, s.UpsertIncrement(ctx, 7))
			rec, err := s.Get(ctx, 7)
			require.NoError(t, err)
			assert.Equal(t, prev+1, rec.TotalCount)
			prev = rec.TotalCount
		}

		rec, err := s.Get(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(n), rec.DayCount)
		assert.Equal(t, int64(n), rec.WeekCount)
		assert.Equal(t, int64(n), rec.MonthCount)
		assert.Equal(t, int64(n), rec.YearCount)
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		s := newStore(t, counter.NewFixedClock(Epoch))
		ctx := context.Background()

		require.NoError(t, s.UpsertIncrement(ctx, 1))
		require.NoError(t, s.UpsertIncrement(ctx, 1))
		require.NoError(t, s.UpsertIncrement(ctx, 2))

		a, err := s.Get(ctx, 1)
		require.NoError(t, err)
		b, err := s.Get(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(2), a.TotalCount)
		assert.Equal(t, int64(1), b.TotalCount)
	})

	t.Run("LastSeenAtFollowsClock", func(t *testing.T) {
		clock := counter.NewFixedClock(Epoch)
		s := newStore(t, clock)
		ctx := context.Background()

		require.NoError(t, s.UpsertIncrement(ctx, 9))
		clock.Advance(90 * time.Second)
		require.NoError(t, s.UpsertIncrement(ctx, 9))

		rec, err := s.Get(ctx, 9)
		require.NoError(t, err)
		assert.True(t, Epoch.Add(90*time.Second).Equal(rec.LastSeenAt), "LastSeenAt=%s", rec.LastSeenAt)
	})

	t.Run("InvalidKey", func(t *testing.T) {
		s := newStore(t, counter.NewFixedClock(Epoch))
		ctx := context.Background()

		for _, id := range []int64{0, -1, -9223372036854775808} {
			err := s.UpsertIncrement(ctx, id)
			require.ErrorIs(t, err, counter.ErrInvalidKey, "id=%d", id)
			assert.Equal(t, counter.KindInvalidKey, counter.KindOf(err))

			_, err = s.Get(ctx, id)
			assert.Error(t, err)
		}
	})

	t.Run("ConcurrentIncrementsAreNotLost", func(t *testing.T) {
		s := newStore(t, counter.NewFixedClock(Epoch))
		ctx := context.Background()

		// Starting all goroutines together maximises contention on the
		// first insert as well as on the increments that follow.
		var start sync.WaitGroup
		start.Add(1)
		eg, ctx := errgroup.WithContext(ctx)
		for i := 0; i < o.concurrency; i++ {
			eg.Go(func() error {
				start.Wait()
				return s.UpsertIncrement(ctx, 1234)
			})
		}
		start.Done()
		require.NoError(t, eg.Wait())

		rec, err := s.Get(context.Background(), 1234)
		require.NoError(t, err)
		k := int64(o.concurrency)
		assert.Equal(t, k, rec.TotalCount)
		assert.Equal(t, k, rec.DayCount)
		assert.Equal(t, k, rec.WeekCount)
		assert.Equal(t, k, rec.MonthCount)
		assert.Equal(t, k, rec.YearCount)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		s := newStore(t, counter.NewFixedClock(Epoch))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := s.UpsertIncrement(ctx, 5)
		require.ErrorIs(t, err, counter.ErrUnavailable)

		_, err = s.Get(context.Background(), 5)
		assert.ErrorIs(t, err, counter.ErrNotFound)
	})
}
