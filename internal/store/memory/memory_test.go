package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tckz/go-viewcount/internal/counter"
	"github.com/tckz/go-viewcount/internal/counter/countertest"
)

func TestStore(t *testing.T) {
	countertest.Run(t, func(t *testing.T, clock counter.Clock) counter.Store {
		return New(clock)
	}, countertest.WithConcurrency(200))
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := New(counter.NewFixedClock(countertest.Epoch))
	ctx := context.Background()
	require.NoError(t, s.UpsertIncrement(ctx, 1))

	rec, err := s.Get(ctx, 1)
	require.NoError(t, err)
	rec.TotalCount = 100

	again, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.TotalCount)
}

func TestStore_IncrementsAfterRollover(t *testing.T) {
	s := New(counter.NewFixedClock(countertest.Epoch))
	ctx := context.Background()

	s.Put(&counter.Record{ID: 3, DayCount: 0, WeekCount: 4, MonthCount: 9, YearCount: 20, TotalCount: 50})
	require.NoError(t, s.UpsertIncrement(ctx, 3))

	rec, err := s.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.DayCount)
	assert.Equal(t, int64(5), rec.WeekCount)
	assert.Equal(t, int64(10), rec.MonthCount)
	assert.Equal(t, int64(21), rec.YearCount)
	assert.Equal(t, int64(51), rec.TotalCount)
}

func TestStore_CorruptRecordIsNotTouched(t *testing.T) {
	s := New(counter.NewFixedClock(countertest.Epoch))
	ctx := context.Background()

	bad := &counter.Record{ID: 8, DayCount: -3, TotalCount: 10}
	s.Put(bad)

	err := s.UpsertIncrement(ctx, 8)
	require.ErrorIs(t, err, counter.ErrCorrupt)

	rec, err := s.Get(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, bad, rec)
	assert.Equal(t, 1, s.Len())
}
