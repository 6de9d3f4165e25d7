package sqlstore

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tckz/go-viewcount/internal/counter"
	"github.com/tckz/go-viewcount/internal/counter/countertest"
)

func newStore(t *testing.T, clock counter.Clock) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	countertest.Run(t, func(t *testing.T, clock counter.Clock) counter.Store {
		return newStore(t, clock)
	})
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counter.db")
	ctx := context.Background()
	clock := counter.NewFixedClock(countertest.Epoch)

	s, err := Open(ctx, path, clock)
	require.NoError(t, err)
	require.NoError(t, s.UpsertIncrement(ctx, 11))
	require.NoError(t, s.UpsertIncrement(ctx, 11))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, clock)
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.Get(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.TotalCount)
}

func TestStore_CorruptRow(t *testing.T) {
	clock := counter.NewFixedClock(countertest.Epoch)
	s := newStore(t, clock)
	ctx := context.Background()

	require.NoError(t, s.UpsertIncrement(ctx, 8))
	_, err := s.db.ExecContext(ctx, `UPDATE node_counter SET totalcount = 'garbage' WHERE nid = 8`)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	err = s.UpsertIncrement(ctx, 8)
	require.ErrorIs(t, err, counter.ErrCorrupt)

	var day int64
	var total string
	var ts int64
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT daycount, totalcount, timestamp FROM node_counter WHERE nid = 8`).Scan(&day, &total, &ts))
	assert.Equal(t, int64(1), day, "no partial write")
	assert.Equal(t, "garbage", total)
	assert.Equal(t, countertest.Epoch.Unix(), ts)

	_, err = s.Get(ctx, 8)
	assert.ErrorIs(t, err, counter.ErrCorrupt)
}

func TestStore_NegativeCounterIsCorrupt(t *testing.T) {
	s := newStore(t, counter.NewFixedClock(countertest.Epoch))
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO node_counter (nid, daycount, weekcount, monthcount, yearcount, totalcount, timestamp) VALUES (4, -1, 0, 0, 0, 3, 0)`)
	require.NoError(t, err)

	err = s.UpsertIncrement(ctx, 4)
	assert.ErrorIs(t, err, counter.ErrCorrupt)
}

func TestStore_CounterAtMaxIsCorrupt(t *testing.T) {
	s := newStore(t, counter.NewFixedClock(countertest.Epoch))
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO node_counter (nid, daycount, weekcount, monthcount, yearcount, totalcount, timestamp) VALUES (6, 1, 1, 1, 1, 9223372036854775807, 0)`)
	require.NoError(t, err)

	err = s.UpsertIncrement(ctx, 6)
	require.ErrorIs(t, err, counter.ErrCorrupt)

	rec, err := s.Get(ctx, 6)
	require.NoError(t, err, "row left as integers")
	assert.Equal(t, int64(1), rec.DayCount, "no partial write")
	assert.Equal(t, int64(math.MaxInt64), rec.TotalCount)
}

func TestStore_IncrementsAfterRollover(t *testing.T) {
	s := newStore(t, counter.NewFixedClock(countertest.Epoch))
	ctx := context.Background()

	require.NoError(t, s.UpsertIncrement(ctx, 5))
	require.NoError(t, s.UpsertIncrement(ctx, 5))
	_, err := s.db.ExecContext(ctx, `UPDATE node_counter SET daycount = 0 WHERE nid = 5`)
	require.NoError(t, err)

	require.NoError(t, s.UpsertIncrement(ctx, 5))
	rec, err := s.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.DayCount)
	assert.Equal(t, int64(3), rec.TotalCount)
}

func TestStore_ClosedDatabaseIsUnavailable(t *testing.T) {
	s, err := Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.UpsertIncrement(context.Background(), 1)
	assert.ErrorIs(t, err, counter.ErrUnavailable)

	_, err = s.Get(context.Background(), 1)
	assert.ErrorIs(t, err, counter.ErrUnavailable)
}
