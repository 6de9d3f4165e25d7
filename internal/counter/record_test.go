package counter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecord_NewAndIncrement(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 3, 4, 5, 600, time.UTC)

	r := NewRecord(42, t0)
	assert.Equal(t, &Record{
		ID: 42, DayCount: 1, WeekCount: 1, MonthCount: 1, YearCount: 1, TotalCount: 1,
		LastSeenAt: t0.Truncate(time.Second),
	}, r)

	c := r.Clone()
	r.Increment(t0.Add(time.Minute))
	assert.Equal(t, int64(2), r.TotalCount)
	assert.Equal(t, int64(2), r.YearCount)
	assert.Equal(t, t0.Add(time.Minute).Truncate(time.Second), r.LastSeenAt)
	assert.Equal(t, int64(1), c.TotalCount, "clone must not share state")
}

func TestRecord_Valid(t *testing.T) {
	assert.True(t, (&Record{}).Valid())
	assert.False(t, (&Record{WeekCount: -1}).Valid())
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID(1))
	assert.False(t, ValidID(0))
	assert.False(t, ValidID(-5))
}

func TestFixedClock(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFixedClock(t0)
	assert.Equal(t, t0, c.Now())
	c.Advance(time.Hour)
	assert.Equal(t, t0.Add(time.Hour), c.Now())
	c.Set(t0)
	assert.Equal(t, t0, c.Now())
}
