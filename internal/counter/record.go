// Package counter defines the per-item view counter record and the contract
// every counter store implements.
package counter

import (
	"context"
	"time"
)

// Record is the persisted counter state of one item.
type Record struct {
	ID         int64     `json:"nid"`
	DayCount   int64     `json:"daycount"`
	WeekCount  int64     `json:"weekcount"`
	MonthCount int64     `json:"monthcount"`
	YearCount  int64     `json:"yearcount"`
	TotalCount int64     `json:"totalcount"`
	LastSeenAt time.Time `json:"timestamp"`
}

// NewRecord returns the state of a record created by its first increment.
func NewRecord(id int64, now time.Time) *Record {
	return &Record{
		ID:         id,
		DayCount:   1,
		WeekCount:  1,
		MonthCount: 1,
		YearCount:  1,
		TotalCount: 1,
		LastSeenAt: now.Truncate(time.Second),
	}
}

// Increment bumps every counter by one and stamps LastSeenAt.
func (r *Record) Increment(now time.Time) {
	r.DayCount++
	r.WeekCount++
	r.MonthCount++
	r.YearCount++
	r.TotalCount++
	r.LastSeenAt = now.Truncate(time.Second)
}

// Valid reports whether all counters are non-negative.
func (r *Record) Valid() bool {
	return r.DayCount >= 0 && r.WeekCount >= 0 && r.MonthCount >= 0 &&
		r.YearCount >= 0 && r.TotalCount >= 0
}

func (r *Record) Clone() *Record {
	c := *r
	return &c
}

// Store is a durable keyed counter store.
// Implementations must be safe for concurrent use.
type Store interface {
	// UpsertIncrement creates the record for id with every counter at 1, or
	// increments every counter of the existing record, and sets LastSeenAt.
	// The change is applied as one indivisible unit and is persisted before
	// it returns nil. N concurrent calls for the same id apply exactly N
	// increments.
	UpsertIncrement(ctx context.Context, id int64) error

	// Get returns the record for id, or ErrNotFound.
	Get(ctx context.Context, id int64) (*Record, error)

	Close() error
}

// ValidID reports whether id is usable as a record key.
func ValidID(id int64) bool {
	return id > 0
}
