// Package memory is a process-local counter store. Counters are lost on exit;
// it backs tests and single-process development runs.
package memory

import (
	"context"
	"sync"

	"github.com/tckz/go-viewcount/internal/counter"
)

var _ counter.Store = (*Store)(nil)

type Store struct {
	clock counter.Clock

	mu   sync.Mutex
	data map[int64]*counter.Record
}

func New(clock counter.Clock) *Store {
	if clock == nil {
		clock = counter.RealClock{}
	}
	return &Store{
		clock: clock,
		data:  make(map[int64]*counter.Record),
	}
}

// UpsertIncrement creates or increments the record under a single lock hold.
func (s *Store) UpsertIncrement(ctx context.Context, id int64) error {
	if !counter.ValidID(id) {
		return counter.InvalidKey(id)
	}
	if err := ctx.Err(); err != nil {
		return counter.Unavailable(id, err)
	}

	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[id]
	if !ok {
		s.data[id] = counter.NewRecord(id, now)
		return nil
	}
	if !rec.Valid() {
		return counter.Corrupt(id, nil)
	}
	rec.Increment(now)
	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (*counter.Record, error) {
	if !counter.ValidID(id) {
		return nil, counter.InvalidKey(id)
	}
	if err := ctx.Err(); err != nil {
		return nil, counter.Unavailable(id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[id]
	if !ok {
		return nil, counter.ErrNotFound
	}
	return rec.Clone(), nil
}

// Put replaces the stored record verbatim, bypassing the increment path.
// It stands in for the external rollover process in tests.
func (s *Store) Put(rec *counter.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rec.ID] = rec.Clone()
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func (s *Store) Close() error {
	return nil
}
