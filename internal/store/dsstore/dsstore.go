// Package dsstore keeps counters as Cloud Datastore entities, one entity per
// item, updated in optimistic transactions.
package dsstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tckz/go-viewcount/internal/counter"
	"github.com/tckz/go-viewcount/internal/retry"
)

var _ counter.Store = (*Store)(nil)

const DefaultKind = "NodeCounter"

type entity struct {
	DayCount   int64     `datastore:"daycount,noindex"`
	WeekCount  int64     `datastore:"weekcount,noindex"`
	MonthCount int64     `datastore:"monthcount,noindex"`
	YearCount  int64     `datastore:"yearcount,noindex"`
	TotalCount int64     `datastore:"totalcount"`
	Timestamp  time.Time `datastore:"timestamp"`
}

func fromRecord(r *counter.Record) *entity {
	return &entity{
		DayCount:   r.DayCount,
		WeekCount:  r.WeekCount,
		MonthCount: r.MonthCount,
		YearCount:  r.YearCount,
		TotalCount: r.TotalCount,
		Timestamp:  r.LastSeenAt.UTC(),
	}
}

func (e *entity) toRecord(id int64) *counter.Record {
	return &counter.Record{
		ID:         id,
		DayCount:   e.DayCount,
		WeekCount:  e.WeekCount,
		MonthCount: e.MonthCount,
		YearCount:  e.YearCount,
		TotalCount: e.TotalCount,
		LastSeenAt: e.Timestamp.UTC(),
	}
}

type Store struct {
	client      *datastore.Client
	kind        string
	namespace   string
	maxAttempts int
	clock       counter.Clock
}

type Option func(s *Store)

func WithKind(kind string) Option {
	return func(s *Store) {
		s.kind = kind
	}
}

func WithNamespace(ns string) Option {
	return func(s *Store) {
		s.namespace = ns
	}
}

// WithMaxAttempts bounds the attempts of a single RunInTransaction call.
// Contention beyond that is retried until the context is done.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		s.maxAttempts = n
	}
}

func WithClock(c counter.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

func New(client *datastore.Client, opts ...Option) *Store {
	s := &Store{
		client:      client,
		kind:        DefaultKind,
		maxAttempts: 3,
		clock:       counter.RealClock{},
	}
	for _, e := range opts {
		e(s)
	}
	return s
}

func (s *Store) key(id int64) *datastore.Key {
	key := datastore.IDKey(s.kind, id, nil)
	key.Namespace = s.namespace
	return key
}

func (s *Store) UpsertIncrement(ctx context.Context, id int64) error {
	if !counter.ValidID(id) {
		return counter.InvalidKey(id)
	}
	if err := ctx.Err(); err != nil {
		return counter.Unavailable(id, err)
	}

	key := s.key(id)
	now := s.clock.Now()

	bo := retry.NewBackoff()
	for attempt := 0; ; attempt++ {
		// The function may run several times inside RunInTransaction.
		_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
			var e entity
			err := tx.Get(key, &e)
			switch {
			case err == nil:
				rec := e.toRecord(id)
				if !rec.Valid() {
					return counter.Corrupt(id, errors.New("negative counter"))
				}
				rec.Increment(now)
				_, err = tx.Put(key, fromRecord(rec))
				return err
			case errors.Is(err, datastore.ErrNoSuchEntity):
				_, err = tx.Put(key, fromRecord(counter.NewRecord(id, now)))
				return err
			default:
				var fm *datastore.ErrFieldMismatch
				if errors.As(err, &fm) {
					return counter.Corrupt(id, err)
				}
				return err
			}
		}, datastore.MaxAttempts(s.maxAttempts))
		if err == nil {
			return nil
		}
		if counter.KindOf(err) == counter.KindCorrupt {
			return err
		}
		if !errors.Is(err, datastore.ErrConcurrentTransaction) && status.Code(err) != codes.Aborted {
			return counter.Unavailable(id, err)
		}
		if err := gax.Sleep(ctx, bo.Pause()); err != nil {
			return counter.Unavailable(id, fmt.Errorf("contention on key after %d rounds: %w", attempt+1, err))
		}
	}
}

func (s *Store) Get(ctx context.Context, id int64) (*counter.Record, error) {
	if !counter.ValidID(id) {
		return nil, counter.InvalidKey(id)
	}

	var e entity
	if err := s.client.Get(ctx, s.key(id), &e); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, counter.ErrNotFound
		}
		var fm *datastore.ErrFieldMismatch
		if errors.As(err, &fm) {
			return nil, counter.Corrupt(id, err)
		}
		return nil, counter.Unavailable(id, err)
	}
	return e.toRecord(id), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
