// Package fsstore keeps counters as Firestore documents.
package fsstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tckz/go-viewcount/internal/counter"
	"github.com/tckz/go-viewcount/internal/retry"
)

var _ counter.Store = (*Store)(nil)

const DefaultCollection = "node_counter"

type document struct {
	DayCount   int64 `firestore:"daycount"`
	WeekCount  int64 `firestore:"weekcount"`
	MonthCount int64 `firestore:"monthcount"`
	YearCount  int64 `firestore:"yearcount"`
	TotalCount int64 `firestore:"totalcount"`
	Timestamp  int64 `firestore:"timestamp"`
}

func (d *document) toRecord(id int64) *counter.Record {
	return &counter.Record{
		ID:         id,
		DayCount:   d.DayCount,
		WeekCount:  d.WeekCount,
		MonthCount: d.MonthCount,
		YearCount:  d.YearCount,
		TotalCount: d.TotalCount,
		LastSeenAt: time.Unix(d.Timestamp, 0).UTC(),
	}
}

type Store struct {
	client      *firestore.Client
	collection  string
	maxAttempts int
	clock       counter.Clock
}

type Option func(s *Store)

func WithCollection(name string) Option {
	return func(s *Store) {
		s.collection = name
	}
}

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

func New(client *firestore.Client, opts ...Option) *Store {
	s := &Store{
		client:      client,
		collection:  DefaultCollection,
		maxAttempts: 5,
		clock:       counter.RealClock{},
	}
	for _, e := range opts {
		e(s)
	}
	return s
}

func (s *Store) doc(id int64) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(strconv.FormatInt(id, 10))
}

func (s *Store) UpsertIncrement(ctx context.Context, id int64) error {
	if !counter.ValidID(id) {
		return counter.InvalidKey(id)
	}
	if err := ctx.Err(); err != nil {
		return counter.Unavailable(id, err)
	}

	ref := s.doc(id)
	ts := s.clock.Now().Unix()

	bo := retry.NewBackoff()
	for attempt := 0; ; attempt++ {
		err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			// The read only guards against corrupt documents; the increments
			// themselves are server-side transforms.
			snap, err := tx.Get(ref)
			if err != nil && status.Code(err) != codes.NotFound {
				return err
			}
			if snap != nil && snap.Exists() {
				var d document
				if err := snap.DataTo(&d); err != nil {
					return counter.Corrupt(id, err)
				}
				if !d.toRecord(id).Valid() {
					return counter.Corrupt(id, errors.New("negative counter"))
				}
			}
			return tx.Set(ref, map[string]interface{}{
				"daycount":   firestore.Increment(1),
				"weekcount":  firestore.Increment(1),
				"monthcount": firestore.Increment(1),
				"yearcount":  firestore.Increment(1),
				"totalcount": firestore.Increment(1),
				"timestamp":  ts,
			}, firestore.MergeAll)
		}, firestore.MaxAttempts(s.maxAttempts))
		if err == nil {
			return nil
		}
		if counter.KindOf(err) == counter.KindCorrupt {
			return err
		}
		if status.Code(err) != codes.Aborted {
			return counter.Unavailable(id, err)
		}
		if err := gax.Sleep(ctx, bo.Pause()); err != nil {
			return counter.Unavailable(id, fmt.Errorf("contention on document after %d rounds: %w", attempt+1, err))
		}
	}
}

func (s *Store) Get(ctx context.Context, id int64) (*counter.Record, error) {
	if !counter.ValidID(id) {
		return nil, counter.InvalidKey(id)
	}

	snap, err := s.doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, counter.ErrNotFound
		}
		return nil, counter.Unavailable(id, err)
	}
	var d document
	if err := snap.DataTo(&d); err != nil {
		return nil, counter.Corrupt(id, err)
	}
	return d.toRecord(id), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
