// Package mongostore keeps counters as MongoDB documents keyed by item id.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/googleapis/gax-go/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tckz/go-viewcount/internal/counter"
	"github.com/tckz/go-viewcount/internal/retry"
)

var _ counter.Store = (*Store)(nil)

const (
	DefaultCollection = "node_counter"

	// Server code for "Cannot apply $inc to a value of non-numeric type".
	codeTypeMismatch = 14
)

type document struct {
	ID         int64 `bson:"_id"`
	DayCount   int64 `bson:"daycount"`
	WeekCount  int64 `bson:"weekcount"`
	MonthCount int64 `bson:"monthcount"`
	YearCount  int64 `bson:"yearcount"`
	TotalCount int64 `bson:"totalcount"`
	Timestamp  int64 `bson:"timestamp"`
}

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	clock  counter.Clock
}

// Connect dials uri and returns a store on database db.
func Connect(ctx context.Context, uri, db string, clock counter.Clock) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("client.Ping: %w", err)
	}
	return New(client, client.Database(db).Collection(DefaultCollection), clock), nil
}

// New wraps an existing collection. client may be nil when the caller owns
// the connection.
func New(client *mongo.Client, coll *mongo.Collection, clock counter.Clock) *Store {
	if clock == nil {
		clock = counter.RealClock{}
	}
	return &Store{client: client, coll: coll, clock: clock}
}

func (s *Store) UpsertIncrement(ctx context.Context, id int64) error {
	if !counter.ValidID(id) {
		return counter.InvalidKey(id)
	}
	if err := ctx.Err(); err != nil {
		return counter.Unavailable(id, err)
	}

	filter := bson.M{"_id": id}
	update := bson.M{
		"$inc": bson.M{
			"daycount":   1,
			"weekcount":  1,
			"monthcount": 1,
			"yearcount":  1,
			"totalcount": 1,
		},
		"$set": bson.M{"timestamp": s.clock.Now().Unix()},
	}
	opts := options.Update().SetUpsert(true)

	bo := retry.NewBackoff()
	for {
		_, err := s.coll.UpdateOne(ctx, filter, update, opts)
		if err == nil {
			return nil
		}
		var se mongo.ServerError
		if errors.As(err, &se) && se.HasErrorCode(codeTypeMismatch) {
			return counter.Corrupt(id, err)
		}
		// Two first-time upserts can race on the _id index; the loser
		// finds the document on its next try and takes the $inc path.
		if !mongo.IsDuplicateKeyError(err) {
			return counter.Unavailable(id, err)
		}
		if err := gax.Sleep(ctx, bo.Pause()); err != nil {
			return counter.Unavailable(id, err)
		}
	}
}

func (s *Store) Get(ctx context.Context, id int64) (*counter.Record, error) {
	if !counter.ValidID(id) {
		return nil, counter.InvalidKey(id)
	}

	res := s.coll.FindOne(ctx, bson.M{"_id": id})
	if err := res.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, counter.ErrNotFound
		}
		return nil, counter.Unavailable(id, err)
	}
	var d document
	if err := res.Decode(&d); err != nil {
		return nil, counter.Corrupt(id, err)
	}
	return &counter.Record{
		ID:         id,
		DayCount:   d.DayCount,
		WeekCount:  d.WeekCount,
		MonthCount: d.MonthCount,
		YearCount:  d.YearCount,
		TotalCount: d.TotalCount,
		LastSeenAt: time.Unix(d.Timestamp, 0).UTC(),
	}, nil
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
