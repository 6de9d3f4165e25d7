package dsstore

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tckz/go-viewcount/internal/counter"
	"github.com/tckz/go-viewcount/internal/counter/countertest"
)

// These tests need the datastore emulator:
//
//	gcloud beta emulators datastore start --no-store-on-disk
//	export DATASTORE_EMULATOR_HOST=localhost:8081
func newClient(t *testing.T) *datastore.Client {
	t.Helper()
	if os.Getenv("DATASTORE_EMULATOR_HOST") == "" {
		t.Skip("DATASTORE_EMULATOR_HOST not set")
	}
	pjID := os.Getenv("PROJECT_ID")
	if pjID == "" {
		pjID = "viewcount-test"
	}
	cl, err := datastore.NewClient(context.Background(), pjID)
	require.NoError(t, err)
	return cl
}

func TestStore(t *testing.T) {
	countertest.Run(t, func(t *testing.T, clock counter.Clock) counter.Store {
		s := New(newClient(t), WithNamespace("t-"+uuid.New().String()), WithClock(clock))
		t.Cleanup(func() { _ = s.Close() })
		return s
	}, countertest.WithConcurrency(10))
}

func TestStore_FieldMismatchIsCorrupt(t *testing.T) {
	cl := newClient(t)
	ns := "t-" + uuid.New().String()
	s := New(cl, WithNamespace(ns), WithClock(counter.NewFixedClock(countertest.Epoch)))
	defer s.Close()
	ctx := context.Background()

	type broken struct {
		TotalCount string `datastore:"totalcount"`
		Timestamp  time.Time
	}
	_, err := cl.Put(ctx, s.key(8), &broken{TotalCount: "garbage"})
	require.NoError(t, err)

	err = s.UpsertIncrement(ctx, 8)
	require.ErrorIs(t, err, counter.ErrCorrupt)

	var got broken
	require.NoError(t, cl.Get(ctx, s.key(8), &got))
	assert.Equal(t, "garbage", got.TotalCount)
}
