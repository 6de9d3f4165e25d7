package fsstore

import (
	"context"
	"os"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tckz/go-viewcount/internal/counter"
	"github.com/tckz/go-viewcount/internal/counter/countertest"
)

// These tests need the firestore emulator:
//
//	gcloud emulators firestore start --host-port=localhost:8086
//	export FIRESTORE_EMULATOR_HOST=localhost:8086
func newClient(t *testing.T) *firestore.Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	pjID := os.Getenv("PROJECT_ID")
	if pjID == "" {
		pjID = "viewcount-test"
	}
	cl, err := firestore.NewClient(context.Background(), pjID)
	require.NoError(t, err)
	return cl
}

func TestStore(t *testing.T) {
	countertest.Run(t, func(t *testing.T, clock counter.Clock) counter.Store {
		s := New(newClient(t), WithCollection("t-"+uuid.New().String()), WithClock(clock))
		t.Cleanup(func() { _ = s.Close() })
		return s
	}, countertest.WithConcurrency(10))
}

func TestStore_CorruptDocument(t *testing.T) {
	cl := newClient(t)
	s := New(cl, WithCollection("t-"+uuid.New().String()), WithClock(counter.NewFixedClock(countertest.Epoch)))
	defer s.Close()
	ctx := context.Background()

	_, err := s.doc(8).Set(ctx, map[string]interface{}{"daycount": 2, "totalcount": "garbage"})
	require.NoError(t, err)

	err = s.UpsertIncrement(ctx, 8)
	require.ErrorIs(t, err, counter.ErrCorrupt)

	snap, err := s.doc(8).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Data()["daycount"])
	assert.Equal(t, "garbage", snap.Data()["totalcount"])
}
