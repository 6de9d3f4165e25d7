package counter

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreError_Is(t *testing.T) {
	cause := errors.New("dial tcp: refused")

	tests := []struct {
		name    string
		err     error
		want    error
		notWant []error
		kind    Kind
	}{
		{
			name:    "invalid key",
			err:     InvalidKey(-1),
			want:    ErrInvalidKey,
			notWant: []error{ErrUnavailable, ErrCorrupt},
			kind:    KindInvalidKey,
		},
		{
			name:    "unavailable",
			err:     Unavailable(3, cause),
			want:    ErrUnavailable,
			notWant: []error{ErrInvalidKey, ErrCorrupt},
			kind:    KindUnavailable,
		},
		{
			name:    "corrupt wrapped twice",
			err:     fmt.Errorf("upsert: %w", Corrupt(3, cause)),
			want:    ErrCorrupt,
			notWant: []error{ErrInvalidKey, ErrUnavailable, ErrNotFound},
			kind:    KindCorrupt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.want)
			for _, e := range tt.notWant {
				assert.NotErrorIs(t, tt.err, e)
			}
			assert.Equal(t, tt.kind, KindOf(tt.err))
		})
	}
}

func TestStoreError_UnwrapsCause(t *testing.T) {
	err := Unavailable(3, context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, IsContextError(err))
	assert.Contains(t, err.Error(), "id=3")
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(errors.New("x")))
	assert.Equal(t, "corrupt", KindCorrupt.String())
}
