// Package view records that a content item was viewed.
package view

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tckz/go-viewcount/internal/counter"
)

// ErrInvalidInput means the reported id is not a positive integer.
var ErrInvalidInput = errors.New("invalid input")

// StoreFailure wraps the error of the underlying store call.
type StoreFailure struct {
	ID  int64
	Err error
}

func (e *StoreFailure) Error() string {
	return fmt.Sprintf("store failure: id=%d: %v", e.ID, e.Err)
}

func (e *StoreFailure) Unwrap() error {
	return e.Err
}

// Recorder gates, validates and forwards view reports to a counter.Store.
// It holds no per-call state and is safe for concurrent use.
type Recorder struct {
	store   counter.Store
	logger  *zap.SugaredLogger
	timeout time.Duration
}

type Option func(r *Recorder)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Recorder) {
		r.logger = l
	}
}

// WithTimeout bounds each store call, including any contention retries the
// store performs. Zero leaves the caller's deadline alone.
func WithTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		r.timeout = d
	}
}

func NewRecorder(store counter.Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:  store,
		logger: zap.NewNop().Sugar(),
	}
	for _, e := range opts {
		e(r)
	}
	return r
}

// RecordView counts one view of the item rawID.
//
// A disabled feature is a silent success and never touches storage, so
// callers cannot probe configuration. An id that is not a positive integer
// yields ErrInvalidInput, also without a storage call.
func (r *Recorder) RecordView(ctx context.Context, rawID string, enabled bool) error {
	if !enabled {
		return nil
	}

	id, err := ParseID(rawID)
	if err != nil {
		return err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.store.UpsertIncrement(ctx, id); err != nil {
		if errors.Is(err, counter.ErrCorrupt) {
			r.logger.Errorf("*** corrupt counter record: id=%d, %v", id, err)
		}
		return &StoreFailure{ID: id, Err: err}
	}
	return nil
}

const maxIDLength = 19 // len("9223372036854775807")

// ParseID accepts ASCII decimal digits only, no sign or whitespace, whose
// value is positive and fits in int64.
func ParseID(raw string) (int64, error) {
	if raw == "" || len(raw) > maxIDLength {
		return 0, ErrInvalidInput
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return 0, ErrInvalidInput
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || !counter.ValidID(id) {
		return 0, ErrInvalidInput
	}
	return id, nil
}
