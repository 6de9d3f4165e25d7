// Package subscriber counts views reported through a Pub/Sub subscription.
package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tckz/go-viewcount/internal/counter"
	"github.com/tckz/go-viewcount/internal/view"
)

// Gate reports whether view counting is switched on.
type Gate interface {
	Enabled() bool
}

// Stats is a snapshot of message outcomes.
type Stats struct {
	Received  int64
	Accepted  int64
	Skipped   int64
	Duplicate int64
	Retried   int64
}

type Subscriber struct {
	recorder   *view.Recorder
	gate       Gate
	marker     ProcessMarker
	logger     *zap.SugaredLogger
	workers    int
	statsEvery int64

	received  atomic.Int64
	accepted  atomic.Int64
	skipped   atomic.Int64
	duplicate atomic.Int64
	retried   atomic.Int64
}

type Option func(s *Subscriber)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Subscriber) {
		s.logger = l
	}
}

// WithWorkers sets the number of concurrent Receive calls.
func WithWorkers(n int) Option {
	return func(s *Subscriber) {
		s.workers = n
	}
}

// WithStatsEvery logs Stats every n received messages.
func WithStatsEvery(n int64) Option {
	return func(s *Subscriber) {
		s.statsEvery = n
	}
}

func New(recorder *view.Recorder, gate Gate, marker ProcessMarker, opts ...Option) *Subscriber {
	s := &Subscriber{
		recorder:   recorder,
		gate:       gate,
		marker:     marker,
		logger:     zap.NewNop().Sugar(),
		workers:    1,
		statsEvery: 1000,
	}
	for _, e := range opts {
		e(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	return s
}

// Process handles one message and reports whether it should be acked.
// Everything is acked except a transient store failure, for which the mark
// is released and the message is left for redelivery.
func (s *Subscriber) Process(ctx context.Context, msgID string, data []byte) bool {
	if n := s.received.Add(1); s.statsEvery > 0 && n%s.statsEvery == 0 {
		s.logStats()
	}

	if got, err := s.marker.Acquire(ctx, msgID); err != nil {
		s.logger.Errorf("Acquire: msgID=%s, %v", msgID, err)
		s.retried.Add(1)
		return false
	} else if !got {
		s.logger.Infof("msgID=%s already marked to be processed by other", msgID)
		s.duplicate.Add(1)
		return true
	}

	var ev view.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		s.logger.Debugf("json.Unmarshal: msgID=%s, %v", msgID, err)
	}

	err := s.recorder.RecordView(ctx, ev.NID, s.gate.Enabled())
	switch {
	case err == nil:
		s.accepted.Add(1)
		return true
	case errors.Is(err, view.ErrInvalidInput):
		s.logger.Warnf("invalid event: msgID=%s, nid=%q", msgID, ev.NID)
		s.skipped.Add(1)
		return true
	case errors.Is(err, counter.ErrUnavailable):
		if counter.IsContextError(err) && ctx.Err() != nil {
			s.logger.Debugf("RecordView cut by shutdown: msgID=%s, %v", msgID, err)
		} else {
			s.logger.Warnf("RecordView: msgID=%s, %v", msgID, err)
		}
		s.release(ctx, msgID)
		s.retried.Add(1)
		return false
	default:
		s.logger.Errorf("*** RecordView: msgID=%s, %v", msgID, err)
		s.skipped.Add(1)
		return true
	}
}

func (s *Subscriber) release(ctx context.Context, msgID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.marker.Release(ctx, msgID); err != nil {
		s.logger.Errorf("Release: msgID=%s, %v", msgID, err)
	}
}

// Run receives from subscription subID until ctx is done.
func (s *Subscriber) Run(ctx context.Context, cl *pubsub.Client, subID string) error {
	defer s.logStats()

	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		eg.Go(func() error {
			// Receive may not run concurrently on one Subscription value.
			subs := cl.Subscription(subID)
			return subs.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
				if s.Process(ctx, msg.ID, msg.Data) {
					msg.Ack()
					return
				}
				msg.Nack()
			})
		})
	}
	return eg.Wait()
}

func (s *Subscriber) Stats() Stats {
	return Stats{
		Received:  s.received.Load(),
		Accepted:  s.accepted.Load(),
		Skipped:   s.skipped.Load(),
		Duplicate: s.duplicate.Load(),
		Retried:   s.retried.Load(),
	}
}

func (s *Subscriber) logStats() {
	st := s.Stats()
	s.logger.Infof("received=%s, accepted=%s, skipped=%s, duplicate=%s, retried=%s",
		humanize.Comma(st.Received), humanize.Comma(st.Accepted), humanize.Comma(st.Skipped),
		humanize.Comma(st.Duplicate), humanize.Comma(st.Retried))
}
