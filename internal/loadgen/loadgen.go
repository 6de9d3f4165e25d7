// Package loadgen holds the plumbing of the load generator command.
package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ResultGetter is satisfied by *pubsub.PublishResult.
type ResultGetter interface {
	Get(ctx context.Context) (string, error)
}

// PublishWaiter confirms publish results on a fixed number of goroutines.
// The first failed confirmation cancels Context, which stops the attack.
type PublishWaiter struct {
	ch        chan ResultGetter
	eg        *errgroup.Group
	ctx       context.Context
	confirmed atomic.Int64
}

func NewPublishWaiter(ctx context.Context, workers int) *PublishWaiter {
	eg, ctx := errgroup.WithContext(ctx)
	w := &PublishWaiter{
		ch:  make(chan ResultGetter, workers),
		eg:  eg,
		ctx: ctx,
	}
	for i := 0; i < workers; i++ {
		eg.Go(func() error {
			for {
				select {
				case res, ok := <-w.ch:
					if !ok {
						return nil
					}
					if _, err := res.Get(ctx); err != nil {
						return fmt.Errorf("Get: %w", err)
					}
					w.confirmed.Add(1)
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})
	}
	return w
}

func (w *PublishWaiter) Context() context.Context {
	return w.ctx
}

// Add queues res. It gives up instead of blocking once the waiter has failed
// or ctx is done.
func (w *PublishWaiter) Add(ctx context.Context, res ResultGetter) error {
	select {
	case w.ch <- res:
		return nil
	case <-w.ctx.Done():
		return w.ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close waits for the queued results. Add must not be called after Close.
func (w *PublishWaiter) Close() error {
	close(w.ch)
	return w.eg.Wait()
}

func (w *PublishWaiter) Confirmed() int64 {
	return w.confirmed.Load()
}

type expectedCount struct {
	NID        int64 `json:"nid"`
	TotalCount int64 `json:"totalcount"`
}

// WriteExpected writes one {"nid":..,"totalcount":..} line per id with a
// non-zero count, keyed like viewcount-get output so the two join on nid.
func WriteExpected(w io.Writer, ids []int64, sent []atomic.Int64) error {
	enc := json.NewEncoder(w)
	for i, id := range ids {
		n := sent[i].Load()
		if n == 0 {
			continue
		}
		if err := enc.Encode(expectedCount{NID: id, TotalCount: n}); err != nil {
			return fmt.Errorf("Encode: %w", err)
		}
	}
	return nil
}
