// Package retry holds the contention backoff shared by the optimistic stores.
package retry

import (
	"time"

	"github.com/googleapis/gax-go/v2"
)

const (
	initialDelay = 10 * time.Millisecond
	maxDelay     = 640 * time.Millisecond
)

// NewBackoff returns a jittered backoff that doubles from 10ms up to 640ms.
// Not safe for concurrent use; take one per call.
func NewBackoff() *gax.Backoff {
	return &gax.Backoff{
		Initial:    initialDelay,
		Max:        maxDelay,
		Multiplier: 2,
	}
}
