package retry

import (
	"context"
	"testing"
	"time"

	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
)

func TestNewBackoff(t *testing.T) {
	bo := NewBackoff()
	for i := 0; i < 20; i++ {
		d := bo.Pause()
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, maxDelay)
	}
}

func TestNewBackoff_Independent(t *testing.T) {
	a := NewBackoff()
	for i := 0; i < 10; i++ {
		a.Pause()
	}
	// a fresh backoff starts from the initial delay again
	assert.LessOrEqual(t, NewBackoff().Pause(), initialDelay)
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, gax.Sleep(ctx, time.Hour), context.Canceled)
}
