package chatwindow

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherRecomputesImmediatelyAndOnTick(t *testing.T) {
	w := NewWatcher(20*time.Millisecond, zerolog.Nop())

	var count int64
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		w.Run(ctx, func(time.Time) {
			atomic.AddInt64(&count, 1)
		})
	}()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&count) >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestWatcherInvalidateShortcutsTick(t *testing.T) {
	// Long enough that a tick cannot fire during the test.
	w := NewWatcher(time.Hour, zerolog.Nop())

	var count int64
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})

	go func() {
		defer close(done)
		w.Run(ctx, func(time.Time) {
			atomic.AddInt64(&count, 1)
		})
	}()

	// First recompute happens on startup.
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&count) == 1
	}, time.Second, 5*time.Millisecond)

	w.Invalidate()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&count) == 2
	}, time.Second, 5*time.Millisecond)

	// Coalesced invalidations never queue more than one pending recompute.
	w.Invalidate()
	w.Invalidate()
	w.Invalidate()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&count) >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.LessOrEqual(t, atomic.LoadInt64(&count), int64(4))
}
