package chatwindow

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Watcher recomputes a chat status on a fixed tick while a chat view is open.
// Invalidate forces a recompute ahead of the next tick, so a server-pushed
// appointment change does not have to wait out the full period.
type Watcher struct {
	period     time.Duration
	invalidate chan struct{}
	log        zerolog.Logger
}

func NewWatcher(period time.Duration, log zerolog.Logger) *Watcher {
	if period <= 0 {
		period = time.Minute
	}
	return &Watcher{
		period:     period,
		invalidate: make(chan struct{}, 1),
		log:        log,
	}
}

// Invalidate requests an immediate recompute. Safe to call from any goroutine;
// coalesces if a request is already pending.
func (w *Watcher) Invalidate() {
	select {
	case w.invalidate <- struct{}{}:
	default:
	}
}

// Run recomputes immediately, then on every tick or invalidation, until the
// context is cancelled.
func (w *Watcher) Run(ctx context.Context, recompute func(now time.Time)) {
	recompute(time.Now())

	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug().Msg("chat status watcher stopped")
			return
		case <-ticker.C:
			recompute(time.Now())
		case <-w.invalidate:
			recompute(time.Now())
		}
	}
}
