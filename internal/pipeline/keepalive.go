// ABOUTME: Background typing indicator refreshed while a completion call is outstanding
// ABOUTME: Stopped through a close-once channel or context; clears the indicator on exit

package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// typingClearTimeout bounds the final "stop typing" call.
const typingClearTimeout = 10 * time.Second

// keepalive refreshes a typing indicator until stopped.
type keepalive struct {
	stop     chan struct{}
	finished chan struct{}
	once     sync.Once
}

// startKeepalive signals typing on channelID immediately and then every interval.
func startKeepalive(ctx context.Context, m Messenger, channelID string, interval time.Duration, logger *slog.Logger) *keepalive {
	k := &keepalive{
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}

	go func() {
		defer close(k.finished)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		defer func() {
			clearCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), typingClearTimeout)
			defer cancel()
			if err := m.SetTyping(clearCtx, channelID, false); err != nil {
				logger.Debug("failed to clear typing indicator", "error", err)
			}
		}()

		for {
			if err := m.SetTyping(ctx, channelID, true); err != nil {
				logger.Debug("failed to set typing indicator", "error", err)
			}

			select {
			case <-k.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return k
}

// Stop signals the goroutine to exit. It does not wait; use Done for that.
// Safe to call more than once.
func (k *keepalive) Stop() {
	k.once.Do(func() {
		close(k.stop)
	})
}

// Done is closed once the goroutine has exited.
func (k *keepalive) Done() <-chan struct{} {
	return k.finished
}
