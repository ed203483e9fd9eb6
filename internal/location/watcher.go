// Package location wraps a positioning capability into a cancellable,
// continuous stream of samples with an explicit no-callback-after-stop
// contract.
package location

import (
	"context"
	"sync"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
)

// Watcher turns a Provider into start/stop subscriptions.
type Watcher struct {
	provider Provider
}

func NewWatcher(provider Provider) *Watcher {
	return &Watcher{provider: provider}
}

// Subscription is one active watch. Stop is idempotent, safe from any
// goroutine, and guarantees that no callback fires after it returns.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop cancels the watch and blocks until the dispatch goroutine has
// exited, so the caller can rely on callbacks being fully quiesced.
func (s *Subscription) Stop() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// Start begins delivering provider events to the callbacks, in arrival
// order, from a single dispatch goroutine. The caller remains responsible
// for discarding deliveries that are stale relative to its own session.
func (w *Watcher) Start(onSample func(attendance.LocationSample), onError func(*Error)) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	events := w.provider.Watch(ctx)

	go func() {
		defer close(sub.done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				// Re-check after a potentially long channel wait; a
				// cancelled subscription must not deliver.
				select {
				case <-ctx.Done():
					return
				default:
				}
				switch {
				case ev.Sample != nil:
					onSample(*ev.Sample)
				case ev.Err != nil:
					onError(ev.Err)
				}
			}
		}
	}()

	return sub
}
