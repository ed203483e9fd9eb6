package location

import (
	"context"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
)

// Event is one delivery from a positioning provider: either a sample or a
// sensing error, never both.
type Event struct {
	Sample *attendance.LocationSample
	Err    *Error
}

// Provider is a continuous source of positioning events. Watch returns a
// channel that delivers events in arrival order and is closed once ctx is
// cancelled.
type Provider interface {
	Watch(ctx context.Context) <-chan Event
}

// PushProvider is fed externally, typically by the device UI posting fixes
// over HTTP. It fans events out to every active watch.
type PushProvider struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewPushProvider() *PushProvider {
	return &PushProvider{subs: make(map[chan Event]struct{})}
}

// Watch implements Provider.
func (p *PushProvider) Watch(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.subs, ch)
		close(ch)
		p.mu.Unlock()
	}()

	return ch
}

// Publish delivers a sample to all active watches.
func (p *PushProvider) Publish(sample attendance.LocationSample) {
	p.deliver(Event{Sample: &sample})
}

// PublishError delivers a sensing error to all active watches.
func (p *PushProvider) PublishError(err *Error) {
	p.deliver(Event{Err: err})
}

func (p *PushProvider) deliver(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subs {
		select {
		case ch <- ev:
		default:
			// Slow consumer: dropping beats blocking the publisher. The
			// engine re-derives state from the next fix anyway.
		}
	}
}

// ScriptProvider replays a fixed sequence of events, optionally spaced by
// Interval. Used in tests and simulation runs.
type ScriptProvider struct {
	Events   []Event
	Interval time.Duration
}

// Watch implements Provider.
func (p *ScriptProvider) Watch(ctx context.Context) <-chan Event {
	ch := make(chan Event, len(p.Events))

	go func() {
		defer close(ch)
		for _, ev := range p.Events {
			if p.Interval > 0 {
				select {
				case <-time.After(p.Interval):
				case <-ctx.Done():
					return
				}
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
	}()

	return ch
}
