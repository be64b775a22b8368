package app

import (
	"sync"

	"github.com/andyyulianto77/kuis3/internal/domain"
)

// Bus is the explicit publish/subscribe channel between the session state
// machine and cross-cutting listeners (delivery sender, transports). Any
// number of listeners may observe an event; the bus retains nothing after
// dispatch.
type Bus struct {
	mu   sync.Mutex
	subs map[chan domain.ResultEvent]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[chan domain.ResultEvent]struct{})}
}

// Subscribe returns a channel of events. The caller must invoke the
// returned cancel function to avoid leaks.
func (b *Bus) Subscribe() (<-chan domain.ResultEvent, func()) {
	ch := make(chan domain.ResultEvent, 8)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber. Slow consumers lose the
// oldest buffered event rather than blocking the publisher.
func (b *Bus) Publish(ev domain.ResultEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
