package server

import (
	"sync"

	"github.com/Mr-Dark-debug/freightview/internal/api"
)

type topic struct {
	project string
	stage   string
}

// Subscriber receives the promotion events of one stage. C is closed when
// the subscriber is removed, either by Unsubscribe or because it fell
// behind.
type Subscriber struct {
	C  <-chan api.PromotionEvent
	ch chan api.PromotionEvent
	t  topic
}

// Broker fans promotion events out to the watchers of each stage.
// Each subscriber has a bounded buffer; a subscriber whose buffer is full
// is dropped rather than blocking the publisher.
type Broker struct {
	mu     sync.Mutex
	buffer int
	subs   map[topic]map[*Subscriber]struct{}
	closed bool
}

// NewBroker creates a broker with the given per-subscriber buffer.
func NewBroker(buffer int) *Broker {
	if buffer < 1 {
		buffer = 1
	}
	return &Broker{
		buffer: buffer,
		subs:   make(map[topic]map[*Subscriber]struct{}),
	}
}

// Subscribe registers a watcher for a stage. After Close it returns a
// subscriber whose channel is already closed.
func (b *Broker) Subscribe(project, stage string) *Subscriber {
	ch := make(chan api.PromotionEvent, b.buffer)
	sub := &Subscriber{C: ch, ch: ch, t: topic{project, stage}}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	set, ok := b.subs[sub.t]
	if !ok {
		set = make(map[*Subscriber]struct{})
		b.subs[sub.t] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub and closes its channel. It is a no-op for a
// subscriber that was already removed.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

func (b *Broker) removeLocked(sub *Subscriber) bool {
	set, ok := b.subs[sub.t]
	if !ok {
		return false
	}
	if _, ok := set[sub]; !ok {
		return false
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.t)
	}
	close(sub.ch)
	return true
}

// Publish delivers ev to every watcher of the stage. It returns how many
// subscribers received it and how many were dropped for being full.
func (b *Broker) Publish(project, stage string, ev api.PromotionEvent) (delivered, dropped int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs[topic{project, stage}] {
		select {
		case sub.ch <- ev:
			delivered++
		default:
			b.removeLocked(sub)
			dropped++
		}
	}
	return delivered, dropped
}

// Count returns the number of live subscribers.
func (b *Broker) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, set := range b.subs {
		n += len(set)
	}
	return n
}

// Close removes every subscriber, ending all watch streams.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, set := range b.subs {
		for sub := range set {
			b.removeLocked(sub)
		}
	}
}
