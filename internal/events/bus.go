package events

import (
	"sync"
)

// Bus is a lightweight pub/sub broker using channels.
type Bus struct {
	mu   sync.RWMutex
	subs map[Event][]chan any
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Event][]chan any)}
}

// Subscribe registers a listener for an event and returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(e Event, buffer int) (<-chan any, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan any, buffer)
	b.subs[e] = append(b.subs[e], ch)

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[e]
		for i, c := range subs {
			if c == ch {
				close(c)
				b.subs[e] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}

	return ch, unsub
}

// Envelope pairs a payload with the topic it arrived on, for fan-in
// subscriptions across multiple topics.
type Envelope struct {
	Event   Event `json:"event"`
	Payload any   `json:"payload"`
}

// SubscribeMany funnels several topics into one channel of Envelopes.
// The returned function unsubscribes all of them.
func (b *Bus) SubscribeMany(topics []Event, buffer int) (<-chan Envelope, func()) {
	out := make(chan Envelope, buffer)
	done := make(chan struct{})
	var wg sync.WaitGroup

	unsubs := make([]func(), 0, len(topics))
	for _, topic := range topics {
		ch, unsub := b.Subscribe(topic, buffer)
		unsubs = append(unsubs, unsub)
		wg.Add(1)
		go func(topic Event, ch <-chan any) {
			defer wg.Done()
			for payload := range ch {
				select {
				case out <- Envelope{Event: topic, Payload: payload}:
				case <-done:
					return
				}
			}
		}(topic, ch)
	}

	cancel := func() {
		close(done)
		for _, u := range unsubs {
			u()
		}
		go func() {
			wg.Wait()
			close(out)
		}()
	}
	return out, cancel
}

// Publish fan-outs the payload to subscribers asynchronously to avoid blocking.
func (b *Bus) Publish(e Event, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[e] {
		select {
		case ch <- payload:
		default:
			// drop if subscriber is slow; keep broker non-blocking
		}
	}
}
