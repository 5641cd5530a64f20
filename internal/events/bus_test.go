package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe(EventBacktestTrade, 4)
	defer unsub()

	b.Publish(EventBacktestTrade, TradePayload{Code: "600000", Side: "buy"})

	select {
	case got := <-ch:
		p, ok := got.(TradePayload)
		if !ok || p.Code != "600000" {
			t.Errorf("got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBus()
	_, unsub := b.Subscribe(EventBacktestProgress, 1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		// Buffer is 1; extra publishes must be dropped, not block.
		for i := 0; i < 10; i++ {
			b.Publish(EventBacktestProgress, ProgressPayload{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}

func TestSubscribeMany(t *testing.T) {
	b := NewBus()
	ch, cancel := b.SubscribeMany([]Event{EventBacktestTrade, EventRecommendFound}, 8)
	defer cancel()

	b.Publish(EventBacktestTrade, TradePayload{Side: "sell"})
	b.Publish(EventRecommendFound, RecommendPayload{Code: "600001"})

	seen := map[Event]bool{}
	for i := 0; i < 2; i++ {
		select {
		case env := <-ch:
			seen[env.Event] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for envelopes")
		}
	}
	if !seen[EventBacktestTrade] || !seen[EventRecommendFound] {
		t.Errorf("seen = %v", seen)
	}
}
