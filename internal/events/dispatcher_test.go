package events

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, unsubscribe := dispatcher.Subscribe(ctx)
	defer unsubscribe()

	dispatcher.Publish(Event{Kind: KindItemAdded, ItemID: "item-1", Timestamp: time.Now()})

	select {
	case event := <-stream:
		if event.Kind != KindItemAdded || event.ItemID != "item-1" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatalf("event not delivered")
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, unsubscribe := dispatcher.Subscribe(ctx)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			dispatcher.Publish(Event{Kind: KindItemUpdated, ItemID: "item-1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on an undrained subscriber")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, unsubscribe := dispatcher.Subscribe(ctx)
	unsubscribe()

	dispatcher.Publish(Event{Kind: KindItemAdded, ItemID: "item-1"})

	select {
	case event := <-stream:
		t.Fatalf("delivered after unsubscribe: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmptyKindIgnored(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, unsubscribe := dispatcher.Subscribe(ctx)
	defer unsubscribe()

	dispatcher.Publish(Event{ItemID: "item-1"})

	select {
	case event := <-stream:
		t.Fatalf("kindless event delivered: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}
