package events

import (
	"context"
	"testing"
	"time"
)

func TestMemoryBusPublishConsume(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	want := Event{ID: "e1", SessionID: "s1", Kind: KindWidgetUpdate}
	if err := bus.Publish(ctx, want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	received := make(chan Event, 1)
	consumeCtx, stop := context.WithCancel(ctx)
	go func() {
		_ = bus.Consume(consumeCtx, func(_ context.Context, event Event) error {
			received <- event
			stop()
			return nil
		})
	}()

	select {
	case got := <-received:
		if got.ID != want.ID || got.Kind != want.Kind {
			t.Fatalf("unexpected event: %+v", got)
		}
	case <-ctx.Done():
		t.Fatalf("event was not delivered")
	}
}

func TestMemoryBusDropsOldestWhenFull(t *testing.T) {
	bus := NewMemoryBus(1)
	defer bus.Close()
	ctx := context.Background()

	if err := bus.Publish(ctx, Event{ID: "old"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := bus.Publish(ctx, Event{ID: "new"}); err != nil {
		t.Fatalf("publish must not block when full: %v", err)
	}
}

func TestMemoryBusClosedRejectsPublish(t *testing.T) {
	bus := NewMemoryBus(1)
	_ = bus.Close()
	if err := bus.Publish(context.Background(), Event{ID: "x"}); err == nil {
		t.Fatalf("expected error after close")
	}
}
