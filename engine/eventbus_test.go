package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"ascnd/core"
)

func TestEventBusSync(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	bus.Subscribe(core.EventScoreSubmitted, func(ctx context.Context, e core.Event) { count++ })
	bus.Publish(context.Background(), core.NewScoreSubmitted("lb", "u", "s1", 10, 1))
	bus.Publish(context.Background(), core.NewBest("lb", "u", "s1", 10, 1))
	if count != 1 {
		t.Fatalf("want 1 got %d", count)
	}
}

func TestEventBusAnyEvent(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	unsubscribe := bus.Subscribe(AnyEvent, func(ctx context.Context, e core.Event) { count++ })
	bus.Publish(context.Background(), core.NewScoreSubmitted("lb", "u", "s1", 10, 1))
	bus.Publish(context.Background(), core.NewScoreRejected("lb", "u", 10, core.ActionReject))
	unsubscribe()
	bus.Publish(context.Background(), core.NewBest("lb", "u", "s1", 10, 1))
	if count != 2 {
		t.Fatalf("want 2 got %d", count)
	}
}

func TestEventBusAsync(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	defer bus.Close()
	ch := make(chan struct{})
	bus.Subscribe(core.EventNewBest, func(ctx context.Context, e core.Event) { close(ch) })
	bus.Publish(context.Background(), core.NewBest("lb", "u", "s1", 10, 1))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestEventBusCloseStopsDelivery(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	var count int32
	bus.Subscribe(AnyEvent, func(ctx context.Context, e core.Event) { atomic.AddInt32(&count, 1) })
	bus.Close()
	bus.Close()
	bus.Publish(context.Background(), core.NewBest("lb", "u", "s1", 10, 1))
	time.Sleep(20 * time.Millisecond)
	if n := atomic.LoadInt32(&count); n != 0 {
		t.Fatalf("want no deliveries after close, got %d", n)
	}
}
