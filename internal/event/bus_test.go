package event_test

import (
	"context"
	"sync"
	"testing"

	"github.com/jheath/partsbin/internal/event"
	"go.uber.org/zap"
)

func TestPublish_DeliversToTopicSubscribers(t *testing.T) {
	bus := event.NewBus(zap.NewNop())

	var got []string
	bus.Subscribe("prefs.updated", func(_ context.Context, e event.Event) {
		got = append(got, e.Payload.(string))
	})
	bus.Subscribe("device.created", func(_ context.Context, e event.Event) {
		t.Errorf("unexpected delivery to device.created: %v", e.Payload)
	})

	bus.Publish(context.Background(), event.Event{Topic: "prefs.updated", Payload: "alice"})

	if len(got) != 1 || got[0] != "alice" {
		t.Errorf("deliveries = %v, want [alice]", got)
	}
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	bus := event.NewBus(zap.NewNop())

	count := 0
	unsub := bus.Subscribe("prefs.updated", func(context.Context, event.Event) { count++ })

	bus.Publish(context.Background(), event.Event{Topic: "prefs.updated"})
	unsub()
	bus.Publish(context.Background(), event.Event{Topic: "prefs.updated"})

	if count != 1 {
		t.Errorf("deliveries = %d, want 1", count)
	}
}

func TestPublish_RecoversFromPanickingHandler(t *testing.T) {
	bus := event.NewBus(zap.NewNop())

	delivered := false
	bus.Subscribe("prefs.updated", func(context.Context, event.Event) { panic("boom") })
	bus.Subscribe("prefs.updated", func(context.Context, event.Event) { delivered = true })

	bus.Publish(context.Background(), event.Event{Topic: "prefs.updated"})

	if !delivered {
		t.Error("second handler not reached after first panicked")
	}
}

func TestPublishAsync_DeliversEventually(t *testing.T) {
	bus := event.NewBus(zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(1)
	bus.Subscribe("inventory.saved", func(context.Context, event.Event) { wg.Done() })

	bus.PublishAsync(context.Background(), event.Event{Topic: "inventory.saved"})
	wg.Wait()
}
