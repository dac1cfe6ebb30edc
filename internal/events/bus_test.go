// internal/events/bus_test.go
package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEvent struct {
	BaseEvent
	ID string
}

func waitFor(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event delivery")
		return nil
	}
}

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)
	defer func() { _ = bus.Shutdown(context.Background()) }()

	received := make(chan Event, 1)
	bus.Subscribe(RecordUnapproved, func(_ context.Context, e Event) {
		received <- e
	})

	sent := &testEvent{BaseEvent: NewBase(RecordUnapproved), ID: "tx-1"}
	require.NoError(t, bus.Publish(sent))

	got := waitFor(t, received)
	assert.Equal(t, RecordUnapproved, got.Type())
	assert.Equal(t, "tx-1", got.(*testEvent).ID)
}

func TestBusFiltersByEventType(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)
	defer func() { _ = bus.Shutdown(context.Background()) }()

	statusChanges := make(chan Event, 1)
	bus.Subscribe(RecordStatusChanged, func(_ context.Context, e Event) {
		statusChanges <- e
	})

	require.NoError(t, bus.Publish(&testEvent{BaseEvent: NewBase(RecordUnapproved)}))
	require.NoError(t, bus.Publish(&testEvent{BaseEvent: NewBase(RecordStatusChanged), ID: "tx-2"}))

	got := waitFor(t, statusChanges)
	assert.Equal(t, "tx-2", got.(*testEvent).ID)
	select {
	case extra := <-statusChanges:
		t.Fatalf("unexpected extra delivery: %v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)
	defer func() { _ = bus.Shutdown(context.Background()) }()

	received := make(chan Event, 2)
	sub := bus.Subscribe(RecordUpdated, func(_ context.Context, e Event) {
		received <- e
	})

	require.NoError(t, bus.Publish(&testEvent{BaseEvent: NewBase(RecordUpdated)}))
	waitFor(t, received)

	sub.Unsubscribe()
	require.NoError(t, bus.Publish(&testEvent{BaseEvent: NewBase(RecordUpdated)}))
	select {
	case <-received:
		t.Fatal("received event after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusPublishAfterShutdown(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)
	require.NoError(t, bus.Shutdown(context.Background()))

	err := bus.Publish(&testEvent{BaseEvent: NewBase(RecordUpdated)})
	assert.Error(t, err)
}
