// internal/events/bus.go
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Listener receives an event. Listener errors are not propagated; delivery
// is fire-and-forget with no retained history.
type Listener func(ctx context.Context, event Event)

// Subscription represents a registered listener.
type Subscription interface {
	// Unsubscribe removes the listener from the bus.
	Unsubscribe()
}

// Bus is an in-memory event bus carrying transaction lifecycle
// notifications to the UI layer and other consumers.
type Bus struct {
	mu        sync.RWMutex
	listeners map[EventType]map[string]Listener
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	eventChan chan Event
}

// NewBus creates a new event bus with the given delivery buffer.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	bus := &Bus{
		listeners: make(map[EventType]map[string]Listener),
		logger:    logger.Named("event_bus"),
		ctx:       ctx,
		cancel:    cancel,
		eventChan: make(chan Event, bufferSize),
	}

	bus.wg.Add(1)
	go bus.dispatch()

	return bus
}

// Subscribe registers a listener for a specific event type.
func (b *Bus) Subscribe(eventType EventType, fn Listener) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	if b.listeners[eventType] == nil {
		b.listeners[eventType] = make(map[string]Listener)
	}
	b.listeners[eventType][id] = fn

	b.logger.Debug("Listener subscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))

	return &subscription{id: id, bus: b, typ: eventType}
}

// Publish queues an event for asynchronous delivery. When the buffer is
// full the event is dropped with a warning rather than blocking the
// pipeline.
func (b *Bus) Publish(event Event) error {
	select {
	case <-b.ctx.Done():
		return fmt.Errorf("event bus is shutting down")
	default:
	}

	select {
	case b.eventChan <- event:
		return nil
	default:
		b.logger.Warn("Event channel full, dropping event",
			zap.String("event_type", string(event.Type())))
		return fmt.Errorf("event channel full")
	}
}

// PublishSync delivers an event to all listeners on the caller's goroutine.
func (b *Bus) PublishSync(ctx context.Context, event Event) {
	b.mu.RLock()
	registered := b.listeners[event.Type()]
	listeners := make([]Listener, 0, len(registered))
	for _, fn := range registered {
		listeners = append(listeners, fn)
	}
	b.mu.RUnlock()

	for _, fn := range listeners {
		fn(ctx, event)
	}
}

func (b *Bus) dispatch() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			// Drain remaining events
			for {
				select {
				case event := <-b.eventChan:
					b.PublishSync(context.Background(), event)
				default:
					return
				}
			}
		case event := <-b.eventChan:
			b.PublishSync(b.ctx, event)
		}
	}
}

func (b *Bus) unsubscribe(id string, eventType EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if listeners, ok := b.listeners[eventType]; ok {
		delete(listeners, id)
		if len(listeners) == 0 {
			delete(b.listeners, eventType)
		}
	}
}

// Shutdown stops delivery after draining queued events.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.logger.Info("Shutting down event bus")
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout")
		return ctx.Err()
	}
}

type subscription struct {
	id  string
	bus *Bus
	typ EventType
}

func (s *subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id, s.typ)
}
