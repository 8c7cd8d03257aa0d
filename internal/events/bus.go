package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for in-process event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(HistogramReadyEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event dispatches on the concrete type, so fan the interface
	// back out through a type switch.
	switch e := ev.(type) {
	case HistogramReadyEvent:
		event.Publish(b.dispatcher, e)
	case StateChangedEvent:
		event.Publish(b.dispatcher, e)
	case LumaAppliedEvent:
		event.Publish(b.dispatcher, e)
	case PolicyChangedEvent:
		event.Publish(b.dispatcher, e)
	case RebootRequestedEvent:
		event.Publish(b.dispatcher, e)
	case HibernatePrepareEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function. The handler's
// parameter type determines which events it receives. Returns an
// unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e HistogramReadyEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(HistogramReadyEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LumaAppliedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PolicyChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RebootRequestedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(HibernatePrepareEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Unknown handler signature: nothing to subscribe.
		return func() {}
	}
}

// SubscribeToChannel bridges callback-based subscriptions to channels.
// Needed for SSE integration where Huma expects a channel-based select
// loop. Sends never block; events are dropped when the channel is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
