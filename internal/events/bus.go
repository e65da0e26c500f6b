package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for the lifecycle events above.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish delivers ev to every subscriber of its concrete type.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case DeviceHotplugEvent:
		event.Publish(b.dispatcher, e)
	case DeviceOpenedEvent:
		event.Publish(b.dispatcher, e)
	case StreamStartedEvent:
		event.Publish(b.dispatcher, e)
	case StreamStoppedEvent:
		event.Publish(b.dispatcher, e)
	case CaptureErrorEvent:
		event.Publish(b.dispatcher, e)
	case ControlChangedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type it accepts and returns
// the unsubscribe function. Handlers of any other type are ignored.
//
//	unsub := bus.Subscribe(func(e StreamStartedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(DeviceHotplugEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceOpenedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamStoppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ControlChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
