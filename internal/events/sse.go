package events

import "github.com/kelindar/event"

// SubscribeToChannel forwards events of type T to ch, dropping them when
// ch is full. The SSE handler selects on ch.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
