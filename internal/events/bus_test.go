package events

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan StreamStartedEvent, 1)

	unsub := bus.Subscribe(func(e StreamStartedEvent) {
		received <- e
	})
	defer unsub()

	want := StreamStartedEvent{Address: "v4l:///dev/video0", Format: "YUYV16", Width: 640, Height: 480, FPS: 30}
	bus.Publish(want)

	select {
	case got := <-received:
		if got != want {
			t.Errorf("received %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := New()
	received1 := make(chan DeviceHotplugEvent, 1)
	received2 := make(chan DeviceHotplugEvent, 1)

	defer bus.Subscribe(func(e DeviceHotplugEvent) { received1 <- e })()
	defer bus.Subscribe(func(e DeviceHotplugEvent) { received2 <- e })()

	bus.Publish(DeviceHotplugEvent{Action: "added", Address: "uvc://1:4"})

	for i, ch := range []chan DeviceHotplugEvent{received1, received2} {
		select {
		case e := <-ch:
			if e.Address != "uvc://1:4" {
				t.Errorf("subscriber %d got %+v", i, e)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan CaptureErrorEvent, 1)

	unsub := bus.Subscribe(func(e CaptureErrorEvent) {
		received <- e
	})

	bus.Publish(CaptureErrorEvent{Address: "uvc://1:4"})
	<-received

	unsub()

	bus.Publish(CaptureErrorEvent{Address: "uvc://1:5"})
	select {
	case <-received:
		t.Fatal("received event after unsubscribe")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	started := make(chan bool, 1)
	stopped := make(chan bool, 1)

	defer bus.Subscribe(func(StreamStartedEvent) { started <- true })()
	defer bus.Subscribe(func(StreamStoppedEvent) { stopped <- true })()

	bus.Publish(StreamStartedEvent{Address: "v4l:///dev/video0"})
	<-started

	select {
	case <-stopped:
		t.Fatal("StreamStoppedEvent subscriber received StreamStartedEvent")
	case <-time.After(20 * time.Millisecond):
	}

	bus.Publish(StreamStoppedEvent{Address: "v4l:///dev/video0", Reason: "stopped"})
	<-stopped

	select {
	case <-started:
		t.Fatal("StreamStartedEvent subscriber received StreamStoppedEvent")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_UnknownHandler(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
}

func TestBus_ThreadSafety(t *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	const goroutines, perGoroutine = 10, 100
	const expected = goroutines * perGoroutine

	receivedCh := make(chan bool, expected)
	defer bus.Subscribe(func(DeviceHotplugEvent) { receivedCh <- true })()

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				bus.Publish(DeviceHotplugEvent{Action: "added", Timestamp: time.Now().Format(time.RFC3339)})
			}
		}()
	}
	wg.Wait()

	for range expected {
		select {
		case <-receivedCh:
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for events")
		}
	}
}

func TestBus_AllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name  string
		event Event
	}{
		{"DeviceHotplug", DeviceHotplugEvent{Action: "removed"}},
		{"DeviceOpened", DeviceOpenedEvent{Address: "uvc://1:4"}},
		{"StreamStarted", StreamStartedEvent{Width: 1}},
		{"StreamStopped", StreamStoppedEvent{Frames: 3}},
		{"CaptureError", CaptureErrorEvent{Kind: "io"}},
		{"ControlChanged", ControlChangedEvent{ControlID: 1, Value: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			received := make(chan Event, 1)

			var unsub func()
			switch tt.event.(type) {
			case DeviceHotplugEvent:
				unsub = bus.Subscribe(func(e DeviceHotplugEvent) { received <- e })
			case DeviceOpenedEvent:
				unsub = bus.Subscribe(func(e DeviceOpenedEvent) { received <- e })
			case StreamStartedEvent:
				unsub = bus.Subscribe(func(e StreamStartedEvent) { received <- e })
			case StreamStoppedEvent:
				unsub = bus.Subscribe(func(e StreamStoppedEvent) { received <- e })
			case CaptureErrorEvent:
				unsub = bus.Subscribe(func(e CaptureErrorEvent) { received <- e })
			case ControlChangedEvent:
				unsub = bus.Subscribe(func(e ControlChangedEvent) { received <- e })
			}
			defer unsub()

			bus.Publish(tt.event)
			select {
			case got := <-received:
				if got != tt.event {
					t.Errorf("received %+v, want %+v", got, tt.event)
				}
			case <-time.After(time.Second):
				t.Fatal("timeout")
			}
		})
	}
}

func TestSubscribeToChannelDropsWhenFull(t *testing.T) {
	bus := New()
	ch := make(chan any, 1)
	defer SubscribeToChannel[ControlChangedEvent](bus, ch)()

	bus.Publish(ControlChangedEvent{Value: 1})
	bus.Publish(ControlChangedEvent{Value: 2})
	time.Sleep(50 * time.Millisecond)

	if got := len(ch); got != 1 {
		t.Fatalf("channel holds %d events, want 1", got)
	}
	if e := (<-ch).(ControlChangedEvent); e.Value != 1 {
		t.Errorf("kept %+v, want the first event", e)
	}
}
