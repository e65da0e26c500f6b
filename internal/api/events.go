package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/camhal/internal/events"
)

// sseBuffer is the per-connection backlog; slow clients lose events past it.
const sseBuffer = 32

func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time device hotplug, capture and control events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"connected":       events.ConnectedEvent{},
		"device-hotplug":  events.DeviceHotplugEvent{},
		"device-opened":   events.DeviceOpenedEvent{},
		"stream-started":  events.StreamStartedEvent{},
		"stream-stopped":  events.StreamStoppedEvent{},
		"capture-error":   events.CaptureErrorEvent{},
		"control-changed": events.ControlChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Headers are only flushed with the first message.
		connected := events.ConnectedEvent{
			Message:   "SSE connection established",
			Timestamp: time.Now().Format(time.RFC3339),
		}

		if s.options.Bus == nil {
			if err := send.Data(connected); err != nil {
				return
			}
			<-ctx.Done()
			return
		}

		eventCh := make(chan any, sseBuffer)
		unsubscribers := []func(){
			events.SubscribeToChannel[events.DeviceHotplugEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.DeviceOpenedEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.StreamStartedEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.StreamStoppedEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.CaptureErrorEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.ControlChangedEvent](s.options.Bus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if err := send.Data(connected); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
