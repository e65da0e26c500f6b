package events

// Event type constants for kelindar/event.
const (
	TypeDeviceHotplug uint32 = iota + 1
	TypeDeviceOpened
	TypeStreamStarted
	TypeStreamStopped
	TypeCaptureError
	TypeControlChanged
	TypeConnected
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// DeviceHotplugEvent reports a capture device appearing or going away.
type DeviceHotplugEvent struct {
	Action    string `json:"action" example:"added" doc:"added or removed"`
	Address   string `json:"address" example:"uvc://1:4" doc:"Device address"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceHotplugEvent.
func (e DeviceHotplugEvent) Type() uint32 { return TypeDeviceHotplug }

// DeviceOpenedEvent is published when a capture session opens a device.
type DeviceOpenedEvent struct {
	Address   string `json:"address" example:"v4l:///dev/video0" doc:"Device address"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceOpenedEvent.
func (e DeviceOpenedEvent) Type() uint32 { return TypeDeviceOpened }

// StreamStartedEvent is published once a mode has been negotiated.
type StreamStartedEvent struct {
	Address   string  `json:"address" example:"v4l:///dev/video0" doc:"Device address"`
	Format    string  `json:"format" example:"YUYV16" doc:"Negotiated pixel format"`
	Width     uint32  `json:"width" example:"1280" doc:"Frame width"`
	Height    uint32  `json:"height" example:"720" doc:"Frame height"`
	FPS       float64 `json:"fps" example:"30" doc:"Negotiated frame rate"`
	Timestamp string  `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStartedEvent.
func (e StreamStartedEvent) Type() uint32 { return TypeStreamStarted }

// StreamStoppedEvent is published when a capture session ends.
type StreamStoppedEvent struct {
	Address   string `json:"address" example:"v4l:///dev/video0" doc:"Device address"`
	Frames    uint64 `json:"frames" example:"9000" doc:"Frames pulled during the session"`
	Reason    string `json:"reason" example:"stopped" doc:"Why the session ended"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStoppedEvent.
func (e StreamStoppedEvent) Type() uint32 { return TypeStreamStopped }

// CaptureErrorEvent reports a frame that could not be pulled.
type CaptureErrorEvent struct {
	Address   string `json:"address" example:"uvc://1:4" doc:"Device address"`
	Kind      string `json:"kind" example:"io" doc:"Error category"`
	Error     string `json:"error" example:"timed out waiting for frame" doc:"Error description"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureErrorEvent.
func (e CaptureErrorEvent) Type() uint32 { return TypeCaptureError }

// ControlChangedEvent is published after a control write succeeds.
type ControlChangedEvent struct {
	Address   string `json:"address" example:"v4l:///dev/video0" doc:"Device address"`
	ControlID uint32 `json:"control_id" example:"9963776" doc:"Control identifier"`
	Value     int64  `json:"value" example:"128" doc:"New value"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ControlChangedEvent.
func (e ControlChangedEvent) Type() uint32 { return TypeControlChanged }

// ConnectedEvent is the first message on every event stream.
type ConnectedEvent struct {
	Message   string `json:"message" example:"SSE connection established" doc:"Connection status"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConnectedEvent.
func (e ConnectedEvent) Type() uint32 { return TypeConnected }
