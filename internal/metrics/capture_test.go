package metrics

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smazurov/camhal/pkg/hal"
)

func frames(items ...hal.Frame) hal.Stream[hal.Frame] {
	i := 0
	return hal.StreamFunc[hal.Frame](func() (hal.Frame, bool) {
		if i >= len(items) {
			return hal.Frame{}, false
		}
		i++
		return items[i-1], true
	})
}

func gray(n int) hal.Frame {
	return hal.Frame{Image: hal.NewImage(make([]byte, n), uint32(n), 1, hal.Gray8)}
}

func TestInstrument(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCapture(reg)

	src := frames(
		gray(100),
		hal.Frame{Err: hal.IOError("dequeue", hal.ErrTimeout)},
		gray(100),
		hal.Frame{Err: fmt.Errorf("%w: odd", hal.ErrUnsupported)},
		gray(50),
	)
	s := c.Instrument("v4l:///dev/video0", src)

	var pulled int
	for {
		if _, ok := s.Next(); !ok {
			break
		}
		pulled++
	}
	if pulled != 5 {
		t.Fatalf("pulled %d frames, want 5", pulled)
	}

	address := "v4l:///dev/video0"
	if got := testutil.ToFloat64(c.frames.WithLabelValues(address, hal.Gray8.String())); got != 3 {
		t.Errorf("frames_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.bytes.WithLabelValues(address)); got != 250 {
		t.Errorf("bytes_total = %v, want 250", got)
	}
	if got := testutil.ToFloat64(c.frameErrors.WithLabelValues(address, "io")); got != 1 {
		t.Errorf("io errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.frameErrors.WithLabelValues(address, "unsupported")); got != 1 {
		t.Errorf("unsupported errors = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.frameInterval); got != 1 {
		t.Errorf("frame_interval series = %d, want 1", got)
	}
}

func TestInstrumentPreservesFrames(t *testing.T) {
	c := NewCapture(prometheus.NewRegistry())
	first := gray(4)
	s := c.Instrument("uvc://1:4", frames(first))

	got, ok := s.Next()
	if !ok || got.Image != first.Image {
		t.Fatalf("Next() = %+v, %v; want the source frame", got, ok)
	}
	if _, ok := s.Next(); ok {
		t.Error("instrumented stream outlived its source")
	}
}

func TestStreamGaugeAndControls(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCapture(reg)

	c.StreamStarted("uvc://1:4")
	c.StreamStarted("uvc://1:4")
	c.StreamStopped("uvc://1:4")
	c.ControlWrite("uvc://1:4", nil)
	c.ControlWrite("uvc://1:4", hal.ErrValueMismatch)
	c.ControlWrite("uvc://1:4", errors.New("mystery"))

	want := `
# HELP camhal_capture_active_streams Streams currently running
# TYPE camhal_capture_active_streams gauge
camhal_capture_active_streams{address="uvc://1:4"} 1
# HELP camhal_control_writes_total Control writes, by result
# TYPE camhal_control_writes_total counter
camhal_control_writes_total{address="uvc://1:4",result="ok"} 1
camhal_control_writes_total{address="uvc://1:4",result="unknown"} 1
camhal_control_writes_total{address="uvc://1:4",result="unsupported"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want),
		"camhal_capture_active_streams", "camhal_control_writes_total"); err != nil {
		t.Error(err)
	}
}

func TestForget(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCapture(reg)

	c.StreamStarted("uvc://1:4")
	c.StreamStarted("uvc://2:7")
	c.ControlWrite("uvc://1:4", nil)
	c.Forget("uvc://1:4")

	if got := testutil.CollectAndCount(c.activeStreams); got != 1 {
		t.Errorf("active_streams series = %d, want 1", got)
	}
	if got := testutil.CollectAndCount(c.controlWrites); got != 0 {
		t.Errorf("control_writes series = %d, want 0", got)
	}
}
