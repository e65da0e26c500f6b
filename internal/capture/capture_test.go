package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smazurov/camhal/internal/events"
	"github.com/smazurov/camhal/internal/metrics"
	"github.com/smazurov/camhal/pkg/camera"
	"github.com/smazurov/camhal/pkg/hal"
)

// feed is a frame source driven by the test through a channel.
type feed struct {
	frames    chan hal.Frame
	closed    chan struct{}
	closeOnce sync.Once
}

func newFeed(buffer int) *feed {
	return &feed{frames: make(chan hal.Frame, buffer), closed: make(chan struct{})}
}

func (f *feed) Next() (hal.Frame, bool) {
	select {
	case <-f.closed:
		return hal.Frame{}, false
	case fr, ok := <-f.frames:
		return fr, ok
	}
}

func (f *feed) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

type fakeDevice struct {
	modes []hal.StreamDescriptor
	feed  *feed

	mu       sync.Mutex
	started  []hal.StreamDescriptor
	controls map[uint32]int64
	closed   int
}

func (d *fakeDevice) QueryStreams() ([]hal.StreamDescriptor, error) {
	out := make([]hal.StreamDescriptor, len(d.modes))
	for i, m := range d.modes {
		out[i] = m.Clone()
	}
	return out, nil
}

func (d *fakeDevice) QueryControls() ([]hal.Control, error) {
	return []hal.Control{{ID: 1, Name: "Brightness", Kind: hal.ControlInteger, Min: 0, Max: 255, Step: 1}}, nil
}

func (d *fakeDevice) Control(id uint32) (hal.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.controls[id]
	if !ok {
		return hal.None(), hal.ErrUnknownControl
	}
	return hal.Integer(v), nil
}

func (d *fakeDevice) SetControl(id uint32, v hal.Value) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.controls[id]; !ok {
		return hal.ErrUnknownControl
	}
	d.controls[id] = v.Int()
	return nil
}

func (d *fakeDevice) PreferredStream(prefer func(a, b hal.StreamDescriptor) hal.StreamDescriptor) (hal.StreamDescriptor, error) {
	return hal.PreferredStream(d.QueryStreams, prefer)
}

func (d *fakeDevice) StartStream(desc hal.StreamDescriptor) (*hal.ImageStream, error) {
	d.mu.Lock()
	d.started = append(d.started, desc)
	d.mu.Unlock()
	return hal.NewImageStream(d.feed, desc), nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	d.closed++
	d.mu.Unlock()
	return d.feed.Close()
}

func (d *fakeDevice) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

var (
	vga  = hal.StreamDescriptor{Format: hal.YUYV, Width: 640, Height: 480, Intervals: []time.Duration{time.Second / 30, time.Second / 15}}
	hd   = hal.StreamDescriptor{Format: hal.YUYV, Width: 1280, Height: 720, Intervals: []time.Duration{time.Second / 10}}
	mjpg = hal.StreamDescriptor{Format: hal.JPEG, Width: 1920, Height: 1080, Intervals: []time.Duration{time.Second / 30}}
)

func newFakeDevice(buffer int) *fakeDevice {
	return &fakeDevice{
		modes:    []hal.StreamDescriptor{vga, hd, mjpg},
		feed:     newFeed(buffer),
		controls: map[uint32]int64{1: 10},
	}
}

func frame(seq byte) hal.Frame {
	return hal.Frame{Image: hal.Borrow([]byte{seq, seq, seq, seq}, 2, 1, hal.YUYV)}
}

// gathered returns the value of the series name{address, result} in reg.
// An empty result matches series without that label.
func gathered(t *testing.T, reg *prometheus.Registry, name, address, result string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["address"] != address || labels["result"] != result {
				continue
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestSelectorChoose(t *testing.T) {
	dev := newFakeDevice(0)

	tests := []struct {
		name    string
		sel     Selector
		want    hal.StreamDescriptor
		wantErr error
	}{
		{name: "largest overall", sel: Selector{}, want: mjpg},
		{name: "format", sel: Selector{Format: hal.YUYV}, want: hd},
		{name: "size", sel: Selector{Width: 640, Height: 480}, want: vga},
		{name: "interval narrows", sel: Selector{Width: 640, Interval: time.Second / 15},
			want: hal.StreamDescriptor{Format: hal.YUYV, Width: 640, Height: 480, Intervals: []time.Duration{time.Second / 15}}},
		{name: "no match", sel: Selector{Format: hal.NV12}, wantErr: hal.ErrUnsupported},
		{name: "interval rounded to offered", sel: Selector{Width: 640, Interval: time.Second * 1001 / 30000},
			want: hal.StreamDescriptor{Format: hal.YUYV, Width: 640, Height: 480, Intervals: []time.Duration{time.Second / 30}}},
		{name: "interval not offered", sel: Selector{Width: 1280, Interval: time.Second / 60}, wantErr: hal.ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.sel.Choose(dev)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Choose() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Choose() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Choose() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectorString(t *testing.T) {
	if got := (Selector{}).String(); got != "any mode" {
		t.Errorf("String() = %q", got)
	}
	if got := (Selector{Format: hal.JPEG, Width: 640, Height: 480}).String(); got != "JPEG 640x480" {
		t.Errorf("String() = %q", got)
	}
}

func TestSnapshotSkipsFrames(t *testing.T) {
	dev := newFakeDevice(8)
	for i := byte(1); i <= 4; i++ {
		dev.feed.frames <- frame(i)
	}

	img, err := Snapshot(dev, vga, 2)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if img.Bytes()[0] != 3 {
		t.Errorf("got frame %d, want 3", img.Bytes()[0])
	}
	if img.Ownership() != hal.Owned {
		t.Errorf("snapshot ownership = %v, want owned", img.Ownership())
	}
}

func TestSnapshotToleratesErrorFrames(t *testing.T) {
	dev := newFakeDevice(8)
	dev.feed.frames <- hal.Frame{Err: hal.IOError("dequeue", hal.ErrTimeout)}
	dev.feed.frames <- hal.Frame{Err: hal.IOError("dequeue", hal.ErrTimeout)}
	dev.feed.frames <- frame(7)

	img, err := Snapshot(dev, vga, 0)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if img.Bytes()[0] != 7 {
		t.Errorf("got frame %d, want 7", img.Bytes()[0])
	}
}

func TestSnapshotGivesUp(t *testing.T) {
	dev := newFakeDevice(8)
	for range MaxConsecutiveErrors {
		dev.feed.frames <- hal.Frame{Err: hal.IOError("dequeue", hal.ErrTimeout)}
	}

	_, err := Snapshot(dev, vga, 0)
	if !errors.Is(err, hal.ErrTimeout) {
		t.Fatalf("Snapshot() error = %v, want timeout", err)
	}
}

func TestSnapshotExhausted(t *testing.T) {
	dev := newFakeDevice(1)
	close(dev.feed.frames)

	_, err := Snapshot(dev, vga, 0)
	if hal.Classify(err) != hal.KindIO {
		t.Fatalf("Snapshot() error = %v, want io", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCapture(reg)
	bus := events.New()

	stopped := make(chan events.StreamStoppedEvent, 1)
	defer bus.Subscribe(func(e events.StreamStoppedEvent) { stopped <- e })()

	dev := newFakeDevice(0)
	s, err := Start("fake://0", dev, vga, Options{Bus: bus, Metrics: m})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if s.Latest() != nil {
		t.Error("Latest() before first frame should be nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := make(chan *hal.Image, 1)
	go func() {
		img, _ := s.Next(ctx)
		got <- img
	}()

	// Keep feeding until the waiter wakes up; a frame that lands before
	// Next starts waiting does not count as newer.
	var sent uint64
	var img *hal.Image
	for img == nil {
		select {
		case img = <-got:
		case dev.feed.frames <- frame(5):
			sent++
		}
	}
	if img.Bytes()[0] != 5 {
		t.Fatalf("Next() = %v, want frame 5", img)
	}
	if img.Ownership() != hal.Owned {
		t.Error("session frames must be owned")
	}

	dev.feed.frames <- hal.Frame{Err: hal.IOError("dequeue", hal.ErrTimeout)}
	dev.feed.frames <- frame(6)
	sent++
	for deadline := time.Now().Add(time.Second); s.Stats().Frames < sent && time.Now().Before(deadline); {
		time.Sleep(5 * time.Millisecond)
	}
	st := s.Stats()
	if st.Frames != sent || st.Errors != 1 || !st.Running {
		t.Errorf("Stats() = %+v, want %d frames", st, sent)
	}
	if latest := s.Latest(); latest == nil || latest.Bytes()[0] != 6 {
		t.Errorf("Latest() = %v, want frame 6", latest)
	}

	if v := gathered(t, reg, "camhal_capture_active_streams", "fake://0", ""); v != 1 {
		t.Errorf("active streams = %v, want 1", v)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	if dev.closeCount() != 1 {
		t.Errorf("device closed %d times, want 1", dev.closeCount())
	}
	if v := gathered(t, reg, "camhal_capture_active_streams", "fake://0", ""); v != 0 {
		t.Errorf("active streams after stop = %v, want 0", v)
	}

	select {
	case e := <-stopped:
		if e.Reason != ReasonStopped || e.Frames != sent {
			t.Errorf("stopped event = %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no StreamStoppedEvent")
	}

	if _, err := s.Next(ctx); !errors.Is(err, hal.ErrClosed) {
		t.Errorf("Next() after Stop error = %v, want closed", err)
	}
}

func TestSessionExhausted(t *testing.T) {
	dev := newFakeDevice(0)
	s, err := Start("fake://0", dev, vga, Options{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	close(dev.feed.frames)

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
	if s.Stats().Running {
		t.Error("exhausted session still running")
	}
	_ = s.Stop()
}

func TestManager(t *testing.T) {
	var mu sync.Mutex
	devices := map[string]*fakeDevice{}
	open := func(address string) (hal.Device, error) {
		if address == "fake://missing" {
			return nil, hal.IOError("open", errors.New("no such device"))
		}
		d := newFakeDevice(0)
		mu.Lock()
		devices[address] = d
		mu.Unlock()
		return d, nil
	}
	m := NewManager(open, Options{})
	defer m.StopAll()

	s, err := m.Start("fake://0", Selector{Format: hal.YUYV})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !s.Descriptor().Equal(hd) {
		t.Errorf("Descriptor() = %v, want %v", s.Descriptor(), hd)
	}

	if _, err := m.Start("fake://0", Selector{}); !errors.Is(err, hal.ErrBusy) {
		t.Errorf("second Start() error = %v, want busy", err)
	}
	if _, err := m.Start("fake://missing", Selector{}); hal.Classify(err) != hal.KindIO {
		t.Errorf("Start(missing) error = %v, want io", err)
	}

	if got, ok := m.Get("fake://0"); !ok || got != s {
		t.Error("Get() did not return the running session")
	}
	if got := m.Addresses(); len(got) != 1 || got[0] != "fake://0" {
		t.Errorf("Addresses() = %v", got)
	}

	// Controls go through the streaming device.
	if _, err := m.SetControl("fake://0", 1, 42); err != nil {
		t.Fatalf("SetControl() error = %v", err)
	}
	mu.Lock()
	first := devices["fake://0"]
	mu.Unlock()
	if v, _ := first.Control(1); v.Int() != 42 {
		t.Errorf("control = %d, want 42", v.Int())
	}

	if err := m.Stop("fake://0"); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := m.Stop("fake://0"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("second Stop() error = %v, want ErrNotRunning", err)
	}
}

func TestManagerWithDeviceOpensTemporarily(t *testing.T) {
	dev := newFakeDevice(0)
	m := NewManager(func(string) (hal.Device, error) { return dev, nil }, Options{})

	var got hal.Value
	err := m.WithDevice("fake://0", func(d hal.Device) error {
		var err error
		got, err = d.Control(1)
		return err
	})
	if err != nil {
		t.Fatalf("WithDevice() error = %v", err)
	}
	if got.Int() != 10 {
		t.Errorf("control = %d, want 10", got.Int())
	}
	if dev.closeCount() != 1 {
		t.Errorf("temporary device closed %d times, want 1", dev.closeCount())
	}
}

func TestManagerControlMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	cm := metrics.NewCapture(reg)
	m := NewManager(func(string) (hal.Device, error) { return newFakeDevice(0), nil }, Options{Metrics: cm})

	_, _ = m.SetControl("fake://0", 1, 1)
	_, _ = m.SetControl("fake://0", 99, 1)
	_, _ = m.SetControl("fake://0", 1, 300)

	if v := gathered(t, reg, "camhal_control_writes_total", "fake://0", "ok"); v != 1 {
		t.Errorf("ok writes = %v, want 1", v)
	}
	if v := gathered(t, reg, "camhal_control_writes_total", "fake://0", "unsupported"); v != 2 {
		t.Errorf("unsupported writes = %v, want 2", v)
	}
}

func TestManagerHotplugRestart(t *testing.T) {
	var mu sync.Mutex
	opened := 0
	m := NewManager(func(string) (hal.Device, error) {
		mu.Lock()
		opened++
		mu.Unlock()
		return newFakeDevice(0), nil
	}, Options{})
	defer m.StopAll()

	if _, err := m.Start("fake://0", Selector{Width: 640}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m.HandleHotplug(camera.Event{Action: camera.Removed, Address: "fake://0"})
	if _, ok := m.Get("fake://0"); ok {
		t.Fatal("session survived removal")
	}

	// Unknown addresses are ignored.
	m.HandleHotplug(camera.Event{Action: camera.Added, Address: "fake://1"})

	m.HandleHotplug(camera.Event{Action: camera.Added, Address: "fake://0"})
	s, ok := m.Get("fake://0")
	if !ok {
		t.Fatal("session not restarted")
	}
	if s.Descriptor().Width != 640 {
		t.Errorf("restarted with %v, want the remembered selector", s.Descriptor())
	}

	mu.Lock()
	defer mu.Unlock()
	if opened != 2 {
		t.Errorf("opened %d times, want 2", opened)
	}
}
