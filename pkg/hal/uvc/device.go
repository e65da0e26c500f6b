//go:build linux

package uvc

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camhal/pkg/hal"
)

// Default tuning.
const (
	DefaultFrameTimeout   = 2 * time.Second
	DefaultControlTimeout = time.Second
)

// Config tunes a Handle.
type Config struct {
	FrameTimeout   time.Duration
	ControlTimeout time.Duration
	Logger         *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.FrameTimeout <= 0 {
		c.FrameTimeout = DefaultFrameTimeout
	}
	if c.ControlTimeout <= 0 {
		c.ControlTimeout = DefaultControlTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.With("component", "uvc")
	}
	return c
}

// transport is the slice of a USB device handle the backend uses.
type transport interface {
	ControlTransfer(requestType, request uint8, value, index uint16, data []byte, timeout time.Duration) (int, error)
	BulkTransfer(endpoint uint8, data []byte, timeout time.Duration) (int, error)
	ClaimInterface(iface uint8) error
	ReleaseInterface(iface uint8) error
	SetAltSetting(iface, altSetting uint8) error
	ClearHalt(endpoint uint8) error
	DetachKernelDriver(iface uint8) error
	Close() error
}

// Handle is an open UVC camera.
type Handle struct {
	address string
	usb     transport
	vf      videoFunction
	conf    Config
	log     *slog.Logger

	mu     sync.Mutex
	active *stream
	closed bool
}

var _ hal.Device = (*Handle)(nil)

// newHandle parses the configuration descriptor and claims the control
// interface.
func newHandle(address string, t transport, rawConfig []byte, conf Config) (*Handle, error) {
	conf = conf.withDefaults()
	vf, err := parseConfig(rawConfig)
	if err != nil {
		return nil, err
	}

	log := conf.Logger.With("device", address)
	if err := t.DetachKernelDriver(vf.control.number); err != nil {
		log.Debug("no kernel driver detached from control interface", "error", err)
	}
	if err := t.ClaimInterface(vf.control.number); err != nil {
		return nil, hal.IOError("uvc claim control interface", err)
	}

	log.Debug("opened camera",
		"uvc", fmt.Sprintf("%x.%02x", vf.control.uvcVersion>>8, vf.control.uvcVersion&0xff),
		"formats", len(vf.stream.formats),
		"endpoint", fmt.Sprintf("0x%02x", vf.stream.endpoint.address),
		"bulk", vf.stream.endpoint.bulk())
	return &Handle{address: address, usb: t, vf: vf, conf: conf, log: log}, nil
}

// Address returns the uvc:// address the camera was opened with.
func (h *Handle) Address() string { return h.address }

func (h *Handle) checkOpen() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("%s: %w", h.address, hal.ErrClosed)
	}
	return nil
}

// QueryStreams lists every frame descriptor of the streaming interface.
func (h *Handle) QueryStreams() ([]hal.StreamDescriptor, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	var streams []hal.StreamDescriptor
	for _, f := range h.vf.stream.formats {
		format := Formats.FromNative(f.tag)
		for _, fr := range f.frames {
			d := hal.StreamDescriptor{Width: uint32(fr.width), Height: uint32(fr.height), Format: format}
			for _, iv := range fr.intervals {
				d.Intervals = append(d.Intervals, interval(iv))
			}
			streams = append(streams, d)
		}
	}
	return streams, nil
}

// QueryControls returns the supported controls in a fixed order. Controls
// the camera advertises but refuses to describe are skipped.
func (h *Handle) QueryControls() ([]hal.Control, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	var controls []hal.Control
	for _, def := range controlDefs {
		unit, ok := h.vf.control.unitID(def)
		if !ok {
			continue
		}
		c, err := h.describe(def, unit)
		if err != nil {
			h.log.Debug("skipping control", "control", def.name, "error", err)
			continue
		}
		controls = append(controls, c)
	}
	return controls, nil
}

func (h *Handle) lookup(id uint32) (controlDef, uint8, error) {
	if err := h.checkOpen(); err != nil {
		return controlDef{}, 0, err
	}
	def, ok := findDef(id)
	if !ok {
		return controlDef{}, 0, fmt.Errorf("%w: id 0x%04x", hal.ErrUnknownControl, id)
	}
	unit, ok := h.vf.control.unitID(def)
	if !ok {
		return controlDef{}, 0, fmt.Errorf("%w: %s not supported by camera", hal.ErrUnknownControl, def.name)
	}
	return def, unit, nil
}

// Control reads GET_CUR of id.
func (h *Handle) Control(id uint32) (hal.Value, error) {
	def, unit, err := h.lookup(id)
	if err != nil {
		return hal.Value{}, err
	}
	b := make([]byte, def.size)
	if err := h.controlGet(reqGetCur, def.selector(), unit, b); err != nil {
		return hal.Value{}, err
	}
	return hal.ValueFor(hal.Control{Kind: def.kind}, decode(def, b)), nil
}

// SetControl validates v against the camera's range and writes SET_CUR.
func (h *Handle) SetControl(id uint32, v hal.Value) error {
	def, unit, err := h.lookup(id)
	if err != nil {
		return err
	}
	c, err := h.describe(def, unit)
	if err != nil {
		return err
	}
	if err := c.Validate(v); err != nil {
		return err
	}
	if err := h.controlSet(def.selector(), unit, encode(def, v.Int())); err != nil {
		return err
	}
	h.log.Debug("control set", "control", def.name, "value", v)
	return nil
}

// PreferredStream folds QueryStreams through prefer.
func (h *Handle) PreferredStream(prefer func(a, b hal.StreamDescriptor) hal.StreamDescriptor) (hal.StreamDescriptor, error) {
	return hal.PreferredStream(h.QueryStreams, prefer)
}

// StartStream commits desc with the probe/commit handshake and starts
// reading the bulk endpoint. Isochronous cameras are not supported.
func (h *Handle) StartStream(desc hal.StreamDescriptor) (*hal.ImageStream, error) {
	offered, err := h.QueryStreams()
	if err != nil {
		return nil, err
	}
	if _, err := hal.Match(offered, desc); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, fmt.Errorf("%s: %w", h.address, hal.ErrClosed)
	}
	if h.active != nil {
		return nil, fmt.Errorf("%s: %w", h.address, hal.ErrBusy)
	}

	ep := h.vf.stream.endpoint
	if !ep.bulk() {
		return nil, fmt.Errorf("%w: isochronous endpoint 0x%02x", hal.ErrUnsupported, ep.address)
	}

	format, _ := h.vf.stream.formatFor(desc.Format)
	frame, _ := format.frameFor(desc.Width, desc.Height)

	negotiated := desc.Clone()
	want := probe{hint: 0x0001, formatIndex: format.index, frameIndex: frame.index}
	if iv := desc.Interval(); iv > 0 {
		want.frameInterval = wireInterval(iv)
		negotiated, _ = desc.WithInterval(iv)
	}

	iface := h.vf.stream.number
	if err := h.usb.DetachKernelDriver(iface); err != nil {
		h.log.Debug("no kernel driver detached from streaming interface", "error", err)
	}
	if err := h.usb.ClaimInterface(iface); err != nil {
		return nil, hal.IOError("uvc claim streaming interface", err)
	}

	got, err := h.negotiate(want)
	if err != nil {
		_ = h.usb.ReleaseInterface(iface)
		return nil, err
	}
	if err := h.usb.SetAltSetting(iface, ep.altSetting); err != nil {
		_ = h.usb.ReleaseInterface(iface)
		return nil, hal.IOError("uvc select alternate setting", err)
	}

	expected := 0
	if desc.Format.Kind() == hal.FormatUncompressed {
		expected = desc.Format.FrameSize(desc.Width, desc.Height)
	}
	capacity := int(got.maxFrameSize)
	if capacity < expected {
		capacity = expected
	}
	chunk := int(got.maxPayloadSize)
	if chunk <= 0 {
		chunk = 16 * 1024
	}

	s := &stream{
		handle:   h,
		desc:     negotiated,
		endpoint: ep.address,
		iface:    iface,
		timeout:  h.conf.FrameTimeout,
		expected: expected,
		chunk:    make([]byte, chunk),
		asm:      newAssembler(capacity),
	}
	h.active = s
	h.log.Info("stream started", "mode", negotiated.String(), "payload", chunk, "max_frame", got.maxFrameSize)
	return hal.NewImageStream(s, negotiated), nil
}

func (h *Handle) release(s *stream) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active == s {
		h.active = nil
	}
}

// Close stops the active stream and releases the camera.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	active := h.active
	h.mu.Unlock()

	if active != nil {
		_ = active.Close()
	}
	_ = h.usb.ReleaseInterface(h.vf.control.number)
	if err := h.usb.Close(); err != nil {
		return hal.IOError("uvc close", err)
	}
	h.log.Debug("closed camera")
	return nil
}
