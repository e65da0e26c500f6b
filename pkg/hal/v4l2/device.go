//go:build linux

// Package v4l2 implements hal.Device on top of Video4Linux2 capture nodes.
//
// Streaming uses a memory-mapped buffer ring. Frames are handed out as
// borrowed images aliasing the mapping; the buffer is requeued on the next
// pull, so at most one buffer is held by the caller at any time.
package v4l2

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camhal/pkg/hal"
	v4l2dev "github.com/smazurov/camhal/pkg/linuxav/v4l2"
)

// Default tuning.
const (
	DefaultBuffers      = 4
	DefaultFrameTimeout = 2 * time.Second
)

// Config tunes a Handle.
type Config struct {
	Buffers      uint32
	FrameTimeout time.Duration
	Logger       *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Buffers == 0 {
		c.Buffers = DefaultBuffers
	}
	if c.FrameTimeout <= 0 {
		c.FrameTimeout = DefaultFrameTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.With("component", "v4l2")
	}
	return c
}

// node is the subset of the kernel interface the backend drives.
type node interface {
	Capability() (v4l2dev.Capability, error)
	Formats() ([]v4l2dev.FormatInfo, error)
	Resolutions(pixelFormat uint32) ([]v4l2dev.Resolution, error)
	Framerates(pixelFormat, width, height uint32) ([]v4l2dev.Framerate, error)
	Controls() ([]v4l2dev.ControlInfo, error)
	GetControl(id uint32) (int32, error)
	SetControl(id uint32, value int32) error
	SetFormat(pixelFormat, width, height uint32) (v4l2dev.PixFormat, error)
	SetFramerate(rate v4l2dev.Framerate) (v4l2dev.Framerate, error)
	StartCapture(count uint32) (ring, error)
	Close() error
}

// ring is a started mmap capture.
type ring interface {
	Wait(timeout time.Duration) (bool, error)
	Dequeue() (v4l2dev.Buffer, error)
	Queue(index uint32) error
	Stop() error
}

type kernelNode struct {
	*v4l2dev.Device
}

func (n kernelNode) StartCapture(count uint32) (ring, error) {
	c, err := n.Device.StartCapture(count)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Handle is an open V4L2 capture node.
type Handle struct {
	path string
	node node
	cfg  Config
	log  *slog.Logger

	mu     sync.Mutex
	active *stream
	closed bool
}

var _ hal.Device = (*Handle)(nil)

// Open opens the capture node at path.
func Open(path string, cfg Config) (*Handle, error) {
	if path == "" {
		return nil, hal.InputError("empty device path")
	}
	dev, err := v4l2dev.Open(path)
	if err != nil {
		return nil, hal.IOError("v4l2 open", err)
	}
	h, err := newHandle(path, kernelNode{dev}, cfg)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	return h, nil
}

func newHandle(path string, n node, cfg Config) (*Handle, error) {
	cfg = cfg.withDefaults()
	caps, err := n.Capability()
	if err != nil {
		return nil, hal.IOError("v4l2 query capabilities", err)
	}
	if !caps.CanCapture() || !caps.CanStream() {
		return nil, fmt.Errorf("%w: %s is not a streaming capture node", hal.ErrUnsupported, path)
	}
	log := cfg.Logger.With("device", path)
	log.Debug("opened capture node", "driver", caps.Driver, "card", caps.Card, "bus", caps.BusInfo)
	return &Handle{path: path, node: n, cfg: cfg, log: log}, nil
}

// Path returns the device node path.
func (h *Handle) Path() string { return h.path }

func (h *Handle) checkOpen() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("%s: %w", h.path, hal.ErrClosed)
	}
	return nil
}

// QueryStreams enumerates every format, frame size and interval the node
// advertises, in driver order.
func (h *Handle) QueryStreams() ([]hal.StreamDescriptor, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	formats, err := h.node.Formats()
	if err != nil {
		return nil, hal.IOError("v4l2 enumerate formats", err)
	}

	var streams []hal.StreamDescriptor
	for _, f := range formats {
		format := Formats.FromNative(hal.FourCCFromUint32(f.PixelFormat))
		sizes, err := h.node.Resolutions(f.PixelFormat)
		if err != nil {
			return nil, hal.IOError("v4l2 enumerate frame sizes", err)
		}
		for _, size := range sizes {
			rates, err := h.node.Framerates(f.PixelFormat, size.Width, size.Height)
			if err != nil {
				return nil, hal.IOError("v4l2 enumerate frame intervals", err)
			}
			d := hal.StreamDescriptor{Width: size.Width, Height: size.Height, Format: format}
			for _, r := range rates {
				if iv := r.Interval(); iv > 0 {
					d.Intervals = append(d.Intervals, iv)
				}
			}
			streams = append(streams, d)
		}
	}
	return streams, nil
}

// QueryControls returns the node's user controls in driver order.
func (h *Handle) QueryControls() ([]hal.Control, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	infos, err := h.node.Controls()
	if err != nil {
		return nil, hal.IOError("v4l2 enumerate controls", err)
	}
	controls := make([]hal.Control, 0, len(infos))
	for _, info := range infos {
		if c, ok := control(info); ok {
			controls = append(controls, c)
		}
	}
	return controls, nil
}

// Control reads the current value of id. Buttons read as hal.None.
func (h *Handle) Control(id uint32) (hal.Value, error) {
	c, err := h.findControl(id)
	if err != nil {
		return hal.Value{}, err
	}
	if c.Kind == hal.ControlButton {
		return hal.None(), nil
	}
	if c.Flags&hal.FlagWriteOnly != 0 {
		return hal.Value{}, fmt.Errorf("%w: control %q is write-only", hal.ErrUnsupported, c.Name)
	}
	raw, err := h.node.GetControl(id)
	if err != nil {
		return hal.Value{}, hal.IOError("v4l2 get control", err)
	}
	return hal.ValueFor(c, int64(raw)), nil
}

// SetControl validates v against the control's range and writes it.
func (h *Handle) SetControl(id uint32, v hal.Value) error {
	c, err := h.findControl(id)
	if err != nil {
		return err
	}
	if err := c.Validate(v); err != nil {
		return err
	}
	if err := h.node.SetControl(id, rawValue(c, v)); err != nil {
		return hal.IOError("v4l2 set control", err)
	}
	h.log.Debug("control set", "control", c.Name, "value", v)
	return nil
}

func (h *Handle) findControl(id uint32) (hal.Control, error) {
	controls, err := h.QueryControls()
	if err != nil {
		return hal.Control{}, err
	}
	return hal.FindControl(controls, id)
}

// PreferredStream folds QueryStreams through prefer.
func (h *Handle) PreferredStream(prefer func(a, b hal.StreamDescriptor) hal.StreamDescriptor) (hal.StreamDescriptor, error) {
	return hal.PreferredStream(h.QueryStreams, prefer)
}

// StartStream negotiates desc and starts the buffer ring. The first
// interval of desc is requested. Only one stream may run per node.
func (h *Handle) StartStream(desc hal.StreamDescriptor) (*hal.ImageStream, error) {
	h.mu.Lock()
	err := h.idleLocked()
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}

	offered, err := h.QueryStreams()
	if err != nil {
		return nil, err
	}
	if _, err := hal.Match(offered, desc); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.idleLocked(); err != nil {
		return nil, err
	}

	pix, err := nativeFormat(desc.Format)
	if err != nil {
		return nil, err
	}
	got, err := h.node.SetFormat(pix, desc.Width, desc.Height)
	if err != nil {
		return nil, hal.IOError("v4l2 set format", err)
	}
	if got.PixelFormat != pix || got.Width != desc.Width || got.Height != desc.Height {
		return nil, fmt.Errorf("%w: driver adjusted %s to %dx%d %s", hal.ErrUnsupported,
			desc, got.Width, got.Height, v4l2dev.FormatFourCC(got.PixelFormat))
	}
	// Images are tightly packed; padded rows would skew every decoder.
	if want := desc.Format.Stride(desc.Width); want > 0 && got.BytesPerLine != 0 && int(got.BytesPerLine) != want {
		return nil, fmt.Errorf("%w: driver pads %s rows to %d bytes, want %d", hal.ErrUnsupported,
			desc, got.BytesPerLine, want)
	}

	negotiated := desc.Clone()
	if iv := desc.Interval(); iv > 0 {
		if _, err := h.node.SetFramerate(v4l2dev.FramerateFromInterval(iv)); err != nil {
			return nil, hal.IOError("v4l2 set frame interval", err)
		}
		negotiated, _ = desc.WithInterval(iv)
	}

	r, err := h.node.StartCapture(h.cfg.Buffers)
	if err != nil {
		return nil, hal.IOError("v4l2 start capture", err)
	}

	s := &stream{
		handle:  h,
		ring:    r,
		desc:    negotiated,
		timeout: h.cfg.FrameTimeout,
		held:    -1,
	}
	h.active = s
	h.log.Info("stream started", "mode", negotiated.String(), "sizeimage", got.SizeImage)
	return hal.NewImageStream(s, negotiated), nil
}

func (h *Handle) idleLocked() error {
	if h.closed {
		return fmt.Errorf("%s: %w", h.path, hal.ErrClosed)
	}
	if h.active != nil {
		return fmt.Errorf("%s: %w", h.path, hal.ErrBusy)
	}
	return nil
}

// release forgets s once it has stopped.
func (h *Handle) release(s *stream) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active == s {
		h.active = nil
	}
}

// Close stops the active stream, if any, and closes the node.
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
	if err := h.node.Close(); err != nil {
		return hal.IOError("v4l2 close", err)
	}
	h.log.Debug("closed capture node")
	return nil
}
