// Package camera opens capture devices by address and hands them back as
// hal.Device, hiding which backend serves them.
//
// An address has the form scheme://payload:
//
//	v4l:///dev/video0   V4L2 capture node
//	uvc://1:4           USB video class device at bus 1, address 4
//
// The set of schemes is fixed at build time. The nov4l and nouvc build
// tags leave the matching backend out.
package camera

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/smazurov/camhal/pkg/hal"
)

// Info describes one device found by Devices.
type Info struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Backend string `json:"backend"`
	ID      string `json:"id,omitempty"`
}

type options struct {
	buffers      uint32
	frameTimeout time.Duration
	logger       *slog.Logger
}

// Option tunes Open.
type Option func(*options)

// WithBufferCount sets the size of the V4L2 mmap ring.
func WithBufferCount(n uint32) Option {
	return func(o *options) { o.buffers = n }
}

// WithFrameTimeout sets how long a single pull waits for a frame.
func WithFrameTimeout(d time.Duration) Option {
	return func(o *options) { o.frameTimeout = d }
}

// WithLogger sets the logger handed to the backend.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithAddress opens the device at address with default options.
func WithAddress(address string) (hal.Device, error) {
	return Open(address)
}

// Open parses address, picks the backend registered for its scheme and
// opens the device. A missing scheme or one that no compiled-in backend
// serves fails with hal.ErrNoBackend.
func Open(address string, opts ...Option) (hal.Device, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	scheme, payload, ok := strings.Cut(address, "://")
	if !ok {
		return nil, fmt.Errorf("%w: address %q has no scheme", hal.ErrNoBackend, address)
	}
	b, ok := lookup(scheme)
	if !ok {
		return nil, fmt.Errorf("%w: scheme %q", hal.ErrNoBackend, scheme)
	}

	dev, err := b.open(payload, o)
	if err != nil {
		return nil, err
	}
	logger(o).Debug("device opened", "address", address, "backend", b.scheme)
	return dev, nil
}

func logger(o options) *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.With("component", "camera")
}
