package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camhal/internal/events"
	"github.com/smazurov/camhal/internal/metrics"
	"github.com/smazurov/camhal/pkg/hal"
)

// Reasons a session ends.
const (
	ReasonStopped   = "stopped"
	ReasonExhausted = "exhausted"
)

// Options wires a session into the rest of the process. Every field is
// optional.
type Options struct {
	Bus     *events.Bus
	Metrics *metrics.Capture
	Logger  *slog.Logger
}

// Session owns a device and a stream on it, pulling frames on its own
// goroutine and keeping an owned copy of the latest one.
type Session struct {
	address string
	dev     hal.Device
	stream  *hal.ImageStream
	opts    Options
	logger  *slog.Logger

	mu      sync.Mutex
	latest  *hal.Image
	frames  uint64
	errors  uint64
	lastErr error
	notify  chan struct{}
	reason  string

	stopOnce sync.Once
	stopErr  error
	done     chan struct{}
}

// Start begins streaming desc on dev. The session takes ownership of dev
// and closes it on Stop.
func Start(address string, dev hal.Device, desc hal.StreamDescriptor, opts Options) (*Session, error) {
	stream, err := dev.StartStream(desc)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.With("component", "capture")
	}
	s := &Session{
		address: address,
		dev:     dev,
		stream:  stream,
		opts:    opts,
		logger:  logger.With("address", address),
		notify:  make(chan struct{}),
		done:    make(chan struct{}),
	}

	if opts.Metrics != nil {
		opts.Metrics.StreamStarted(address)
	}
	if opts.Bus != nil {
		negotiated := stream.Descriptor()
		opts.Bus.Publish(events.StreamStartedEvent{
			Address:   address,
			Format:    negotiated.Format.String(),
			Width:     negotiated.Width,
			Height:    negotiated.Height,
			FPS:       negotiated.FPS(),
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
	s.logger.Info("Capture session started", "mode", stream.Descriptor().String())

	go s.run()
	return s, nil
}

func (s *Session) run() {
	defer close(s.done)

	var src hal.Stream[hal.Frame] = s.stream
	if s.opts.Metrics != nil {
		src = s.opts.Metrics.Instrument(s.address, src)
	}

	for {
		f, ok := src.Next()
		if !ok {
			break
		}
		if f.Err != nil {
			s.failed(f.Err)
			continue
		}
		if f.Image == nil {
			continue
		}
		// The borrowed image dies on the next pull.
		owned := f.Image.ToOwned()

		s.mu.Lock()
		s.latest = owned
		s.frames++
		close(s.notify)
		s.notify = make(chan struct{})
		s.mu.Unlock()
	}

	s.mu.Lock()
	if s.reason == "" {
		s.reason = ReasonExhausted
	}
	reason, frames := s.reason, s.frames
	close(s.notify)
	s.mu.Unlock()

	if reason == ReasonExhausted {
		s.logger.Warn("Capture stream ended", "frames", frames)
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.StreamStopped(s.address)
	}
	if s.opts.Bus != nil {
		s.opts.Bus.Publish(events.StreamStoppedEvent{
			Address:   s.address,
			Frames:    frames,
			Reason:    reason,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}

func (s *Session) failed(err error) {
	s.mu.Lock()
	s.errors++
	s.lastErr = err
	s.mu.Unlock()

	s.logger.Debug("Frame pull failed", "error", err)
	if s.opts.Bus != nil {
		s.opts.Bus.Publish(events.CaptureErrorEvent{
			Address:   s.address,
			Kind:      hal.Classify(err).String(),
			Error:     err.Error(),
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}

// Address returns the address the session was opened with.
func (s *Session) Address() string { return s.address }

// Device returns the device the session streams from. Controls may be
// read and written on it while streaming.
func (s *Session) Device() hal.Device { return s.dev }

// Descriptor returns the negotiated mode.
func (s *Session) Descriptor() hal.StreamDescriptor { return s.stream.Descriptor() }

// Latest returns the most recent frame, or nil before the first one.
func (s *Session) Latest() *hal.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Stats is a point-in-time view of a session.
type Stats struct {
	Frames  uint64
	Errors  uint64
	LastErr error
	Running bool
}

// Stats returns frame and error counts.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Frames:  s.frames,
		Errors:  s.errors,
		LastErr: s.lastErr,
		Running: s.reason == "",
	}
}

// Next waits for a frame newer than the one current when it was called.
func (s *Session) Next(ctx context.Context) (*hal.Image, error) {
	s.mu.Lock()
	if s.reason != "" {
		s.mu.Unlock()
		return nil, hal.IOError("capture "+s.address, hal.ErrClosed)
	}
	wait := s.notify
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-wait:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reason != "" && s.latest == nil {
		return nil, hal.IOError("capture "+s.address, hal.ErrClosed)
	}
	return s.latest, nil
}

// Done is closed once the pulling goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stop ends the stream, waits for the goroutine and closes the device.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		if s.reason == "" {
			s.reason = ReasonStopped
		}
		s.mu.Unlock()

		err := s.stream.Close()
		<-s.done
		if cerr := s.dev.Close(); err == nil {
			err = cerr
		}
		s.stopErr = err
		s.logger.Info("Capture session stopped")
	})
	return s.stopErr
}
