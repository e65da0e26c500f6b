//go:build linux

package uvc

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/smazurov/camhal/pkg/hal"
)

var errPayload = errors.New("camera flagged payload error")

// assembler rebuilds frames from UVC payloads. A frame ends on the EOF bit
// or when the frame ID toggles. Two buffers alternate: one is lent out as
// the last frame while the other collects the next.
type assembler struct {
	back     []byte
	front    []byte
	backErr  bool
	frontErr bool
	fid      int
	pending  bool
}

func newAssembler(capacity int) *assembler {
	return &assembler{
		back:  make([]byte, 0, capacity),
		front: make([]byte, 0, capacity),
		fid:   -1,
	}
}

// push consumes one payload and reports whether a frame completed. The
// completed frame is in front.
func (a *assembler) push(p []byte) bool {
	if len(p) < 2 {
		return false
	}
	hlen := int(p[0])
	if hlen < 2 || hlen > len(p) {
		return false
	}
	flags := p[1]
	fid := int(flags & payloadFID)

	done := false
	if a.fid >= 0 && fid != a.fid && len(a.back) > 0 {
		a.swap()
		done = true
	}
	a.fid = fid
	if flags&payloadERR != 0 {
		a.backErr = true
	}
	a.back = append(a.back, p[hlen:]...)

	if flags&payloadEOF != 0 && len(a.back) > 0 {
		if done {
			a.pending = true
		} else {
			a.swap()
			done = true
		}
	}
	return done
}

// takePending completes a frame whose EOF arrived together with the end
// of the previous one.
func (a *assembler) takePending() bool {
	if !a.pending {
		return false
	}
	a.pending = false
	a.swap()
	return true
}

func (a *assembler) swap() {
	a.front, a.back = a.back, a.front[:0]
	a.frontErr, a.backErr = a.backErr, false
}

// stream pulls payloads from the bulk endpoint.
type stream struct {
	handle   *Handle
	desc     hal.StreamDescriptor
	endpoint uint8
	iface    uint8
	timeout  time.Duration
	expected int // exact frame size for uncompressed formats, else 0
	chunk    []byte
	asm      *assembler

	mu      sync.Mutex
	seq     uint64
	done    bool
	stopped bool
	stopErr error
}

// Next reads payloads until a frame completes or the frame timeout runs
// out.
func (s *stream) Next() (hal.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return hal.Frame{}, false
	}
	if s.asm.takePending() {
		return s.frame(), true
	}

	deadline := time.Now().Add(s.timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return s.timedOut(), true
		}
		n, err := s.handle.usb.BulkTransfer(s.endpoint, s.chunk, remaining)
		if err != nil {
			switch {
			case errors.Is(err, unix.ENODEV), errors.Is(err, unix.ESHUTDOWN):
				s.handle.log.Warn("device disappeared, ending stream", "error", err)
				s.stopLocked()
				return hal.Frame{}, false
			case errors.Is(err, unix.ETIMEDOUT), errors.Is(err, os.ErrDeadlineExceeded):
				return s.timedOut(), true
			default:
				return hal.Frame{Err: hal.IOError("uvc bulk transfer", err)}, true
			}
		}
		if s.asm.push(s.chunk[:n]) {
			return s.frame(), true
		}
	}
}

func (s *stream) timedOut() hal.Frame {
	return hal.Frame{Err: fmt.Errorf("%s after %s: %w", s.handle.address, s.timeout, hal.ErrTimeout)}
}

func (s *stream) frame() hal.Frame {
	s.seq++
	data := s.asm.front
	if s.asm.frontErr {
		return hal.Frame{Err: hal.IOError("uvc payload", errPayload)}
	}
	if s.expected > 0 && len(data) != s.expected {
		return hal.Frame{Err: hal.IOError("uvc payload",
			fmt.Errorf("incomplete frame: %d of %d bytes", len(data), s.expected))}
	}
	img := hal.Borrow(data, s.desc.Width, s.desc.Height, s.desc.Format)
	img.Sequence = s.seq
	img.Timestamp = time.Now()
	return hal.Frame{Image: img}
}

// Close halts the endpoint and releases the streaming interface.
func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	if s.stopErr != nil {
		return hal.IOError("uvc stop stream", s.stopErr)
	}
	return nil
}

func (s *stream) stopLocked() {
	s.done = true
	if s.stopped {
		return
	}
	s.stopped = true
	err := s.handle.usb.ClearHalt(s.endpoint)
	if rerr := s.handle.usb.ReleaseInterface(s.iface); err == nil {
		err = rerr
	}
	if errors.Is(err, unix.ENODEV) {
		err = nil
	}
	s.stopErr = err
	s.handle.release(s)
	s.handle.log.Info("stream stopped", "mode", s.desc.String())
}
