//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/smazurov/camhal/pkg/hal"
)

var errCorruptFrame = errors.New("driver flagged frame as corrupted")

// stream feeds an ImageStream from the mmap ring.
type stream struct {
	handle  *Handle
	ring    ring
	desc    hal.StreamDescriptor
	timeout time.Duration

	mu      sync.Mutex
	held    int // index of the buffer lent out by the last pull, or -1
	done    bool
	stopped bool
	stopErr error
}

// Next requeues the buffer lent by the previous pull and waits for the
// next one. A vanished device ends the stream.
func (s *stream) Next() (hal.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return hal.Frame{}, false
	}

	if s.held >= 0 {
		idx := uint32(s.held)
		s.held = -1
		if err := s.ring.Queue(idx); err != nil {
			return s.fail("v4l2 queue buffer", err)
		}
	}

	ready, err := s.ring.Wait(s.timeout)
	if err != nil {
		return s.fail("v4l2 wait", err)
	}
	if !ready {
		return hal.Frame{Err: fmt.Errorf("%s after %s: %w", s.handle.path, s.timeout, hal.ErrTimeout)}, true
	}

	buf, err := s.ring.Dequeue()
	if err != nil {
		if errors.Is(err, syscall.EAGAIN) {
			return hal.Frame{Err: fmt.Errorf("%s: %w", s.handle.path, hal.ErrTimeout)}, true
		}
		return s.fail("v4l2 dequeue", err)
	}
	s.held = int(buf.Index)

	if buf.Corrupted() {
		return hal.Frame{Err: hal.IOError("v4l2 dequeue", errCorruptFrame)}, true
	}

	img := hal.Borrow(buf.Data, s.desc.Width, s.desc.Height, s.desc.Format)
	img.Sequence = uint64(buf.Sequence)
	img.Timestamp = wallClock(buf.Timestamp)
	return hal.Frame{Image: img}, true
}

// fail turns err into an error frame, or ends the stream when the device
// is gone.
func (s *stream) fail(op string, err error) (hal.Frame, bool) {
	if errors.Is(err, syscall.ENODEV) || errors.Is(err, syscall.ENXIO) {
		s.handle.log.Warn("device disappeared, ending stream", "error", err)
		s.stopLocked()
		return hal.Frame{}, false
	}
	return hal.Frame{Err: hal.IOError(op, err)}, true
}

// Close stops streaming and unmaps the ring. A pull in flight finishes
// first.
func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	if s.stopErr != nil {
		return hal.IOError("v4l2 stop capture", s.stopErr)
	}
	return nil
}

func (s *stream) stopLocked() {
	s.done = true
	if s.stopped {
		return
	}
	s.stopped = true
	s.stopErr = s.ring.Stop()
	s.handle.release(s)
	s.handle.log.Info("stream stopped", "mode", s.desc.String())
}

// wallClock converts a CLOCK_MONOTONIC buffer timestamp to wall time.
func wallClock(ts time.Duration) time.Time {
	now := time.Now()
	var mono unix.Timespec
	if ts <= 0 || unix.ClockGettime(unix.CLOCK_MONOTONIC, &mono) != nil {
		return now
	}
	age := time.Duration(mono.Nano()) - ts
	if age < 0 {
		return now
	}
	return now.Add(-age)
}
