package hal

import (
	"io"
	"sync"
	"sync/atomic"
)

// Stream yields items one at a time. Next blocks until an item is ready.
// Once Next returns false the stream is exhausted and every later call also
// returns false.
type Stream[T any] interface {
	Next() (T, bool)
}

// StreamFunc adapts a function to the Stream interface.
type StreamFunc[T any] func() (T, bool)

// Next calls f.
func (f StreamFunc[T]) Next() (T, bool) { return f() }

// Map returns a stream that applies f to every item pulled from s. Items are
// transformed lazily on pull; nothing is buffered.
func Map[T, U any](s Stream[T], f func(T) U) Stream[U] {
	return &mapStream[T, U]{src: s, f: f}
}

type mapStream[T, U any] struct {
	src Stream[T]
	f   func(T) U
}

func (m *mapStream[T, U]) Next() (U, bool) {
	item, ok := m.src.Next()
	if !ok {
		var zero U
		return zero, false
	}
	return m.f(item), true
}

// Frame is one item of an ImageStream: an image, or the error that kept the
// backend from producing one. An error frame does not end the stream.
type Frame struct {
	Image *Image
	Err   error
}

// FrameSource is what a backend implements to feed an ImageStream. Next
// returns false once the backend resource is gone. Close releases it.
type FrameSource interface {
	Stream[Frame]
	Close() error
}

// ImageStream is a running capture session bound to one negotiated
// descriptor.
//
// The handle may be passed to another goroutine, but Next must not be
// called concurrently. Each pull invalidates the borrowed image returned by
// the previous one.
type ImageStream struct {
	src       FrameSource
	desc      StreamDescriptor
	lease     *lease
	exhausted atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewImageStream wraps a backend source with the descriptor it was started
// for.
func NewImageStream(src FrameSource, desc StreamDescriptor) *ImageStream {
	return &ImageStream{src: src, desc: desc.Clone(), lease: &lease{}}
}

// Descriptor returns the negotiated mode.
func (s *ImageStream) Descriptor() StreamDescriptor { return s.desc.Clone() }

// Format returns the pixel format of every produced image.
func (s *ImageStream) Format() PixelFormat { return s.desc.Format }

// Next pulls the next frame.
func (s *ImageStream) Next() (Frame, bool) {
	if s.exhausted.Load() {
		return Frame{}, false
	}
	s.lease.gen.Add(1)
	f, ok := s.src.Next()
	if !ok {
		s.exhausted.Store(true)
		return Frame{}, false
	}
	if f.Image != nil {
		f.Image.attach(s.lease)
	}
	return f, true
}

// NextImage pulls the next frame and returns io.EOF once the stream is
// exhausted.
func (s *ImageStream) NextImage() (*Image, error) {
	f, ok := s.Next()
	if !ok {
		return nil, io.EOF
	}
	return f.Image, f.Err
}

// Exhausted reports whether the stream has ended.
func (s *ImageStream) Exhausted() bool { return s.exhausted.Load() }

// Close stops the stream and releases the backend resources. It is safe to
// call more than once.
func (s *ImageStream) Close() error {
	s.closeOnce.Do(func() {
		s.exhausted.Store(true)
		s.lease.gen.Add(1)
		s.closeErr = s.src.Close()
	})
	return s.closeErr
}
