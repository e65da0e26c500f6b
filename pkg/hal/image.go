package hal

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Ownership tells whether an Image aliases backend memory.
type Ownership uint8

// Ownership states.
const (
	Owned Ownership = iota
	Borrowed
)

func (o Ownership) String() string {
	if o == Borrowed {
		return "borrowed"
	}
	return "owned"
}

// lease tracks pull generations of one stream. A borrowed image records the
// generation it was produced in and is stale once the stream moves on.
type lease struct {
	gen atomic.Uint64
}

// Image is a rectangular frame buffer tagged with its format.
//
// A borrowed image aliases a buffer owned by the stream that produced it and
// is only valid until the next pull on that stream. An owned image holds its
// own allocation and stays valid indefinitely.
type Image struct {
	Sequence  uint64    // backend frame counter, if known
	Timestamp time.Time // capture time, if known

	width     uint32
	height    uint32
	format    PixelFormat
	data      []byte
	ownership Ownership
	lease     *lease
	gen       uint64
}

// NewImage returns an owned image that takes ownership of data.
func NewImage(data []byte, width, height uint32, format PixelFormat) *Image {
	return &Image{width: width, height: height, format: format, data: data, ownership: Owned}
}

// Borrow returns an image aliasing data. Backends use it for buffers they
// reuse on the next pull.
func Borrow(data []byte, width, height uint32, format PixelFormat) *Image {
	return &Image{width: width, height: height, format: format, data: data, ownership: Borrowed}
}

// Width returns the frame width in pixels.
func (i *Image) Width() uint32 { return i.width }

// Height returns the frame height in pixels.
func (i *Image) Height() uint32 { return i.height }

// Format returns the pixel format of the data.
func (i *Image) Format() PixelFormat { return i.format }

// Ownership reports whether the image is borrowed or owned.
func (i *Image) Ownership() Ownership { return i.ownership }

// Len returns the payload size in bytes.
func (i *Image) Len() int { return len(i.data) }

// Valid reports whether the image may still be read. Owned images are
// always valid.
func (i *Image) Valid() bool {
	if i.ownership == Owned || i.lease == nil {
		return true
	}
	return i.lease.gen.Load() == i.gen
}

// Bytes returns the payload. For a borrowed image the slice must not be
// retained past the next pull.
func (i *Image) Bytes() []byte {
	i.assertValid()
	return i.data
}

// ToOwned returns an image that stays valid independently of the stream.
// Owned images are returned as is.
func (i *Image) ToOwned() *Image {
	if i.ownership == Owned {
		return i
	}
	i.assertValid()
	data := make([]byte, len(i.data))
	copy(data, i.data)
	return &Image{
		Sequence:  i.Sequence,
		Timestamp: i.Timestamp,
		width:     i.width,
		height:    i.height,
		format:    i.format,
		data:      data,
		ownership: Owned,
	}
}

// MutableBytes returns a writable payload, copying a borrowed buffer into a
// private allocation first. After the call the image is owned.
func (i *Image) MutableBytes() []byte {
	if i.ownership == Borrowed {
		i.assertValid()
		data := make([]byte, len(i.data))
		copy(data, i.data)
		i.data = data
		i.ownership = Owned
		i.lease = nil
	}
	return i.data
}

func (i *Image) String() string {
	return fmt.Sprintf("%dx%d %s %d bytes (%s)", i.width, i.height, i.format, len(i.data), i.ownership)
}

// attach binds a borrowed image to the generation of l. Images already bound
// to an inner stream keep that binding.
func (i *Image) attach(l *lease) {
	if i.ownership != Borrowed || i.lease != nil {
		return
	}
	i.lease = l
	i.gen = l.gen.Load()
}

func (i *Image) assertValid() {
	if debugAssertions && !i.Valid() {
		panic("hal: borrowed image used after the next pull on its stream")
	}
}
