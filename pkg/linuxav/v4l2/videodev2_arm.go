//go:build linux && arm

package v4l2

import "unsafe"

// 32-bit ARM uses a 4-byte aligned format union and a 32-bit timeval.
var (
	_ [204]byte = [unsafe.Sizeof(v4l2Format{})]byte{}
	_ [68]byte  = [unsafe.Sizeof(v4l2Buffer{})]byte{}
)

const (
	vidiocGFmt     = 0xc0cc5604
	vidiocSFmt     = 0xc0cc5605
	vidiocQuerybuf = 0xc0445609
	vidiocQbuf     = 0xc044560f
	vidiocDqbuf    = 0xc0445611
)

type v4l2Format struct {
	typ uint32        // offset 0
	pix v4l2PixFormat // offset 4
	_   [152]byte     // remainder of the union
}

type v4l2Buffer struct {
	index     uint32   // offset 0
	typ       uint32   // offset 4
	bytesused uint32   // offset 8
	flags     uint32   // offset 12
	field     uint32   // offset 16
	tvSec     int32    // offset 20
	tvUsec    int32    // offset 24
	timecode  [16]byte // offset 28
	sequence  uint32   // offset 44
	memory    uint32   // offset 48
	offset    uint32   // offset 52, union m
	length    uint32   // offset 56
	reserved2 uint32   // offset 60
	requestFD int32    // offset 64
}

func (b *v4l2Buffer) mmapOffset() int64 {
	return int64(b.offset)
}
