//go:build linux

package v4l2

import "unsafe"

// Structures whose layout is identical on every supported architecture.
var (
	_ [104]byte = [unsafe.Sizeof(v4l2Capability{})]byte{}
	_ [64]byte  = [unsafe.Sizeof(v4l2Fmtdesc{})]byte{}
	_ [44]byte  = [unsafe.Sizeof(v4l2Frmsizeenum{})]byte{}
	_ [52]byte  = [unsafe.Sizeof(v4l2Frmivalenum{})]byte{}
	_ [48]byte  = [unsafe.Sizeof(v4l2PixFormat{})]byte{}
	_ [20]byte  = [unsafe.Sizeof(v4l2Requestbuffers{})]byte{}
	_ [204]byte = [unsafe.Sizeof(v4l2Streamparm{})]byte{}
	_ [8]byte   = [unsafe.Sizeof(v4l2Control{})]byte{}
	_ [68]byte  = [unsafe.Sizeof(v4l2Queryctrl{})]byte{}
	_ [44]byte  = [unsafe.Sizeof(v4l2Querymenu{})]byte{}
)

const (
	vidiocQuerycap           = 0x80685600
	vidiocEnumFmt            = 0xc0405602
	vidiocReqbufs            = 0xc0145608
	vidiocStreamon           = 0x40045612
	vidiocStreamoff          = 0x40045613
	vidiocGParm              = 0xc0cc5615
	vidiocSParm              = 0xc0cc5616
	vidiocGCtrl              = 0xc008561b
	vidiocSCtrl              = 0xc008561c
	vidiocQueryctrl          = 0xc0445624
	vidiocQuerymenu          = 0xc02c5625
	vidiocEnumFramesizes     = 0xc02c564a
	vidiocEnumFrameintervals = 0xc034564b
)

type v4l2Capability struct {
	driver       [16]byte  // offset 0
	card         [32]byte  // offset 16
	busInfo      [32]byte  // offset 48
	version      uint32    // offset 80
	capabilities uint32    // offset 84
	deviceCaps   uint32    // offset 88
	reserved     [3]uint32 // offset 92
}

type v4l2Fmtdesc struct {
	index       uint32    // offset 0
	typ         uint32    // offset 4
	flags       uint32    // offset 8
	description [32]byte  // offset 12
	pixelformat uint32    // offset 44
	mbusCode    uint32    // offset 48
	reserved    [3]uint32 // offset 52
}

type v4l2Fract struct {
	numerator   uint32
	denominator uint32
}

type v4l2FrmsizeStepwise struct {
	minWidth   uint32
	maxWidth   uint32
	stepWidth  uint32
	minHeight  uint32
	maxHeight  uint32
	stepHeight uint32
}

type v4l2Frmsizeenum struct {
	index       uint32    // offset 0
	pixelFormat uint32    // offset 4
	typ         uint32    // offset 8
	u           [6]uint32 // offset 12, discrete or stepwise
	reserved    [2]uint32 // offset 36
}

func (f *v4l2Frmsizeenum) discrete() Resolution {
	return Resolution{Width: f.u[0], Height: f.u[1]}
}

func (f *v4l2Frmsizeenum) stepwise() v4l2FrmsizeStepwise {
	return v4l2FrmsizeStepwise{
		minWidth: f.u[0], maxWidth: f.u[1], stepWidth: f.u[2],
		minHeight: f.u[3], maxHeight: f.u[4], stepHeight: f.u[5],
	}
}

type v4l2Frmivalenum struct {
	index       uint32    // offset 0
	pixelFormat uint32    // offset 4
	width       uint32    // offset 8
	height      uint32    // offset 12
	typ         uint32    // offset 16
	u           [6]uint32 // offset 20, discrete or {min, max, step}
	reserved    [2]uint32 // offset 44
}

func (f *v4l2Frmivalenum) fract(i int) Framerate {
	return Framerate{Numerator: f.u[2*i], Denominator: f.u[2*i+1]}
}

type v4l2PixFormat struct {
	width        uint32
	height       uint32
	pixelformat  uint32
	field        uint32
	bytesperline uint32
	sizeimage    uint32
	colorspace   uint32
	priv         uint32
	flags        uint32
	ycbcrEnc     uint32
	quantization uint32
	xferFunc     uint32
}

type v4l2Requestbuffers struct {
	count        uint32
	typ          uint32
	memory       uint32
	capabilities uint32
	flags        uint32 // u8 flags plus reserved[3]
}

type v4l2Streamparm struct {
	typ          uint32    // offset 0
	capability   uint32    // offset 4, parm.capture
	capturemode  uint32    // offset 8
	timeperframe v4l2Fract // offset 12
	extendedmode uint32    // offset 20
	readbuffers  uint32    // offset 24
	reserved     [4]uint32 // offset 28
	_            [160]byte // remainder of the parm union
}

type v4l2Control struct {
	id    uint32
	value int32
}

type v4l2Queryctrl struct {
	id           uint32
	typ          uint32
	name         [32]byte
	minimum      int32
	maximum      int32
	step         int32
	defaultValue int32
	flags        uint32
	reserved     [2]uint32
}

// v4l2Querymenu is packed in the kernel; the name/value union sits at
// offset 8 with no padding.
type v4l2Querymenu struct {
	id       uint32
	index    uint32
	u        [32]byte
	reserved uint32
}

func (m *v4l2Querymenu) value() int64 {
	return int64(uint64(m.u[0]) | uint64(m.u[1])<<8 | uint64(m.u[2])<<16 | uint64(m.u[3])<<24 |
		uint64(m.u[4])<<32 | uint64(m.u[5])<<40 | uint64(m.u[6])<<48 | uint64(m.u[7])<<56)
}
