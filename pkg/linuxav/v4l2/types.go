//go:build linux

package v4l2

import "time"

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	DeviceID   string // Stable identifier (from /dev/v4l/by-id/ or synthetic)
	Driver     string
	BusInfo    string
	Caps       uint32
}

// Capability is the result of VIDIOC_QUERYCAP.
type Capability struct {
	Driver  string
	Card    string
	BusInfo string
	Version uint32
	Caps    uint32 // effective device capabilities
}

// CanCapture reports whether the node captures video.
func (c Capability) CanCapture() bool {
	return c.Caps&v4l2CapVideoCapture != 0
}

// CanStream reports whether the node supports streaming I/O.
func (c Capability) CanStream() bool {
	return c.Caps&v4l2CapStreaming != 0
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Compressed  bool
	Emulated    bool
}

// Resolution represents a supported video resolution.
type Resolution struct {
	Width  uint32
	Height uint32
}

// Framerate represents a frame interval as a fraction of seconds per frame.
type Framerate struct {
	Numerator   uint32
	Denominator uint32
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// Interval returns the frame interval as a duration.
func (f Framerate) Interval() time.Duration {
	if f.Denominator == 0 {
		return 0
	}
	return time.Duration(uint64(f.Numerator) * uint64(time.Second) / uint64(f.Denominator))
}

// FramerateFromInterval approximates d as a fraction with a microsecond
// denominator, reduced.
func FramerateFromInterval(d time.Duration) Framerate {
	if d <= 0 {
		return Framerate{}
	}
	num := uint64(d / time.Microsecond)
	den := uint64(1_000_000)
	g := gcd(num, den)
	return Framerate{Numerator: uint32(num / g), Denominator: uint32(den / g)}
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

// PixFormat is the negotiated single-planar capture format.
type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	BytesPerLine uint32
	SizeImage    uint32
}

// Control types.
const (
	CtrlTypeInteger     = 1
	CtrlTypeBoolean     = 2
	CtrlTypeMenu        = 3
	CtrlTypeButton      = 4
	CtrlTypeInteger64   = 5
	CtrlTypeCtrlClass   = 6
	CtrlTypeString      = 7
	CtrlTypeBitmask     = 8
	CtrlTypeIntegerMenu = 9
)

// Control flags.
const (
	CtrlFlagDisabled  = 0x0001
	CtrlFlagGrabbed   = 0x0002
	CtrlFlagReadOnly  = 0x0004
	CtrlFlagUpdate    = 0x0008
	CtrlFlagInactive  = 0x0010
	CtrlFlagSlider    = 0x0020
	CtrlFlagWriteOnly = 0x0040
)

// MenuEntry is one entry of a menu or integer-menu control.
type MenuEntry struct {
	Index uint32
	Name  string
	Value int64 // integer-menu controls only
}

// ControlInfo describes a control reported by VIDIOC_QUERYCTRL.
type ControlInfo struct {
	ID      uint32
	Type    uint32
	Name    string
	Minimum int32
	Maximum int32
	Step    int32
	Default int32
	Flags   uint32
	Menu    []MenuEntry
}

// Buffer is a dequeued capture buffer. Data aliases the mmap region and is
// only valid until the buffer is queued again.
type Buffer struct {
	Index     uint32
	Data      []byte
	Sequence  uint32
	Timestamp time.Duration // kernel monotonic clock
	Flags     uint32
}

// Corrupted reports whether the driver flagged the frame as damaged.
func (b Buffer) Corrupted() bool {
	return b.Flags&v4l2BufFlagError != 0
}

// Capability flags.
const (
	v4l2CapVideoCapture = 0x00000001
	v4l2CapStreaming    = 0x04000000
	v4l2CapTimePerFrame = 0x00001000
	v4l2CapDeviceCaps   = 0x80000000
)

// Format flags.
const (
	v4l2FmtFlagCompressed = 0x0001
	v4l2FmtFlagEmulated   = 0x0002
)

// Common pixel formats.
const (
	v4l2PixFmtYUYV  = 0x56595559 // 'YUYV'
	v4l2PixFmtMJPEG = 0x47504A4D // 'MJPG'
	v4l2PixFmtH264  = 0x34363248 // 'H264'
	v4l2PixFmtHEVC  = 0x43564548 // 'HEVC'
	v4l2PixFmtNV12  = 0x3231564E // 'NV12'
)

// Frame size types.
const (
	v4l2FrmsizeTypeDiscrete   = 1
	v4l2FrmsizeTypeContinuous = 2
	v4l2FrmsizeTypeStepwise   = 3
)

// Frame interval types.
const (
	v4l2FrmivalTypeDiscrete   = 1
	v4l2FrmivalTypeContinuous = 2
	v4l2FrmivalTypeStepwise   = 3
)

// Buffer handling.
const (
	v4l2BufTypeVideoCapture = 1
	v4l2MemoryMmap          = 1
	v4l2FieldNone           = 1
	v4l2BufFlagError        = 0x00000040
)

// Control enumeration.
const (
	v4l2CtrlFlagNextCtrl = 0x80000000
)
