package hal

import "fmt"

// FormatKind discriminates the PixelFormat variants.
type FormatKind uint8

// Format kinds.
const (
	FormatUncompressed FormatKind = iota + 1
	FormatCompressed
	FormatCustom
)

// Color is the pixel layout of an uncompressed format.
type Color uint8

// Uncompressed layouts.
const (
	ColorGray Color = iota + 1
	ColorDepth
	ColorRGB
	ColorRGBA
	ColorBGR
	ColorBGRA
	ColorYUYV
	ColorUYVY
	ColorNV12
	ColorYUV420
)

var colorNames = map[Color]string{
	ColorGray:   "Gray",
	ColorDepth:  "Depth",
	ColorRGB:    "RGB",
	ColorRGBA:   "RGBA",
	ColorBGR:    "BGR",
	ColorBGRA:   "BGRA",
	ColorYUYV:   "YUYV",
	ColorUYVY:   "UYVY",
	ColorNV12:   "NV12",
	ColorYUV420: "YUV420",
}

func (c Color) String() string {
	if name, ok := colorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Color(%d)", uint8(c))
}

// Codec is the encoding of a compressed format.
type Codec uint8

// Compressed encodings.
const (
	CodecJPEG Codec = iota + 1
	CodecH264
)

func (c Codec) String() string {
	switch c {
	case CodecJPEG:
		return "JPEG"
	case CodecH264:
		return "H264"
	default:
		return fmt.Sprintf("Codec(%d)", uint8(c))
	}
}

// PixelFormat is a backend-independent description of how a frame is
// encoded. The zero value is not a valid format.
//
// PixelFormat is comparable; two formats are equal when they describe the
// same variant with the same parameters.
type PixelFormat struct {
	kind  FormatKind
	color Color
	bits  uint32
	codec Codec
	tag   string
}

// Uncompressed returns a raw pixel format with the given layout and bits
// per pixel.
func Uncompressed(c Color, bits uint32) PixelFormat {
	return PixelFormat{kind: FormatUncompressed, color: c, bits: bits}
}

// Compressed returns an encoded format.
func Compressed(c Codec) PixelFormat {
	return PixelFormat{kind: FormatCompressed, codec: c}
}

// Custom returns an opaque format identified only by tag.
func Custom(tag string) PixelFormat {
	return PixelFormat{kind: FormatCustom, tag: tag}
}

// Common formats.
var (
	Gray8   = Uncompressed(ColorGray, 8)
	Gray16  = Uncompressed(ColorGray, 16)
	Depth16 = Uncompressed(ColorDepth, 16)
	RGB24   = Uncompressed(ColorRGB, 24)
	RGB32   = Uncompressed(ColorRGB, 32)
	RGBA32  = Uncompressed(ColorRGBA, 32)
	BGR24   = Uncompressed(ColorBGR, 24)
	BGR32   = Uncompressed(ColorBGR, 32)
	BGRA32  = Uncompressed(ColorBGRA, 32)
	YUYV    = Uncompressed(ColorYUYV, 16)
	UYVY    = Uncompressed(ColorUYVY, 16)
	NV12    = Uncompressed(ColorNV12, 12)
	YUV420  = Uncompressed(ColorYUV420, 12)
	JPEG    = Compressed(CodecJPEG)
	H264    = Compressed(CodecH264)
)

// Kind returns the variant of f.
func (f PixelFormat) Kind() FormatKind { return f.kind }

// Color returns the layout of an uncompressed format, or 0.
func (f PixelFormat) Color() Color { return f.color }

// Bits returns the bits per pixel of an uncompressed format, or 0.
func (f PixelFormat) Bits() uint32 { return f.bits }

// Codec returns the encoding of a compressed format, or 0.
func (f PixelFormat) Codec() Codec { return f.codec }

// Tag returns the opaque tag of a custom format, or "".
func (f PixelFormat) Tag() string { return f.tag }

// IsValid reports whether f is one of the three variants.
func (f PixelFormat) IsValid() bool {
	switch f.kind {
	case FormatUncompressed:
		return f.color != 0 && f.bits != 0
	case FormatCompressed:
		return f.codec != 0
	case FormatCustom:
		return true
	}
	return false
}

// FrameSize returns the byte size of a tightly packed width x height frame,
// or 0 when the size is not determined by the format.
func (f PixelFormat) FrameSize(width, height uint32) int {
	if f.kind != FormatUncompressed {
		return 0
	}
	return int(uint64(width) * uint64(height) * uint64(f.bits) / 8)
}

// Stride returns the byte length of one tightly packed row of the first
// plane, or 0 when the format does not determine it.
func (f PixelFormat) Stride(width uint32) int {
	if f.kind != FormatUncompressed {
		return 0
	}
	switch f.color {
	case ColorNV12, ColorYUV420:
		return int(width)
	}
	return int(uint64(width) * uint64(f.bits) / 8)
}

func (f PixelFormat) String() string {
	switch f.kind {
	case FormatUncompressed:
		return fmt.Sprintf("%s%d", f.color, f.bits)
	case FormatCompressed:
		return f.codec.String()
	case FormatCustom:
		return fmt.Sprintf("Custom(%q)", f.tag)
	default:
		return "Invalid"
	}
}
