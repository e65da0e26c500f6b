//go:build linux

package uvc

import "github.com/smazurov/camhal/pkg/hal"

// Formats maps the leading four bytes of UVC format GUIDs to semantic
// formats. MJPEG format descriptors carry no GUID and are tagged 'MJPG'.
var Formats = hal.NewFormatTable(
	hal.FormatMapping{Tag: hal.FourCCFromString("YUY2"), Format: hal.YUYV},
	hal.FormatMapping{Tag: hal.FourCCFromString("UYVY"), Format: hal.UYVY},
	hal.FormatMapping{Tag: hal.FourCCFromString("NV12"), Format: hal.NV12},
	hal.FormatMapping{Tag: hal.FourCCFromString("I420"), Format: hal.YUV420},
	hal.FormatMapping{Tag: hal.FourCCFromString("Y800"), Format: hal.Gray8},
	hal.FormatMapping{Tag: hal.FourCCFromString("Y16 "), Format: hal.Gray16},
	hal.FormatMapping{Tag: hal.FourCCFromString("MJPG"), Format: hal.JPEG},
	hal.FormatMapping{Tag: hal.FourCCFromString("H264"), Format: hal.H264},
)

// formatFor returns the descriptor advertising f.
func (s *streamIface) formatFor(f hal.PixelFormat) (formatDesc, bool) {
	for _, fd := range s.formats {
		if Formats.FromNative(fd.tag) == f {
			return fd, true
		}
	}
	return formatDesc{}, false
}

func (f formatDesc) frameFor(width, height uint32) (frameDesc, bool) {
	for _, fr := range f.frames {
		if uint32(fr.width) == width && uint32(fr.height) == height {
			return fr, true
		}
	}
	return frameDesc{}, false
}
