//go:build linux

package v4l2

import "github.com/smazurov/camhal/pkg/hal"

// Formats maps V4L2 pixel format codes to semantic formats. 'JPEG' is left
// out because 'MJPG' already claims hal.JPEG.
var Formats = hal.NewFormatTable(
	hal.FormatMapping{Tag: hal.FourCCFromString("GREY"), Format: hal.Gray8},
	hal.FormatMapping{Tag: hal.FourCCFromString("Y16 "), Format: hal.Gray16},
	hal.FormatMapping{Tag: hal.FourCCFromString("Z16 "), Format: hal.Depth16},
	hal.FormatMapping{Tag: hal.FourCCFromString("RGB3"), Format: hal.RGB24},
	hal.FormatMapping{Tag: hal.FourCCFromString("BGR3"), Format: hal.BGR24},
	hal.FormatMapping{Tag: hal.FourCCFromString("XB24"), Format: hal.RGB32},
	hal.FormatMapping{Tag: hal.FourCCFromString("XR24"), Format: hal.BGR32},
	hal.FormatMapping{Tag: hal.FourCCFromString("AB24"), Format: hal.RGBA32},
	hal.FormatMapping{Tag: hal.FourCCFromString("AR24"), Format: hal.BGRA32},
	hal.FormatMapping{Tag: hal.FourCCFromString("YUYV"), Format: hal.YUYV},
	hal.FormatMapping{Tag: hal.FourCCFromString("UYVY"), Format: hal.UYVY},
	hal.FormatMapping{Tag: hal.FourCCFromString("NV12"), Format: hal.NV12},
	hal.FormatMapping{Tag: hal.FourCCFromString("YU12"), Format: hal.YUV420},
	hal.FormatMapping{Tag: hal.FourCCFromString("MJPG"), Format: hal.JPEG},
	hal.FormatMapping{Tag: hal.FourCCFromString("H264"), Format: hal.H264},
)

// nativeFormat resolves the pixel format code to request from the driver.
// Custom formats are passed through verbatim; StartStream only gets here
// after matching them against what the device advertised.
func nativeFormat(f hal.PixelFormat) (uint32, error) {
	if f.Kind() == hal.FormatCustom && len(f.Tag()) == 4 {
		return hal.FourCCFromString(f.Tag()).Uint32(), nil
	}
	tag, err := Formats.ToNative(f)
	if err != nil {
		return 0, err
	}
	return tag.Uint32(), nil
}
