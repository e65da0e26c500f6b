package hal

import (
	"slices"
	"strings"
)

// aliases maps the FourCCs people type on a command line to formats.
// Backend tables stay authoritative for what a device reports.
var aliases = map[string]PixelFormat{
	"GREY": Gray8,
	"Y800": Gray8,
	"Y16":  Gray16,
	"Z16":  Depth16,
	"RGB3": RGB24,
	"BGR3": BGR24,
	"XB24": RGB32,
	"XR24": BGR32,
	"AB24": RGBA32,
	"AR24": BGRA32,
	"YUYV": YUYV,
	"YUY2": YUYV,
	"UYVY": UYVY,
	"NV12": NV12,
	"YU12": YUV420,
	"I420": YUV420,
	"MJPG": JPEG,
	"H264": H264,
}

// named lists every format by its String form.
var named = []PixelFormat{
	Gray8, Gray16, Depth16, RGB24, RGB32, RGBA32, BGR24, BGR32, BGRA32,
	YUYV, UYVY, NV12, YUV420, JPEG, H264,
}

// ParsePixelFormat reads a format written either as its String form
// ("YUYV16", "JPEG") or as a common FourCC ("YUYV", "MJPG"), ignoring
// case. Any other text of at most four characters becomes a Custom format
// with the tag padded to four bytes; longer text is an input error.
func ParsePixelFormat(s string) (PixelFormat, error) {
	for _, f := range named {
		if strings.EqualFold(f.String(), s) {
			return f, nil
		}
	}
	key := strings.ToUpper(strings.TrimRight(s, " "))
	if f, ok := aliases[key]; ok {
		return f, nil
	}
	if s == "" || len(s) > 4 {
		return PixelFormat{}, InputError("unknown pixel format %q", s)
	}
	return Custom(FourCCFromString(s).String()), nil
}

// KnownFormats returns every format ParsePixelFormat accepts by name.
func KnownFormats() []PixelFormat {
	return slices.Clone(named)
}
