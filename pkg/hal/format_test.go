package hal

import (
	"errors"
	"testing"
)

func testTable() *FormatTable {
	return NewFormatTable(
		FormatMapping{FourCCFromString("GREY"), Gray8},
		FormatMapping{FourCCFromString("RGB3"), RGB24},
		FormatMapping{FourCCFromString("MJPG"), JPEG},
	)
}

func TestFourCCPacking(t *testing.T) {
	tests := []struct {
		name string
		code string
		want uint32
	}{
		{"YUYV", "YUYV", 0x56595559},
		{"MJPG", "MJPG", 0x47504A4D},
		{"short code padded", "Y16", 0x20363159},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := FourCCFromString(tt.code)
			if got := c.Uint32(); got != tt.want {
				t.Errorf("FourCCFromString(%q).Uint32() = 0x%08X, want 0x%08X", tt.code, got, tt.want)
			}
			if back := FourCCFromUint32(tt.want); back != c {
				t.Errorf("FourCCFromUint32(0x%08X) = %q, want %q", tt.want, back, c)
			}
		})
	}
}

func TestFormatTableRoundTrip(t *testing.T) {
	table := testTable()
	for _, tag := range table.Tags() {
		got, err := table.ToNative(table.FromNative(tag))
		if err != nil {
			t.Errorf("ToNative(FromNative(%q)) error: %v", tag, err)
			continue
		}
		if got != tag {
			t.Errorf("ToNative(FromNative(%q)) = %q", tag, got)
		}
	}
}

func TestFromNativeIsTotal(t *testing.T) {
	table := testTable()
	inputs := []FourCC{
		{0, 0, 0, 0},
		{0xFF, 0xFF, 0xFF, 0xFF},
		FourCCFromString("ZZZZ"),
		FourCCFromString("YUYV"),
	}
	for _, in := range inputs {
		f := table.FromNative(in)
		if f.Kind() != FormatCustom {
			t.Errorf("FromNative(%q) kind = %v, want custom", in, f.Kind())
		}
		if f.Tag() != string(in[:]) {
			t.Errorf("FromNative(%q) tag = %q, want raw bytes", in, f.Tag())
		}
	}
}

func TestToNativeRejectsUnknown(t *testing.T) {
	table := testTable()
	for _, f := range []PixelFormat{Custom("GREY"), BGRA32, Gray16} {
		if _, err := table.ToNative(f); !errors.Is(err, ErrUnsupported) {
			t.Errorf("ToNative(%s) error = %v, want ErrUnsupported", f, err)
		}
	}
}

func TestNewFormatTableRejectsDuplicates(t *testing.T) {
	tests := []struct {
		name    string
		entries []FormatMapping
	}{
		{
			name: "duplicate tag",
			entries: []FormatMapping{
				{FourCCFromString("AR24"), BGRA32},
				{FourCCFromString("AR24"), RGB32},
			},
		},
		{
			name: "duplicate format",
			entries: []FormatMapping{
				{FourCCFromString("MJPG"), JPEG},
				{FourCCFromString("JPEG"), JPEG},
			},
		},
		{
			name:    "custom format",
			entries: []FormatMapping{{FourCCFromString("ABCD"), Custom("ABCD")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("NewFormatTable did not panic")
				}
			}()
			NewFormatTable(tt.entries...)
		})
	}
}

func TestPixelFormatEquality(t *testing.T) {
	if Uncompressed(ColorGray, 8) != Gray8 {
		t.Error("structurally equal formats compare unequal")
	}
	if Gray8 == Gray16 {
		t.Error("formats with different depth compare equal")
	}
	if Custom("ABCD") != Custom("ABCD") {
		t.Error("custom formats with the same tag compare unequal")
	}
	if (PixelFormat{}).IsValid() {
		t.Error("zero PixelFormat reported valid")
	}
}

func TestPixelFormatFrameSize(t *testing.T) {
	tests := []struct {
		format PixelFormat
		want   int
	}{
		{Gray8, 640 * 480},
		{RGB24, 640 * 480 * 3},
		{NV12, 640 * 480 * 3 / 2},
		{JPEG, 0},
		{Custom("XXXX"), 0},
	}
	for _, tt := range tests {
		if got := tt.format.FrameSize(640, 480); got != tt.want {
			t.Errorf("%s.FrameSize(640, 480) = %d, want %d", tt.format, got, tt.want)
		}
	}
}

func TestPixelFormatStride(t *testing.T) {
	tests := []struct {
		format PixelFormat
		want   int
	}{
		{Gray8, 640},
		{YUYV, 1280},
		{BGRA32, 2560},
		{NV12, 640},
		{YUV420, 640},
		{JPEG, 0},
		{Custom("XXXX"), 0},
	}
	for _, tt := range tests {
		if got := tt.format.Stride(640); got != tt.want {
			t.Errorf("%s.Stride(640) = %d, want %d", tt.format, got, tt.want)
		}
	}
}
