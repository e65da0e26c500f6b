// Package imageconv turns captured frames into image.Image values and
// writes them out as PNG or JPEG files.
package imageconv

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/smazurov/camhal/pkg/hal"
)

// ToImage decodes a frame. JPEG payloads are decoded, raw layouts are
// repacked into the closest image type. H264 and custom formats fail with
// hal.ErrUnsupported.
func ToImage(img *hal.Image) (image.Image, error) {
	f := img.Format()
	if f.Kind() == hal.FormatCompressed && f.Codec() == hal.CodecJPEG {
		out, err := imaging.Decode(bytes.NewReader(img.Bytes()))
		if err != nil {
			return nil, fmt.Errorf("%w: decode jpeg: %v", hal.ErrInvalidInput, err)
		}
		return out, nil
	}
	if f.Kind() != hal.FormatUncompressed {
		return nil, fmt.Errorf("%w: cannot convert %s", hal.ErrUnsupported, f)
	}

	w, h := int(img.Width()), int(img.Height())
	data := img.Bytes()
	if need := f.FrameSize(img.Width(), img.Height()); len(data) < need {
		return nil, fmt.Errorf("%w: %s %dx%d needs %d bytes, got %d", hal.ErrInvalidInput, f, w, h, need, len(data))
	}
	rect := image.Rect(0, 0, w, h)

	switch {
	case f == hal.Gray8:
		out := image.NewGray(rect)
		copy(out.Pix, data)
		return out, nil

	case f == hal.Gray16 || f == hal.Depth16:
		// Samples are little-endian, image.Gray16 is big-endian.
		out := image.NewGray16(rect)
		for i := 0; i+1 < len(out.Pix); i += 2 {
			out.Pix[i], out.Pix[i+1] = data[i+1], data[i]
		}
		return out, nil

	case f == hal.RGB24, f == hal.BGR24, f == hal.RGB32, f == hal.BGR32, f == hal.RGBA32, f == hal.BGRA32:
		return packedRGB(data, rect, f), nil

	case f == hal.YUYV || f == hal.UYVY:
		return packed422(data, rect, f == hal.UYVY), nil

	case f == hal.NV12:
		out := image.NewYCbCr(rect, image.YCbCrSubsampleRatio420)
		if len(data) < w*h+2*len(out.Cb) {
			return nil, fmt.Errorf("%w: short %s frame", hal.ErrInvalidInput, f)
		}
		copy(out.Y, data[:w*h])
		uv := data[w*h:]
		for i := 0; i < len(out.Cb); i++ {
			out.Cb[i] = uv[2*i]
			out.Cr[i] = uv[2*i+1]
		}
		return out, nil

	case f == hal.YUV420:
		out := image.NewYCbCr(rect, image.YCbCrSubsampleRatio420)
		if len(data) < w*h+2*len(out.Cb) {
			return nil, fmt.Errorf("%w: short %s frame", hal.ErrInvalidInput, f)
		}
		n := copy(out.Y, data)
		n += copy(out.Cb, data[n:])
		copy(out.Cr, data[n:])
		return out, nil
	}
	return nil, fmt.Errorf("%w: cannot convert %s", hal.ErrUnsupported, f)
}

func packedRGB(data []byte, rect image.Rectangle, f hal.PixelFormat) *image.NRGBA {
	out := image.NewNRGBA(rect)
	step := int(f.Bits() / 8)
	bgr := f.Color() == hal.ColorBGR || f.Color() == hal.ColorBGRA
	alpha := f.Color() == hal.ColorRGBA || f.Color() == hal.ColorBGRA

	for src, dst := 0, 0; dst < len(out.Pix); src, dst = src+step, dst+4 {
		r, g, b := data[src], data[src+1], data[src+2]
		if bgr {
			r, b = b, r
		}
		a := uint8(0xff)
		if alpha {
			a = data[src+3]
		}
		out.Pix[dst], out.Pix[dst+1], out.Pix[dst+2], out.Pix[dst+3] = r, g, b, a
	}
	return out
}

// packed422 splits interleaved 4:2:2 data into planes. YUYV is Y0 U Y1 V,
// UYVY is U Y0 V Y1.
func packed422(data []byte, rect image.Rectangle, uyvy bool) *image.YCbCr {
	out := image.NewYCbCr(rect, image.YCbCrSubsampleRatio422)
	y0, u, y1, v := 0, 1, 2, 3
	if uyvy {
		y0, u, y1, v = 1, 0, 3, 2
	}
	w, h := rect.Dx(), rect.Dy()
	for row := 0; row < h; row++ {
		line := data[row*w*2:]
		for col := 0; col+1 < w; col += 2 {
			px := line[col*2:]
			out.Y[row*out.YStride+col] = px[y0]
			out.Y[row*out.YStride+col+1] = px[y1]
			out.Cb[row*out.CStride+col/2] = px[u]
			out.Cr[row*out.CStride+col/2] = px[v]
		}
	}
	return out
}

// Options controls how a frame is written.
type Options struct {
	// Width and Height bound the output size, keeping the aspect ratio.
	// Zero leaves the frame at its native size.
	Width, Height int
	// Quality is the JPEG quality, 1-100. Zero uses 90.
	Quality int
}

func (o Options) resize() bool { return o.Width > 0 || o.Height > 0 }

func (o Options) encodeOptions() []imaging.EncodeOption {
	q := o.Quality
	if q <= 0 || q > 100 {
		q = 90
	}
	return []imaging.EncodeOption{imaging.JPEGQuality(q)}
}

// Encode writes frame to w in the given format. A JPEG frame written as
// JPEG without resizing is copied through untouched.
func Encode(w io.Writer, frame *hal.Image, format imaging.Format, opts Options) error {
	if format == imaging.JPEG && frame.Format() == hal.JPEG && !opts.resize() {
		_, err := w.Write(frame.Bytes())
		return err
	}

	img, err := ToImage(frame)
	if err != nil {
		return err
	}
	if opts.resize() {
		img = imaging.Fit(img, bound(opts.Width, img.Bounds().Dx()), bound(opts.Height, img.Bounds().Dy()), imaging.Lanczos)
	}
	return imaging.Encode(w, img, format, opts.encodeOptions()...)
}

func bound(v, native int) int {
	if v <= 0 {
		return native
	}
	return v
}

// Save writes frame to path, picking the encoding from the extension.
func Save(frame *hal.Image, path string, opts Options) error {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", hal.ErrInvalidInput, filepath.Base(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, frame, format, opts); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
