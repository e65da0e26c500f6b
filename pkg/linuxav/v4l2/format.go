//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"
)

// Formats returns all capture pixel formats the device advertises.
func (d *Device) Formats() ([]FormatInfo, error) {
	var formats []FormatInfo

	for i := uint32(0); ; i++ {
		fmtdesc := v4l2Fmtdesc{
			index: i,
			typ:   v4l2BufTypeVideoCapture,
		}
		if err := xioctl(d.fd, vidiocEnumFmt, unsafe.Pointer(&fmtdesc)); err != nil {
			if errors.Is(err, syscall.EINVAL) {
				break
			}
			return nil, fmt.Errorf("failed to enumerate format %d: %w", i, err)
		}

		formats = append(formats, FormatInfo{
			PixelFormat: fmtdesc.pixelformat,
			FormatName:  cstr(fmtdesc.description[:]),
			Compressed:  fmtdesc.flags&v4l2FmtFlagCompressed != 0,
			Emulated:    fmtdesc.flags&v4l2FmtFlagEmulated != 0,
		})
	}

	return formats, nil
}

// Resolutions returns the frame sizes supported for pixelFormat. Stepwise
// and continuous ranges are reduced to the common sizes they contain.
func (d *Device) Resolutions(pixelFormat uint32) ([]Resolution, error) {
	var resolutions []Resolution

	for i := uint32(0); ; i++ {
		frmsize := v4l2Frmsizeenum{
			index:       i,
			pixelFormat: pixelFormat,
		}
		if err := xioctl(d.fd, vidiocEnumFramesizes, unsafe.Pointer(&frmsize)); err != nil {
			if errors.Is(err, syscall.EINVAL) {
				break
			}
			if errors.Is(err, syscall.ENOTTY) {
				return []Resolution{}, nil
			}
			return nil, fmt.Errorf("failed to enumerate frame size %d: %w", i, err)
		}

		switch frmsize.typ {
		case v4l2FrmsizeTypeDiscrete:
			resolutions = append(resolutions, frmsize.discrete())
		case v4l2FrmsizeTypeContinuous, v4l2FrmsizeTypeStepwise:
			return append(resolutions, stepwiseResolutions(frmsize.stepwise())...), nil
		}
	}

	return resolutions, nil
}

// Framerates returns the frame intervals supported for a format and size.
// Stepwise and continuous ranges are reduced to the common rates inside them.
func (d *Device) Framerates(pixelFormat, width, height uint32) ([]Framerate, error) {
	var framerates []Framerate

	for i := uint32(0); ; i++ {
		frmival := v4l2Frmivalenum{
			index:       i,
			pixelFormat: pixelFormat,
			width:       width,
			height:      height,
		}
		if err := xioctl(d.fd, vidiocEnumFrameintervals, unsafe.Pointer(&frmival)); err != nil {
			if errors.Is(err, syscall.EINVAL) {
				break
			}
			if errors.Is(err, syscall.ENOTTY) {
				return []Framerate{}, nil
			}
			return nil, fmt.Errorf("failed to enumerate frame interval %d: %w", i, err)
		}

		switch frmival.typ {
		case v4l2FrmivalTypeDiscrete:
			framerates = append(framerates, frmival.fract(0))
		case v4l2FrmivalTypeContinuous, v4l2FrmivalTypeStepwise:
			return append(framerates, framerateRange(frmival.fract(0), frmival.fract(1))...), nil
		}
	}

	return framerates, nil
}

// Format returns the currently negotiated capture format.
func (d *Device) Format() (PixFormat, error) {
	f := v4l2Format{typ: v4l2BufTypeVideoCapture}
	if err := xioctl(d.fd, vidiocGFmt, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, fmt.Errorf("VIDIOC_G_FMT: %w", err)
	}
	return pixFormat(&f.pix), nil
}

// SetFormat negotiates a capture format. The driver may adjust the request;
// the returned value is what it accepted.
func (d *Device) SetFormat(pixelFormat, width, height uint32) (PixFormat, error) {
	f := v4l2Format{typ: v4l2BufTypeVideoCapture}
	f.pix.width = width
	f.pix.height = height
	f.pix.pixelformat = pixelFormat
	f.pix.field = v4l2FieldNone
	if err := xioctl(d.fd, vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, fmt.Errorf("VIDIOC_S_FMT: %w", err)
	}
	return pixFormat(&f.pix), nil
}

// SetFramerate requests a frame interval. Drivers without
// V4L2_CAP_TIMEPERFRAME keep their default and no error is returned.
func (d *Device) SetFramerate(rate Framerate) (Framerate, error) {
	parm := v4l2Streamparm{typ: v4l2BufTypeVideoCapture}
	if err := xioctl(d.fd, vidiocGParm, unsafe.Pointer(&parm)); err != nil {
		if errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) {
			return Framerate{}, nil
		}
		return Framerate{}, fmt.Errorf("VIDIOC_G_PARM: %w", err)
	}
	if parm.capability&v4l2CapTimePerFrame == 0 {
		return Framerate{Numerator: parm.timeperframe.numerator, Denominator: parm.timeperframe.denominator}, nil
	}

	parm.timeperframe = v4l2Fract{numerator: rate.Numerator, denominator: rate.Denominator}
	if err := xioctl(d.fd, vidiocSParm, unsafe.Pointer(&parm)); err != nil {
		return Framerate{}, fmt.Errorf("VIDIOC_S_PARM: %w", err)
	}
	return Framerate{Numerator: parm.timeperframe.numerator, Denominator: parm.timeperframe.denominator}, nil
}

func pixFormat(p *v4l2PixFormat) PixFormat {
	return PixFormat{
		Width:        p.width,
		Height:       p.height,
		PixelFormat:  p.pixelformat,
		BytesPerLine: p.bytesperline,
		SizeImage:    p.sizeimage,
	}
}

var commonResolutions = []Resolution{
	{320, 240},   // QVGA
	{640, 480},   // VGA
	{800, 600},   // SVGA
	{1024, 768},  // XGA
	{1280, 720},  // HD
	{1280, 960},  //
	{1280, 1024}, // SXGA
	{1920, 1080}, // Full HD
	{1920, 1200}, // WUXGA
	{2560, 1440}, // QHD
	{3840, 2160}, // 4K UHD
	{4096, 2160}, // 4K DCI
}

func stepwiseResolutions(s v4l2FrmsizeStepwise) []Resolution {
	var resolutions []Resolution
	for _, res := range commonResolutions {
		if res.Width < s.minWidth || res.Width > s.maxWidth ||
			res.Height < s.minHeight || res.Height > s.maxHeight {
			continue
		}
		if s.stepWidth > 1 && (res.Width-s.minWidth)%s.stepWidth != 0 {
			continue
		}
		if s.stepHeight > 1 && (res.Height-s.minHeight)%s.stepHeight != 0 {
			continue
		}
		resolutions = append(resolutions, res)
	}
	return resolutions
}

var commonFramerates = []Framerate{
	{1, 60},
	{1, 50},
	{1, 30},
	{1, 25},
	{1, 20},
	{1, 15},
	{1, 10},
	{1, 5},
}

// framerateRange keeps the common rates whose interval lies in [lo, hi].
func framerateRange(lo, hi Framerate) []Framerate {
	shortest, longest := lo.Interval(), hi.Interval()
	var rates []Framerate
	for _, r := range commonFramerates {
		iv := r.Interval()
		if (shortest == 0 || iv >= shortest) && (longest == 0 || iv <= longest) {
			rates = append(rates, r)
		}
	}
	return rates
}
