//go:build linux

package uvc

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/smazurov/camhal/pkg/hal"
)

// frameDesc is one VS_FRAME_* descriptor. Intervals are in 100ns units as
// on the wire.
type frameDesc struct {
	index        uint8
	width        uint16
	height       uint16
	maxFrameSize uint32
	intervals    []uint32
}

// formatDesc is one VS_FORMAT_* descriptor with the frames that follow it.
type formatDesc struct {
	index  uint8
	tag    hal.FourCC
	bits   uint8
	frames []frameDesc
}

// endpointDesc is a streaming endpoint found in some alternate setting.
type endpointDesc struct {
	address       uint8
	attributes    uint8
	maxPacketSize uint16
	altSetting    uint8
}

func (e endpointDesc) bulk() bool {
	return e.attributes&endpointTransferMask == endpointBulk
}

// controlIface is the VideoControl interface and the entities whose
// controls the backend exposes.
type controlIface struct {
	number         uint8
	uvcVersion     uint16
	cameraTerminal uint8
	terminalBits   uint32
	processingUnit uint8
	unitBits       uint32
}

// streamIface is the first VideoStreaming interface.
type streamIface struct {
	number    uint8
	endpoint  endpointDesc
	formats   []formatDesc
	endpoints []endpointDesc
}

// videoFunction is the video part of a configuration descriptor.
type videoFunction struct {
	control controlIface
	stream  streamIface
}

// parseConfig walks a raw configuration descriptor and extracts the video
// function. Only the first streaming interface is used.
func parseConfig(b []byte) (videoFunction, error) {
	var (
		vf         videoFunction
		haveVC     bool
		haveVS     bool
		curClass   uint8
		curSub     uint8
		curIface   uint8
		curAlt     uint8
		curFormat  = -1
		inVSStream bool
	)

	for off := 0; off+2 <= len(b); {
		n := int(b[off])
		if n < 2 || off+n > len(b) {
			return videoFunction{}, fmt.Errorf("%w: truncated descriptor at offset %d", hal.ErrIO, off)
		}
		d := b[off : off+n]
		off += n

		switch d[1] {
		case descInterface:
			if len(d) < 9 {
				continue
			}
			curIface, curAlt, curClass, curSub = d[2], d[3], d[5], d[6]
			inVSStream = false
			if curClass != ccVideo {
				continue
			}
			switch {
			case curSub == scVideoControl && !haveVC:
				haveVC = true
				vf.control.number = curIface
			case curSub == scVideoStreaming && !haveVS:
				haveVS = true
				vf.stream.number = curIface
				inVSStream = true
			case curSub == scVideoStreaming && haveVS && curIface == vf.stream.number:
				inVSStream = true
			}

		case descEndpoint:
			if !inVSStream || len(d) < 7 {
				continue
			}
			vf.stream.endpoints = append(vf.stream.endpoints, endpointDesc{
				address:       d[2],
				attributes:    d[3],
				maxPacketSize: binary.LittleEndian.Uint16(d[4:]) & 0x07ff,
				altSetting:    curAlt,
			})

		case descCSInterface:
			if curClass != ccVideo || len(d) < 3 {
				continue
			}
			if curSub == scVideoControl && curIface == vf.control.number {
				parseControlEntity(&vf.control, d)
				continue
			}
			if !inVSStream || curAlt != 0 {
				continue
			}
			switch d[2] {
			case vsFormatUncompressed, vsFormatFrameBased:
				if len(d) < 22 {
					continue
				}
				var tag hal.FourCC
				copy(tag[:], d[5:9])
				vf.stream.formats = append(vf.stream.formats, formatDesc{index: d[3], tag: tag, bits: d[21]})
				curFormat = len(vf.stream.formats) - 1
			case vsFormatMJPEG:
				if len(d) < 4 {
					continue
				}
				vf.stream.formats = append(vf.stream.formats, formatDesc{index: d[3], tag: hal.FourCCFromString("MJPG")})
				curFormat = len(vf.stream.formats) - 1
			case vsFrameUncompressed, vsFrameMJPEG, vsFrameFrameBased:
				if curFormat < 0 {
					continue
				}
				f, ok := parseFrame(d)
				if !ok {
					continue
				}
				vf.stream.formats[curFormat].frames = append(vf.stream.formats[curFormat].frames, f)
			}
		}
	}

	if !haveVC || !haveVS {
		return videoFunction{}, fmt.Errorf("%w: no video function in configuration", hal.ErrUnsupported)
	}
	if len(vf.stream.endpoints) == 0 {
		return videoFunction{}, fmt.Errorf("%w: streaming interface %d has no endpoint", hal.ErrUnsupported, vf.stream.number)
	}
	vf.stream.endpoint = vf.stream.endpoints[0]
	for _, e := range vf.stream.endpoints {
		if e.bulk() {
			vf.stream.endpoint = e
			break
		}
	}
	return vf, nil
}

func parseControlEntity(c *controlIface, d []byte) {
	switch d[2] {
	case vcHeader:
		if len(d) >= 5 {
			c.uvcVersion = binary.LittleEndian.Uint16(d[3:])
		}
	case vcInputTerminal:
		if len(d) < 15 || binary.LittleEndian.Uint16(d[4:]) != cameraTerminalType {
			return
		}
		c.cameraTerminal = d[3]
		c.terminalBits = bitmap(d[15:], int(d[14]))
	case vcProcessingUnit:
		if len(d) < 8 {
			return
		}
		c.processingUnit = d[3]
		c.unitBits = bitmap(d[8:], int(d[7]))
	}
}

// bitmap reads a little endian bmControls field of size bytes.
func bitmap(b []byte, size int) uint32 {
	var v uint32
	for i := 0; i < size && i < len(b) && i < 4; i++ {
		v |= uint32(b[i]) << (8 * i)
	}
	return v
}

// parseFrame decodes VS_FRAME_UNCOMPRESSED, VS_FRAME_MJPEG and
// VS_FRAME_FRAME_BASED. The latter lacks dwMaxVideoFrameBufferSize, which
// shifts the interval fields.
func parseFrame(d []byte) (frameDesc, bool) {
	typeOff := 25
	if d[2] == vsFrameFrameBased {
		typeOff = 21
	}
	if len(d) < 26 {
		return frameDesc{}, false
	}
	f := frameDesc{
		index:  d[3],
		width:  binary.LittleEndian.Uint16(d[5:]),
		height: binary.LittleEndian.Uint16(d[7:]),
	}
	if d[2] != vsFrameFrameBased {
		f.maxFrameSize = binary.LittleEndian.Uint32(d[17:])
	}

	count := int(d[typeOff])
	switch {
	case count == 0 && len(d) >= 38:
		// Continuous: min, max, step. Offer the two ends.
		lo := binary.LittleEndian.Uint32(d[26:])
		hi := binary.LittleEndian.Uint32(d[30:])
		f.intervals = append(f.intervals, lo)
		if hi != lo {
			f.intervals = append(f.intervals, hi)
		}
	case count > 0:
		for i := 0; i < count && 26+4*i+4 <= len(d); i++ {
			f.intervals = append(f.intervals, binary.LittleEndian.Uint32(d[26+4*i:]))
		}
	}
	return f, true
}

// interval converts a 100ns wire interval.
func interval(v uint32) time.Duration {
	return time.Duration(v) * 100 * time.Nanosecond
}

// wireInterval converts back to 100ns units.
func wireInterval(d time.Duration) uint32 {
	return uint32(d / (100 * time.Nanosecond))
}
