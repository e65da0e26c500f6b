//go:build linux

package uvc

import (
	"encoding/binary"
	"fmt"

	"github.com/smazurov/camhal/pkg/hal"
)

// probe is the VS probe/commit control block.
type probe struct {
	hint           uint16
	formatIndex    uint8
	frameIndex     uint8
	frameInterval  uint32
	maxFrameSize   uint32
	maxPayloadSize uint32
}

// probeLen returns the control block length for a UVC release.
func probeLen(version uint16) int {
	switch {
	case version >= 0x0150:
		return 48
	case version >= 0x0110:
		return 34
	default:
		return 26
	}
}

func (p probe) marshal(size int) []byte {
	b := make([]byte, size)
	binary.LittleEndian.PutUint16(b[0:], p.hint)
	b[2] = p.formatIndex
	b[3] = p.frameIndex
	binary.LittleEndian.PutUint32(b[4:], p.frameInterval)
	binary.LittleEndian.PutUint32(b[18:], p.maxFrameSize)
	binary.LittleEndian.PutUint32(b[22:], p.maxPayloadSize)
	return b
}

func unmarshalProbe(b []byte) probe {
	return probe{
		hint:           binary.LittleEndian.Uint16(b[0:]),
		formatIndex:    b[2],
		frameIndex:     b[3],
		frameInterval:  binary.LittleEndian.Uint32(b[4:]),
		maxFrameSize:   binary.LittleEndian.Uint32(b[18:]),
		maxPayloadSize: binary.LittleEndian.Uint32(b[22:]),
	}
}

// negotiate runs SET_CUR probe, GET_CUR probe and SET_CUR commit. The
// camera may adjust sizes but must keep the requested format and frame.
func (h *Handle) negotiate(want probe) (probe, error) {
	size := probeLen(h.vf.control.uvcVersion)
	iface := uint16(h.vf.stream.number)

	if _, err := h.usb.ControlTransfer(reqTypeSet, reqSetCur, vsProbeControl<<8, iface,
		want.marshal(size), h.conf.ControlTimeout); err != nil {
		return probe{}, hal.IOError("uvc set probe", err)
	}

	b := make([]byte, size)
	n, err := h.usb.ControlTransfer(reqTypeGet, reqGetCur, vsProbeControl<<8, iface, b, h.conf.ControlTimeout)
	if err != nil {
		return probe{}, hal.IOError("uvc get probe", err)
	}
	if n < 26 {
		return probe{}, hal.IOError("uvc get probe", fmt.Errorf("short probe of %d bytes", n))
	}
	got := unmarshalProbe(b)
	if got.formatIndex != want.formatIndex || got.frameIndex != want.frameIndex {
		return probe{}, fmt.Errorf("%w: camera answered format %d frame %d to probe for format %d frame %d",
			hal.ErrUnsupported, got.formatIndex, got.frameIndex, want.formatIndex, want.frameIndex)
	}

	if _, err := h.usb.ControlTransfer(reqTypeSet, reqSetCur, vsCommitControl<<8, iface,
		b[:size], h.conf.ControlTimeout); err != nil {
		return probe{}, hal.IOError("uvc commit", err)
	}
	return got, nil
}
