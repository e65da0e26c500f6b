//go:build linux

package uvc

import (
	"encoding/binary"
	"fmt"

	"github.com/smazurov/camhal/pkg/hal"
)

// Control IDs are the owning entity in the high byte and the UVC control
// selector in the low byte.
const (
	entityTerminal = 0x01
	entityUnit     = 0x02
)

// Processing unit controls.
const (
	ControlBacklightCompensation = entityUnit<<8 | 0x01
	ControlBrightness            = entityUnit<<8 | 0x02
	ControlContrast              = entityUnit<<8 | 0x03
	ControlGain                  = entityUnit<<8 | 0x04
	ControlPowerLineFrequency    = entityUnit<<8 | 0x05
	ControlHue                   = entityUnit<<8 | 0x06
	ControlSaturation            = entityUnit<<8 | 0x07
	ControlSharpness             = entityUnit<<8 | 0x08
	ControlGamma                 = entityUnit<<8 | 0x09
	ControlWhiteBalance          = entityUnit<<8 | 0x0A
	ControlWhiteBalanceAuto      = entityUnit<<8 | 0x0B
	ControlHueAuto               = entityUnit<<8 | 0x10
)

// Camera terminal controls.
const (
	ControlAutoExposureMode     = entityTerminal<<8 | 0x02
	ControlAutoExposurePriority = entityTerminal<<8 | 0x03
	ControlExposureAbsolute     = entityTerminal<<8 | 0x04
	ControlFocusAbsolute        = entityTerminal<<8 | 0x06
	ControlFocusAuto            = entityTerminal<<8 | 0x08
	ControlZoomAbsolute         = entityTerminal<<8 | 0x0B
)

// controlDef describes how a control is laid out on the wire.
type controlDef struct {
	id     uint32
	name   string
	kind   hal.ControlKind
	bit    uint // bmControls bit advertising support
	size   int  // payload bytes
	signed bool // payload is two's complement
	menu   []hal.MenuItem
}

func (c controlDef) entity() uint8   { return uint8(c.id >> 8) }
func (c controlDef) selector() uint8 { return uint8(c.id) }

var powerLineMenu = []hal.MenuItem{
	{Index: 0, Name: "Disabled"},
	{Index: 1, Name: "50 Hz"},
	{Index: 2, Name: "60 Hz"},
}

// aeModes lists auto-exposure modes by their bit value; GET_RES reports
// which ones the camera supports.
var aeModes = []hal.MenuItem{
	{Index: 1, Name: "Manual Mode"},
	{Index: 2, Name: "Auto Mode"},
	{Index: 4, Name: "Shutter Priority Mode"},
	{Index: 8, Name: "Aperture Priority Mode"},
}

// controlDefs is the fixed order QueryControls reports in.
var controlDefs = []controlDef{
	{id: ControlBrightness, name: "Brightness", kind: hal.ControlInteger, bit: 0, size: 2, signed: true},
	{id: ControlContrast, name: "Contrast", kind: hal.ControlInteger, bit: 1, size: 2},
	{id: ControlHue, name: "Hue", kind: hal.ControlInteger, bit: 2, size: 2, signed: true},
	{id: ControlSaturation, name: "Saturation", kind: hal.ControlInteger, bit: 3, size: 2},
	{id: ControlSharpness, name: "Sharpness", kind: hal.ControlInteger, bit: 4, size: 2},
	{id: ControlGamma, name: "Gamma", kind: hal.ControlInteger, bit: 5, size: 2},
	{id: ControlWhiteBalance, name: "White Balance Temperature", kind: hal.ControlInteger, bit: 6, size: 2},
	{id: ControlBacklightCompensation, name: "Backlight Compensation", kind: hal.ControlInteger, bit: 8, size: 2},
	{id: ControlGain, name: "Gain", kind: hal.ControlInteger, bit: 9, size: 2},
	{id: ControlPowerLineFrequency, name: "Power Line Frequency", kind: hal.ControlMenu, bit: 10, size: 1, menu: powerLineMenu},
	{id: ControlHueAuto, name: "Hue, Auto", kind: hal.ControlBoolean, bit: 11, size: 1},
	{id: ControlWhiteBalanceAuto, name: "White Balance Temperature, Auto", kind: hal.ControlBoolean, bit: 12, size: 1},
	{id: ControlAutoExposureMode, name: "Auto Exposure", kind: hal.ControlMenu, bit: 1, size: 1, menu: aeModes},
	{id: ControlAutoExposurePriority, name: "Exposure, Dynamic Framerate", kind: hal.ControlBoolean, bit: 2, size: 1},
	{id: ControlExposureAbsolute, name: "Exposure Time, Absolute", kind: hal.ControlInteger, bit: 3, size: 4},
	{id: ControlFocusAbsolute, name: "Focus, Absolute", kind: hal.ControlInteger, bit: 5, size: 2},
	{id: ControlZoomAbsolute, name: "Zoom, Absolute", kind: hal.ControlInteger, bit: 9, size: 2},
	{id: ControlFocusAuto, name: "Focus, Auto", kind: hal.ControlBoolean, bit: 17, size: 1},
}

func findDef(id uint32) (controlDef, bool) {
	for _, d := range controlDefs {
		if d.id == id {
			return d, true
		}
	}
	return controlDef{}, false
}

// unitID returns the entity the control lives on and whether the camera
// advertises it.
func (c *controlIface) unitID(def controlDef) (uint8, bool) {
	switch def.entity() {
	case entityUnit:
		return c.processingUnit, c.processingUnit != 0 && c.unitBits&(1<<def.bit) != 0
	case entityTerminal:
		return c.cameraTerminal, c.cameraTerminal != 0 && c.terminalBits&(1<<def.bit) != 0
	}
	return 0, false
}

func decode(def controlDef, b []byte) int64 {
	switch def.size {
	case 1:
		if def.signed {
			return int64(int8(b[0]))
		}
		return int64(b[0])
	case 2:
		v := binary.LittleEndian.Uint16(b)
		if def.signed {
			return int64(int16(v))
		}
		return int64(v)
	default:
		v := binary.LittleEndian.Uint32(b)
		if def.signed {
			return int64(int32(v))
		}
		return int64(v)
	}
}

func encode(def controlDef, v int64) []byte {
	b := make([]byte, def.size)
	switch def.size {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	default:
		binary.LittleEndian.PutUint32(b, uint32(v))
	}
	return b
}

// describe builds the hal view of def from the camera's GET_* answers.
func (h *Handle) describe(def controlDef, unit uint8) (hal.Control, error) {
	get := func(req uint8) (int64, error) {
		b := make([]byte, def.size)
		if err := h.controlGet(req, def.selector(), unit, b); err != nil {
			return 0, err
		}
		return decode(def, b), nil
	}

	c := hal.Control{ID: def.id, Name: def.name, Kind: def.kind, Step: 1, Max: 1}

	info := make([]byte, 1)
	if err := h.controlGet(reqGetInfo, def.selector(), unit, info); err != nil {
		return hal.Control{}, err
	}
	if info[0]&0x02 == 0 {
		c.Flags |= hal.FlagReadOnly
	}
	if info[0]&0x01 == 0 {
		c.Flags |= hal.FlagWriteOnly
	}

	var err error
	switch def.kind {
	case hal.ControlInteger:
		if c.Min, err = get(reqGetMin); err != nil {
			return hal.Control{}, err
		}
		if c.Max, err = get(reqGetMax); err != nil {
			return hal.Control{}, err
		}
		if c.Step, err = get(reqGetRes); err != nil {
			return hal.Control{}, err
		}
	case hal.ControlMenu:
		c.Min, c.Step = 0, 1
		c.Menu = def.menu
		if def.id == ControlAutoExposureMode {
			// GET_RES is the bitmap of supported modes.
			supported, err := get(reqGetRes)
			if err != nil {
				return hal.Control{}, err
			}
			c.Menu = nil
			for _, m := range def.menu {
				if supported&m.Index != 0 {
					c.Menu = append(c.Menu, m)
				}
			}
		}
		if n := len(c.Menu); n > 0 {
			c.Min, c.Max = c.Menu[0].Index, c.Menu[n-1].Index
		}
	}

	if c.Default, err = get(reqGetDef); err != nil {
		return hal.Control{}, err
	}
	return c, nil
}

func (h *Handle) controlGet(req, selector, unit uint8, b []byte) error {
	n, err := h.usb.ControlTransfer(reqTypeGet, req, uint16(selector)<<8,
		uint16(unit)<<8|uint16(h.vf.control.number), b, h.conf.ControlTimeout)
	if err != nil {
		return hal.IOError(fmt.Sprintf("uvc request 0x%02x selector 0x%02x", req, selector), err)
	}
	if n < len(b) {
		return hal.IOError(fmt.Sprintf("uvc request 0x%02x selector 0x%02x", req, selector),
			fmt.Errorf("short read %d of %d bytes", n, len(b)))
	}
	return nil
}

func (h *Handle) controlSet(selector, unit uint8, b []byte) error {
	_, err := h.usb.ControlTransfer(reqTypeSet, reqSetCur, uint16(selector)<<8,
		uint16(unit)<<8|uint16(h.vf.control.number), b, h.conf.ControlTimeout)
	if err != nil {
		return hal.IOError(fmt.Sprintf("uvc SET_CUR selector 0x%02x", selector), err)
	}
	return nil
}
