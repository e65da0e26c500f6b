//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"
)

// Controls enumerates the device's user controls. Disabled controls and
// control-class headers are skipped.
func (d *Device) Controls() ([]ControlInfo, error) {
	var controls []ControlInfo

	id := uint32(v4l2CtrlFlagNextCtrl)
	for {
		q := v4l2Queryctrl{id: id}
		if err := xioctl(d.fd, vidiocQueryctrl, unsafe.Pointer(&q)); err != nil {
			if errors.Is(err, syscall.EINVAL) {
				break
			}
			if errors.Is(err, syscall.ENOTTY) {
				return []ControlInfo{}, nil
			}
			return nil, fmt.Errorf("VIDIOC_QUERYCTRL 0x%08x: %w", id, err)
		}
		id = q.id | v4l2CtrlFlagNextCtrl

		if q.flags&CtrlFlagDisabled != 0 || q.typ == CtrlTypeCtrlClass {
			continue
		}

		info := ControlInfo{
			ID:      q.id,
			Type:    q.typ,
			Name:    cstr(q.name[:]),
			Minimum: q.minimum,
			Maximum: q.maximum,
			Step:    q.step,
			Default: q.defaultValue,
			Flags:   q.flags,
		}
		if q.typ == CtrlTypeMenu || q.typ == CtrlTypeIntegerMenu {
			info.Menu = d.menu(&q)
		}
		controls = append(controls, info)
	}

	return controls, nil
}

// menu queries each index in the control's range; drivers leave holes for
// unsupported entries, which are skipped.
func (d *Device) menu(q *v4l2Queryctrl) []MenuEntry {
	var entries []MenuEntry
	for i := q.minimum; i <= q.maximum && i >= 0; i++ {
		m := v4l2Querymenu{id: q.id, index: uint32(i)}
		if err := xioctl(d.fd, vidiocQuerymenu, unsafe.Pointer(&m)); err != nil {
			continue
		}
		e := MenuEntry{Index: m.index}
		if q.typ == CtrlTypeIntegerMenu {
			e.Value = m.value()
			e.Name = fmt.Sprintf("%d", e.Value)
		} else {
			e.Name = cstr(m.u[:])
		}
		entries = append(entries, e)
	}
	return entries
}

// GetControl reads a control's current value.
func (d *Device) GetControl(id uint32) (int32, error) {
	c := v4l2Control{id: id}
	if err := xioctl(d.fd, vidiocGCtrl, unsafe.Pointer(&c)); err != nil {
		return 0, fmt.Errorf("VIDIOC_G_CTRL 0x%08x: %w", id, err)
	}
	return c.value, nil
}

// SetControl writes a control value.
func (d *Device) SetControl(id uint32, value int32) error {
	c := v4l2Control{id: id, value: value}
	if err := xioctl(d.fd, vidiocSCtrl, unsafe.Pointer(&c)); err != nil {
		return fmt.Errorf("VIDIOC_S_CTRL 0x%08x: %w", id, err)
	}
	return nil
}
