//go:build linux

package v4l2

import (
	"github.com/smazurov/camhal/pkg/hal"
	v4l2dev "github.com/smazurov/camhal/pkg/linuxav/v4l2"
)

// control converts a queried V4L2 control. String, bitmask and other
// compound controls have no hal equivalent and are dropped.
func control(info v4l2dev.ControlInfo) (hal.Control, bool) {
	c := hal.Control{
		ID:      info.ID,
		Name:    info.Name,
		Min:     int64(info.Minimum),
		Max:     int64(info.Maximum),
		Step:    int64(info.Step),
		Default: int64(info.Default),
	}

	switch info.Type {
	case v4l2dev.CtrlTypeInteger, v4l2dev.CtrlTypeInteger64:
		c.Kind = hal.ControlInteger
	case v4l2dev.CtrlTypeBoolean:
		c.Kind = hal.ControlBoolean
	case v4l2dev.CtrlTypeMenu, v4l2dev.CtrlTypeIntegerMenu:
		c.Kind = hal.ControlMenu
		for _, e := range info.Menu {
			c.Menu = append(c.Menu, hal.MenuItem{Index: int64(e.Index), Name: e.Name})
		}
	case v4l2dev.CtrlTypeButton:
		c.Kind = hal.ControlButton
	default:
		return hal.Control{}, false
	}

	if info.Flags&v4l2dev.CtrlFlagReadOnly != 0 {
		c.Flags |= hal.FlagReadOnly
	}
	if info.Flags&v4l2dev.CtrlFlagWriteOnly != 0 {
		c.Flags |= hal.FlagWriteOnly
	}
	if info.Flags&v4l2dev.CtrlFlagInactive != 0 {
		c.Flags |= hal.FlagInactive
	}
	return c, true
}

// rawValue is the integer written with VIDIOC_S_CTRL. Buttons trigger on
// any write.
func rawValue(c hal.Control, v hal.Value) int32 {
	if c.Kind == hal.ControlButton {
		return 1
	}
	return int32(v.Int())
}
