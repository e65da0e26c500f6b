//go:build linux && !nov4l

package camera

import (
	"github.com/smazurov/camhal/pkg/hal"
	"github.com/smazurov/camhal/pkg/hal/v4l2"
	v4l2dev "github.com/smazurov/camhal/pkg/linuxav/v4l2"
)

var v4lOpen = func(path string, cfg v4l2.Config) (hal.Device, error) {
	h, err := v4l2.Open(path, cfg)
	if err != nil {
		return nil, err
	}
	return h, nil
}

var v4lList = v4l2dev.FindDevices

func init() {
	register(backend{
		scheme:   SchemeV4L,
		priority: priorityV4L,
		open:     openV4L,
		list:     listV4L,
	})
}

func openV4L(payload string, o options) (hal.Device, error) {
	if payload == "" {
		return nil, hal.InputError("v4l address has no device path")
	}
	return v4lOpen(payload, v4l2.Config{
		Buffers:      o.buffers,
		FrameTimeout: o.frameTimeout,
		Logger:       o.logger,
	})
}

func listV4L() ([]Info, error) {
	devices, err := v4lList()
	if err != nil {
		return nil, err
	}
	infos := make([]Info, 0, len(devices))
	for _, d := range devices {
		infos = append(infos, Info{
			Address: SchemeV4L + "://" + d.DevicePath,
			Name:    d.DeviceName,
			Backend: SchemeV4L,
			ID:      d.DeviceID,
		})
	}
	return infos, nil
}
