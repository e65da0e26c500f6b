//go:build linux && !nouvc

package camera

import (
	"fmt"

	"github.com/smazurov/camhal/pkg/hal"
	"github.com/smazurov/camhal/pkg/hal/uvc"
)

var uvcOpen = func(bus, addr uint8, conf uvc.Config) (hal.Device, error) {
	h, err := uvc.Open(bus, addr, conf)
	if err != nil {
		return nil, err
	}
	return h, nil
}

var uvcList = uvc.FindDevices

func init() {
	register(backend{
		scheme:   SchemeUVC,
		priority: priorityUVC,
		open:     openUVC,
		list:     listUVC,
	})
}

func openUVC(payload string, o options) (hal.Device, error) {
	bus, addr, err := uvc.ParseAddress(payload)
	if err != nil {
		return nil, err
	}
	return uvcOpen(bus, addr, uvc.Config{
		FrameTimeout: o.frameTimeout,
		Logger:       o.logger,
	})
}

func listUVC() ([]Info, error) {
	devices, err := uvcList()
	if err != nil {
		return nil, err
	}
	infos := make([]Info, 0, len(devices))
	for _, d := range devices {
		name := d.Product
		if name == "" {
			name = fmt.Sprintf("%s:%s", d.VendorID, d.ProductID)
		}
		infos = append(infos, Info{
			Address: d.Addr(),
			Name:    name,
			Backend: SchemeUVC,
			ID:      fmt.Sprintf("usb-%s:%s-%d-%d", d.VendorID, d.ProductID, d.Bus, d.Address),
		})
	}
	return infos, nil
}
