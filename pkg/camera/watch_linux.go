//go:build linux

package camera

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/smazurov/camhal/pkg/hal"
	"github.com/smazurov/camhal/pkg/linuxav/hotplug"
	v4l2dev "github.com/smazurov/camhal/pkg/linuxav/v4l2"
)

// uvcInterfacePrefix matches the INTERFACE uevent key of a video control
// interface: class 14, subclass 1.
const uvcInterfacePrefix = "14/1/"

const devTypeUSBInterface = "usb_interface"

// Watch calls fn for every capture device that appears or disappears until
// ctx is cancelled. Devices present when Watch starts are not reported as
// added. fn runs on the calling goroutine.
func Watch(ctx context.Context, fn func(Event)) error {
	mon, err := hotplug.NewMonitor(hotplug.SubsystemVideo4Linux, hotplug.SubsystemUSB)
	if err != nil {
		return hal.IOError("hotplug monitor", err)
	}
	defer mon.Close()

	t := newTranslator(isCaptureNode)
	if current, err := Devices(); err == nil {
		t.seed(current)
	}

	events := make(chan hotplug.Event, 16)
	done := make(chan error, 1)
	go func() { done <- mon.Run(ctx, events) }()

	for ev := range events {
		for _, e := range t.translate(ev) {
			fn(e)
		}
	}

	err = <-done
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return hal.IOError("hotplug monitor", err)
}

func isCaptureNode(node string) bool {
	dev, err := v4l2dev.Open(node)
	if err != nil {
		return false
	}
	defer dev.Close()
	caps, err := dev.Capability()
	return err == nil && caps.CanCapture()
}

// translator turns raw uevents into address events. USB devices are only
// announced once one of their interfaces turns out to be a video control
// interface, which arrives in a separate uevent after the device itself.
type translator struct {
	captureNode func(node string) bool
	usbDevices  map[string]string // kobj -> uvc address
	live        map[string]bool
}

func newTranslator(captureNode func(string) bool) *translator {
	return &translator{
		captureNode: captureNode,
		usbDevices:  make(map[string]string),
		live:        make(map[string]bool),
	}
}

func (t *translator) seed(current []Info) {
	for _, info := range current {
		t.live[info.Address] = true
	}
}

func (t *translator) translate(ev hotplug.Event) []Event {
	switch ev.Subsystem {
	case hotplug.SubsystemVideo4Linux:
		if _, ok := lookup(SchemeV4L); !ok {
			return nil
		}
		return t.video(ev)
	case hotplug.SubsystemUSB:
		if _, ok := lookup(SchemeUVC); !ok {
			return nil
		}
		return t.usb(ev)
	}
	return nil
}

func (t *translator) video(ev hotplug.Event) []Event {
	node := ev.Node()
	if node == "" {
		return nil
	}
	address := SchemeV4L + "://" + node
	switch ev.Action {
	case hotplug.ActionAdd:
		if t.live[address] || !t.captureNode(node) {
			return nil
		}
		t.live[address] = true
		return []Event{{Action: Added, Address: address}}
	case hotplug.ActionRemove:
		if !t.live[address] {
			return nil
		}
		delete(t.live, address)
		return []Event{{Action: Removed, Address: address}}
	}
	return nil
}

func (t *translator) usb(ev hotplug.Event) []Event {
	switch {
	case ev.DevType == hotplug.DevTypeUSBDevice:
		bus, addr, ok := ev.USBAddress()
		if !ok {
			return nil
		}
		address := usbAddress(bus, addr)
		switch ev.Action {
		case hotplug.ActionAdd:
			t.usbDevices[ev.KObj] = address
		case hotplug.ActionRemove:
			delete(t.usbDevices, ev.KObj)
			if t.live[address] {
				delete(t.live, address)
				return []Event{{Action: Removed, Address: address}}
			}
		}
	case ev.DevType == devTypeUSBInterface && ev.Action == hotplug.ActionAdd:
		if !strings.HasPrefix(ev.Env["INTERFACE"], uvcInterfacePrefix) {
			return nil
		}
		address, ok := t.usbDevices[path.Dir(ev.KObj)]
		if !ok || t.live[address] {
			return nil
		}
		t.live[address] = true
		return []Event{{Action: Added, Address: address}}
	}
	return nil
}

func usbAddress(bus, addr uint8) string {
	return fmt.Sprintf("%s://%d:%d", SchemeUVC, bus, addr)
}
