//go:build linux

package uvc

import (
	"encoding/binary"
	"fmt"
	"time"

	usb "github.com/kevmo314/go-usb"
	"golang.org/x/sys/unix"

	"github.com/smazurov/camhal/pkg/hal"
)

// usbfs owns the usbfs file descriptor behind a wrapped device handle.
// Closing the handle leaves the descriptor open, so it is closed here.
type usbfs struct {
	transport
	fd int
}

func (u *usbfs) Close() error {
	err := u.transport.Close()
	if cerr := unix.Close(u.fd); err == nil {
		err = cerr
	}
	return err
}

// DevicePath returns the usbfs node of a bus and device address.
func DevicePath(bus, addr uint8) string {
	return fmt.Sprintf("/dev/bus/usb/%03d/%03d", bus, addr)
}

// Open opens the camera at bus:addr through usbfs.
func Open(bus, addr uint8, conf Config) (*Handle, error) {
	path := DevicePath(bus, addr)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, hal.IOError("uvc open "+path, err)
	}
	dev, err := usb.WrapSysDevice(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, hal.IOError("uvc wrap "+path, err)
	}
	t := &usbfs{transport: dev, fd: fd}

	timeout := conf.ControlTimeout
	if timeout <= 0 {
		timeout = DefaultControlTimeout
	}
	raw, err := readConfigDescriptor(t, timeout)
	if err != nil {
		_ = t.Close()
		return nil, err
	}

	h, err := newHandle(fmt.Sprintf("uvc://%d:%d", bus, addr), t, raw, conf)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	return h, nil
}

// readConfigDescriptor fetches the active configuration descriptor: the
// 9 byte header first for wTotalLength, then the whole thing.
func readConfigDescriptor(t transport, timeout time.Duration) ([]byte, error) {
	const (
		reqTypeStandardIn = 0x80
		reqGetDescriptor  = 0x06
		configDescriptor  = 0x0200
	)
	header := make([]byte, 9)
	if _, err := t.ControlTransfer(reqTypeStandardIn, reqGetDescriptor, configDescriptor, 0, header, timeout); err != nil {
		return nil, hal.IOError("uvc read configuration descriptor", err)
	}
	total := int(binary.LittleEndian.Uint16(header[2:]))
	if total < len(header) {
		return nil, hal.IOError("uvc read configuration descriptor", fmt.Errorf("bad wTotalLength %d", total))
	}
	full := make([]byte, total)
	n, err := t.ControlTransfer(reqTypeStandardIn, reqGetDescriptor, configDescriptor, 0, full, timeout)
	if err != nil {
		return nil, hal.IOError("uvc read configuration descriptor", err)
	}
	return full[:n], nil
}
