//go:build linux

// Package hotplug watches kernel uevents over netlink so callers can react
// to cameras appearing and disappearing without cgo or udev.
package hotplug

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Actions a camera watcher cares about.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
	ActionBind   = "bind"
	ActionUnbind = "unbind"
)

// Subsystems carrying capture devices.
const (
	SubsystemVideo4Linux = "video4linux"
	SubsystemUSB         = "usb"
)

// DevTypeUSBDevice marks the whole-device uevent of a USB device, as
// opposed to its interfaces.
const DevTypeUSBDevice = "usb_device"

// netlinkKobjectUEvent is the netlink protocol for kernel object events.
const netlinkKobjectUEvent = 15

// pollInterval bounds how long Run waits before rechecking its context.
const pollInterval = 500 * time.Millisecond

// Event is one parsed kernel uevent.
type Event struct {
	Action    string
	KObj      string // /devices/... path
	Subsystem string
	DevType   string
	DevName   string // relative to /dev, e.g. video0 or bus/usb/001/004
	Env       map[string]string
}

// Node returns the /dev path of the event's device node, or "" when the
// event has none.
func (e Event) Node() string {
	if e.DevName == "" {
		return ""
	}
	return "/dev/" + e.DevName
}

// USBAddress returns the bus number and device address of a USB device
// event.
func (e Event) USBAddress() (bus, addr uint8, ok bool) {
	if e.Subsystem != SubsystemUSB || e.DevType != DevTypeUSBDevice {
		return 0, 0, false
	}
	b, err := strconv.ParseUint(e.Env["BUSNUM"], 10, 8)
	if err != nil {
		return 0, 0, false
	}
	a, err := strconv.ParseUint(e.Env["DEVNUM"], 10, 8)
	if err != nil {
		return 0, 0, false
	}
	return uint8(b), uint8(a), true
}

// Monitor receives kernel uevents for a fixed set of subsystems.
type Monitor struct {
	fd         int
	subsystems map[string]struct{}
}

// NewMonitor binds a netlink socket to the kernel broadcast group. With no
// subsystems every event is delivered.
func NewMonitor(subsystems ...string) (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, netlinkKobjectUEvent)
	if err != nil {
		return nil, fmt.Errorf("netlink socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1}); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("netlink bind: %w", err)
	}

	m := &Monitor{fd: fd, subsystems: make(map[string]struct{}, len(subsystems))}
	for _, s := range subsystems {
		m.subsystems[s] = struct{}{}
	}
	return m, nil
}

// Close releases the socket.
func (m *Monitor) Close() error {
	return unix.Close(m.fd)
}

func (m *Monitor) accepts(e *Event) bool {
	if len(m.subsystems) == 0 {
		return true
	}
	_, ok := m.subsystems[e.Subsystem]
	return ok
}

// Run delivers events until ctx is cancelled or the socket fails. The
// events channel is closed when Run returns.
func (m *Monitor) Run(ctx context.Context, events chan<- Event) error {
	defer close(events)

	buf := make([]byte, 8192)
	fds := []unix.PollFd{{Fd: int32(m.fd), Events: unix.POLLIN}}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := unix.Poll(fds, int(pollInterval/time.Millisecond))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("poll netlink: %w", err)
		}
		if n == 0 {
			continue
		}

		n, _, err = unix.Recvfrom(m.fd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			// Bursts larger than the socket buffer drop events; keep going.
			if errors.Is(err, unix.ENOBUFS) {
				continue
			}
			return fmt.Errorf("recv netlink: %w", err)
		}

		event := ParseUEvent(buf[:n])
		if event == nil || !m.accepts(event) {
			continue
		}

		select {
		case events <- *event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ParseUEvent parses a kernel uevent message of the form
// "ACTION@KOBJ\0KEY=VALUE\0...". It returns nil for anything else.
func ParseUEvent(data []byte) *Event {
	parts := bytes.Split(data, []byte{0})
	if len(parts) == 0 || len(parts[0]) == 0 {
		return nil
	}

	header := string(parts[0])
	at := strings.IndexByte(header, '@')
	if at < 1 {
		return nil
	}

	event := &Event{
		Action: header[:at],
		KObj:   header[at+1:],
		Env:    make(map[string]string),
	}

	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(string(part), "=")
		if !ok || key == "" {
			continue
		}
		event.Env[key] = value

		switch key {
		case "SUBSYSTEM":
			event.Subsystem = value
		case "DEVTYPE":
			event.DevType = value
		case "DEVNAME":
			event.DevName = value
		}
	}

	return event
}
