//go:build linux

package v4l2

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unsafe"
)

// Device is an open V4L2 node.
type Device struct {
	path string
	fd   int

	mu     sync.Mutex
	closed bool
}

// Open opens a V4L2 node in non-blocking mode.
func Open(path string) (*Device, error) {
	fd, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Device{path: path, fd: fd}, nil
}

// Path returns the node path the device was opened with.
func (d *Device) Path() string { return d.path }

// Close releases the file descriptor. Closing twice is a no-op.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return close(d.fd)
}

// Capability queries VIDIOC_QUERYCAP.
func (d *Device) Capability() (Capability, error) {
	var c v4l2Capability
	if err := xioctl(d.fd, vidiocQuerycap, unsafe.Pointer(&c)); err != nil {
		return Capability{}, fmt.Errorf("VIDIOC_QUERYCAP: %w", err)
	}
	caps := c.capabilities
	if caps&v4l2CapDeviceCaps != 0 {
		caps = c.deviceCaps
	}
	return Capability{
		Driver:  cstr(c.driver[:]),
		Card:    cstr(c.card[:]),
		BusInfo: cstr(c.busInfo[:]),
		Version: c.version,
		Caps:    caps,
	}, nil
}

// FindDevices finds all V4L2 video capture devices on the system.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir("/sys/class/video4linux")
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	logger := slog.With("component", "v4l2")
	var devices []DeviceInfo

	for _, entry := range entries {
		devicePath := "/dev/" + entry.Name()

		dev, err := Open(devicePath)
		if err != nil {
			logger.Debug("failed to open video device", "path", devicePath, "error", err)
			continue
		}
		caps, err := dev.Capability()
		_ = dev.Close()
		if err != nil {
			logger.Debug("failed to query device capabilities", "path", devicePath, "error", err)
			continue
		}

		// Metadata nodes share the driver but cannot capture frames.
		if !caps.CanCapture() {
			continue
		}

		indexValue := readSysfsInt(filepath.Join("/sys/class/video4linux", entry.Name(), "index"))

		stableID := findStableID(entry.Name(), indexValue)
		if stableID == "" {
			if strings.HasPrefix(caps.BusInfo, "usb-") {
				stableID = fmt.Sprintf("%s-video-index%d", caps.BusInfo, indexValue)
			} else {
				stableID = fmt.Sprintf("platform-%s-video-index%d", caps.BusInfo, indexValue)
			}
		}

		devices = append(devices, DeviceInfo{
			DevicePath: devicePath,
			DeviceName: caps.Card,
			DeviceID:   stableID,
			Driver:     caps.Driver,
			BusInfo:    caps.BusInfo,
			Caps:       caps.Caps,
		})
	}

	return devices, nil
}

// findStableID looks for a stable ID symlink in /dev/v4l/by-id/
func findStableID(deviceName string, indexValue int) string {
	const byIDDir = "/dev/v4l/by-id"
	entries, err := os.ReadDir(byIDDir)
	if err != nil {
		return ""
	}

	expectedSuffix := fmt.Sprintf("-video-index%d", indexValue)

	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		target, err := os.Readlink(filepath.Join(byIDDir, entry.Name()))
		if err != nil {
			continue
		}
		if filepath.Base(target) == deviceName && strings.HasSuffix(entry.Name(), expectedSuffix) {
			return entry.Name()
		}
	}

	return ""
}

func readSysfsInt(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	val, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return val
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// FormatFourCC converts a 4-byte pixel format to a human-readable string.
func FormatFourCC(format uint32) string {
	return string([]byte{
		byte(format),
		byte(format >> 8),
		byte(format >> 16),
		byte(format >> 24),
	})
}
