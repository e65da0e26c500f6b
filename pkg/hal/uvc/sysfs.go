//go:build linux

package uvc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DeviceInfo describes a USB device exposing a video function.
type DeviceInfo struct {
	Bus          uint8
	Address      uint8
	VendorID     string
	ProductID    string
	Product      string
	Manufacturer string
}

// Addr returns the uvc:// address of the device.
func (d DeviceInfo) Addr() string {
	return fmt.Sprintf("uvc://%d:%d", d.Bus, d.Address)
}

const sysfsUSB = "/sys/bus/usb/devices"

// FindDevices scans sysfs for USB devices with a video class interface.
func FindDevices() ([]DeviceInfo, error) {
	return findDevices(sysfsUSB)
}

func findDevices(root string) ([]DeviceInfo, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read usb devices directory: %w", err)
	}

	var devices []DeviceInfo
	for _, entry := range entries {
		name := entry.Name()
		// Interfaces look like 1-1.2:1.0 and have no busnum.
		if strings.Contains(name, ":") {
			continue
		}
		dir := filepath.Join(root, name)
		busnum, ok := readUint8(filepath.Join(dir, "busnum"))
		if !ok {
			continue
		}
		devnum, ok := readUint8(filepath.Join(dir, "devnum"))
		if !ok {
			continue
		}
		if !hasVideoInterface(root, name) {
			continue
		}
		devices = append(devices, DeviceInfo{
			Bus:          busnum,
			Address:      devnum,
			VendorID:     readString(filepath.Join(dir, "idVendor")),
			ProductID:    readString(filepath.Join(dir, "idProduct")),
			Product:      readString(filepath.Join(dir, "product")),
			Manufacturer: readString(filepath.Join(dir, "manufacturer")),
		})
	}
	return devices, nil
}

// hasVideoInterface checks the device's interfaces for class 0e.
func hasVideoInterface(root, device string) bool {
	matches, _ := filepath.Glob(filepath.Join(root, device+":*", "bInterfaceClass"))
	for _, m := range matches {
		if readString(m) == fmt.Sprintf("%02x", ccVideo) {
			return true
		}
	}
	return false
}

func readString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readUint8(path string) (uint8, bool) {
	v, err := strconv.ParseUint(readString(path), 10, 8)
	if err != nil {
		return 0, false
	}
	return uint8(v), true
}
