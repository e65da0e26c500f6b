//go:build linux

package v4l2

import (
	"errors"
	"syscall"
	"unsafe"
)

func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// xioctl retries ioctl calls interrupted by signals.
func xioctl(fd int, req uint, arg unsafe.Pointer) error {
	for {
		err := ioctl(fd, req, arg)
		if !errors.Is(err, syscall.EINTR) {
			return err
		}
	}
}

func open(path string) (int, error) {
	return syscall.Open(path, syscall.O_RDWR|syscall.O_NONBLOCK|syscall.O_CLOEXEC, 0)
}

func close(fd int) error {
	return syscall.Close(fd)
}
