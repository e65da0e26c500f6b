// Package cmd holds the camhal subcommands other than serve.
package cmd

import (
	"fmt"
	"strconv"

	"github.com/smazurov/camhal/pkg/camera"
	"github.com/smazurov/camhal/pkg/hal"
)

// Env is what the subcommands need from the process: how to open an
// address and how to list devices.
type Env struct {
	Open func(address string) (hal.Device, error)
	List func() ([]camera.Info, error)
}

// DefaultEnv opens devices with camera.Open defaults.
func DefaultEnv() Env {
	return Env{
		Open: func(address string) (hal.Device, error) { return camera.Open(address) },
		List: camera.Devices,
	}
}

// parseControlID accepts decimal or 0x-prefixed hex.
func parseControlID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: control id %q", hal.ErrInvalidInput, s)
	}
	return uint32(id), nil
}
