//go:build linux

package uvc

import (
	"strconv"
	"strings"

	"github.com/smazurov/camhal/pkg/hal"
)

// ParseAddress parses the "<bus>:<address>" payload of a uvc:// address.
// Fields past the second are ignored.
func ParseAddress(payload string) (bus, addr uint8, err error) {
	fields := strings.Split(payload, ":")
	if len(fields) < 2 {
		return 0, 0, hal.InputError("uvc address %q: want <bus>:<address>", payload)
	}
	b, err := strconv.ParseUint(fields[0], 10, 8)
	if err != nil {
		return 0, 0, hal.InputError("uvc address %q: bad bus number %q", payload, fields[0])
	}
	a, err := strconv.ParseUint(fields[1], 10, 8)
	if err != nil {
		return 0, 0, hal.InputError("uvc address %q: bad device address %q", payload, fields[1])
	}
	return uint8(b), uint8(a), nil
}
