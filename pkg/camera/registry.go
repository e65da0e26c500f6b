package camera

import (
	"cmp"
	"slices"

	"github.com/smazurov/camhal/pkg/hal"
)

// Address schemes.
const (
	SchemeV4L = "v4l"
	SchemeUVC = "uvc"
)

// Backend priorities; lower is tried first.
const (
	priorityV4L = 10
	priorityUVC = 20
)

type backend struct {
	scheme   string
	priority int
	open     func(payload string, o options) (hal.Device, error)
	list     func() ([]Info, error)
}

var backends []backend

// register is called from the init of each compiled-in backend file.
func register(b backend) {
	backends = append(backends, b)
	slices.SortStableFunc(backends, func(x, y backend) int {
		return cmp.Compare(x.priority, y.priority)
	})
}

func lookup(scheme string) (backend, bool) {
	for _, b := range backends {
		if b.scheme == scheme {
			return b, true
		}
	}
	return backend{}, false
}

// Schemes returns the address schemes compiled into this binary in
// priority order.
func Schemes() []string {
	schemes := make([]string, 0, len(backends))
	for _, b := range backends {
		schemes = append(schemes, b.scheme)
	}
	return schemes
}
