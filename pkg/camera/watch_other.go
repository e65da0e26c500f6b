//go:build !linux

package camera

import (
	"context"
	"fmt"

	"github.com/smazurov/camhal/pkg/hal"
)

// Watch is only available on Linux.
func Watch(ctx context.Context, fn func(Event)) error {
	return fmt.Errorf("%w: hotplug watching needs linux", hal.ErrNoBackend)
}
