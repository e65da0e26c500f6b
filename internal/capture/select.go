// Package capture runs capture sessions on top of hal devices: a goroutine
// per session pulling frames and keeping the latest one, plus one-shot
// snapshots.
package capture

import (
	"fmt"
	"strings"
	"time"

	"github.com/smazurov/camhal/pkg/hal"
)

// Selector narrows the modes of a device. Zero fields match anything.
type Selector struct {
	Format   hal.PixelFormat
	Width    uint32
	Height   uint32
	Interval time.Duration
}

func (s Selector) String() string {
	var parts []string
	if s.Format.IsValid() {
		parts = append(parts, s.Format.String())
	}
	if s.Width != 0 || s.Height != 0 {
		parts = append(parts, fmt.Sprintf("%dx%d", s.Width, s.Height))
	}
	if s.Interval != 0 {
		parts = append(parts, s.Interval.String())
	}
	if len(parts) == 0 {
		return "any mode"
	}
	return strings.Join(parts, " ")
}

func (s Selector) matches(d hal.StreamDescriptor) bool {
	if s.Format.IsValid() && d.Format != s.Format {
		return false
	}
	if s.Width != 0 && d.Width != s.Width {
		return false
	}
	if s.Height != 0 && d.Height != s.Height {
		return false
	}
	return true
}

// Choose picks the largest matching mode of dev and, when Interval is set,
// narrows it to that interval.
func (s Selector) Choose(dev hal.Device) (hal.StreamDescriptor, error) {
	desc, err := hal.PreferredStream(func() ([]hal.StreamDescriptor, error) {
		streams, err := dev.QueryStreams()
		if err != nil {
			return nil, err
		}
		matching := streams[:0]
		for _, d := range streams {
			if s.matches(d) {
				matching = append(matching, d)
			}
		}
		return matching, nil
	}, hal.PreferLargest)
	if err != nil {
		return hal.StreamDescriptor{}, fmt.Errorf("select %s: %w", s, err)
	}

	if s.Interval > 0 {
		return desc.WithInterval(nearest(desc.Intervals, s.Interval))
	}
	return desc, nil
}

// intervalTolerance absorbs rounding between rates given as fps and
// intervals reported as fractions, e.g. 29.97 vs 1001/30000.
const intervalTolerance = 0.01

// nearest returns the offered interval closest to want when it lies within
// tolerance, otherwise want itself.
func nearest(offered []time.Duration, want time.Duration) time.Duration {
	best := want
	bestDiff := time.Duration(float64(want) * intervalTolerance)
	for _, iv := range offered {
		diff := iv - want
		if diff < 0 {
			diff = -diff
		}
		if diff <= bestDiff {
			best, bestDiff = iv, diff
		}
	}
	return best
}
