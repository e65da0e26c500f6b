package hal

import (
	"fmt"
	"slices"
	"time"
)

// StreamDescriptor describes one selectable capture mode.
//
// Descriptors are produced by Device.QueryStreams and treated as immutable
// values; QueryStreams returns fresh copies on every call.
type StreamDescriptor struct {
	Width     uint32
	Height    uint32
	Format    PixelFormat
	Intervals []time.Duration // supported frame intervals, in device order
}

// Interval returns the frame interval StartStream negotiates: the first of
// Intervals, or 0 to leave the choice to the device.
func (d StreamDescriptor) Interval() time.Duration {
	if len(d.Intervals) == 0 {
		return 0
	}
	return d.Intervals[0]
}

// FPS returns the frame rate of Interval, or 0.
func (d StreamDescriptor) FPS() float64 {
	iv := d.Interval()
	if iv <= 0 {
		return 0
	}
	return float64(time.Second) / float64(iv)
}

// MinInterval returns the shortest supported interval, or 0.
func (d StreamDescriptor) MinInterval() time.Duration {
	if len(d.Intervals) == 0 {
		return 0
	}
	return slices.Min(d.Intervals)
}

// WithInterval returns a copy narrowed to a single supported interval.
func (d StreamDescriptor) WithInterval(iv time.Duration) (StreamDescriptor, error) {
	if !slices.Contains(d.Intervals, iv) {
		return StreamDescriptor{}, fmt.Errorf("%w: interval %s not offered by %s", ErrUnsupported, iv, d)
	}
	d.Intervals = []time.Duration{iv}
	return d, nil
}

// Clone returns a deep copy.
func (d StreamDescriptor) Clone() StreamDescriptor {
	d.Intervals = slices.Clone(d.Intervals)
	return d
}

// Equal reports structural equality, including interval order.
func (d StreamDescriptor) Equal(o StreamDescriptor) bool {
	return d.Width == o.Width && d.Height == o.Height && d.Format == o.Format &&
		slices.Equal(d.Intervals, o.Intervals)
}

// Within reports whether d selects a mode that offered describes: same
// geometry and format, and every interval of d is one offered supports.
func (d StreamDescriptor) Within(offered StreamDescriptor) bool {
	if d.Width != offered.Width || d.Height != offered.Height || d.Format != offered.Format {
		return false
	}
	for _, iv := range d.Intervals {
		if !slices.Contains(offered.Intervals, iv) {
			return false
		}
	}
	return true
}

// Pixels returns Width*Height.
func (d StreamDescriptor) Pixels() uint64 {
	return uint64(d.Width) * uint64(d.Height)
}

func (d StreamDescriptor) String() string {
	if fps := d.FPS(); fps > 0 {
		return fmt.Sprintf("%dx%d %s @ %.2f fps", d.Width, d.Height, d.Format, fps)
	}
	return fmt.Sprintf("%dx%d %s", d.Width, d.Height, d.Format)
}

// Match returns the offered descriptor that d selects, or ErrUnsupported.
func Match(offered []StreamDescriptor, d StreamDescriptor) (StreamDescriptor, error) {
	for _, o := range offered {
		if d.Within(o) {
			return o, nil
		}
	}
	return StreamDescriptor{}, fmt.Errorf("%w: no current mode matches %s", ErrUnsupported, d)
}

// PreferredStream folds the result of query through prefer, returning the
// single preferred descriptor. prefer receives the running winner first.
// With one descriptor prefer is never called.
func PreferredStream(query func() ([]StreamDescriptor, error), prefer func(a, b StreamDescriptor) StreamDescriptor) (StreamDescriptor, error) {
	streams, err := query()
	if err != nil {
		return StreamDescriptor{}, err
	}
	if len(streams) == 0 {
		return StreamDescriptor{}, ErrNoStreams
	}
	best := streams[0]
	for _, s := range streams[1:] {
		best = prefer(best, s)
	}
	return best, nil
}

// PreferLargest prefers more pixels, then a shorter minimum interval.
func PreferLargest(a, b StreamDescriptor) StreamDescriptor {
	switch {
	case b.Pixels() > a.Pixels():
		return b
	case b.Pixels() < a.Pixels():
		return a
	}
	return PreferFastest(a, b)
}

// PreferFastest prefers the shorter minimum interval and keeps a on ties.
func PreferFastest(a, b StreamDescriptor) StreamDescriptor {
	ai, bi := a.MinInterval(), b.MinInterval()
	if bi > 0 && (ai == 0 || bi < ai) {
		return b
	}
	return a
}

// PreferFormat returns a preference that picks descriptors in format f
// first and falls back to next among equals.
func PreferFormat(f PixelFormat, next func(a, b StreamDescriptor) StreamDescriptor) func(a, b StreamDescriptor) StreamDescriptor {
	return func(a, b StreamDescriptor) StreamDescriptor {
		am, bm := a.Format == f, b.Format == f
		switch {
		case am && !bm:
			return a
		case bm && !am:
			return b
		}
		return next(a, b)
	}
}
