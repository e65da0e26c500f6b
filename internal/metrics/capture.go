// Package metrics exposes capture statistics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/smazurov/camhal/pkg/hal"
)

const namespace = "camhal"

// Capture holds the per-device capture metrics.
type Capture struct {
	frames        *prometheus.CounterVec
	frameErrors   *prometheus.CounterVec
	bytes         *prometheus.CounterVec
	frameInterval *prometheus.HistogramVec
	activeStreams *prometheus.GaugeVec
	controlWrites *prometheus.CounterVec
}

// NewCapture registers the capture metrics with reg.
func NewCapture(reg prometheus.Registerer) *Capture {
	factory := promauto.With(reg)
	return &Capture{
		frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "frames_total",
			Help:      "Frames pulled from a device",
		}, []string{"address", "format"}),

		frameErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "frame_errors_total",
			Help:      "Pulls that returned an error frame, by error category",
		}, []string{"address", "kind"}),

		bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "bytes_total",
			Help:      "Payload bytes pulled from a device",
		}, []string{"address"}),

		frameInterval: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "frame_interval_seconds",
			Help:      "Time between consecutive frames",
			Buckets:   []float64{1.0 / 120, 1.0 / 60, 1.0 / 30, 1.0 / 15, 0.1, 0.25, 0.5, 1, 2},
		}, []string{"address"}),

		activeStreams: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "active_streams",
			Help:      "Streams currently running",
		}, []string{"address"}),

		controlWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "writes_total",
			Help:      "Control writes, by result",
		}, []string{"address", "result"}),
	}
}

// Instrument counts every frame pulled through s. The returned stream is
// lazy like hal.Map and adds no buffering.
func (c *Capture) Instrument(address string, s hal.Stream[hal.Frame]) hal.Stream[hal.Frame] {
	bytes := c.bytes.WithLabelValues(address)
	interval := c.frameInterval.WithLabelValues(address)
	var last time.Time

	return hal.Map(s, func(f hal.Frame) hal.Frame {
		if f.Err != nil {
			c.frameErrors.WithLabelValues(address, hal.Classify(f.Err).String()).Inc()
			return f
		}
		if f.Image == nil {
			return f
		}

		c.frames.WithLabelValues(address, f.Image.Format().String()).Inc()
		bytes.Add(float64(f.Image.Len()))

		now := time.Now()
		if !last.IsZero() {
			interval.Observe(now.Sub(last).Seconds())
		}
		last = now
		return f
	})
}

// StreamStarted marks a stream on address as running.
func (c *Capture) StreamStarted(address string) {
	c.activeStreams.WithLabelValues(address).Inc()
}

// StreamStopped marks a stream on address as finished.
func (c *Capture) StreamStopped(address string) {
	c.activeStreams.WithLabelValues(address).Dec()
}

// ControlWrite records the outcome of a control write.
func (c *Capture) ControlWrite(address string, err error) {
	result := "ok"
	if err != nil {
		result = hal.Classify(err).String()
	}
	c.controlWrites.WithLabelValues(address, result).Inc()
}

// Forget drops every series labelled with address, for unplugged devices.
func (c *Capture) Forget(address string) {
	labels := prometheus.Labels{"address": address}
	c.frames.DeletePartialMatch(labels)
	c.frameErrors.DeletePartialMatch(labels)
	c.bytes.DeletePartialMatch(labels)
	c.frameInterval.DeletePartialMatch(labels)
	c.activeStreams.DeletePartialMatch(labels)
	c.controlWrites.DeletePartialMatch(labels)
}
