// Package collectors holds Prometheus collectors that sample state at
// scrape time.
package collectors

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smazurov/camhal/internal/logging"
	"github.com/smazurov/camhal/pkg/camera"
)

// DeviceCollector reports the capture devices visible at scrape time.
type DeviceCollector struct {
	list   func() ([]camera.Info, error)
	logger *slog.Logger

	devices *prometheus.Desc
	info    *prometheus.Desc
	up      *prometheus.Desc
}

// NewDeviceCollector creates a collector that enumerates through list,
// normally camera.Devices.
func NewDeviceCollector(list func() ([]camera.Info, error)) *DeviceCollector {
	return &DeviceCollector{
		list:   list,
		logger: logging.GetLogger("metrics"),
		devices: prometheus.NewDesc("camhal_devices",
			"Capture devices visible, by backend", []string{"backend"}, nil),
		info: prometheus.NewDesc("camhal_device_info",
			"One series per visible capture device", []string{"address", "name", "backend"}, nil),
		up: prometheus.NewDesc("camhal_device_enumeration_up",
			"Whether the last device enumeration succeeded", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *DeviceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.devices
	ch <- c.info
	ch <- c.up
}

// Collect implements prometheus.Collector.
func (c *DeviceCollector) Collect(ch chan<- prometheus.Metric) {
	infos, err := c.list()
	if err != nil {
		c.logger.Warn("Device enumeration failed", "error", err)
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)

	perBackend := make(map[string]int)
	for _, scheme := range camera.Schemes() {
		perBackend[scheme] = 0
	}
	for _, info := range infos {
		perBackend[info.Backend]++
		ch <- prometheus.MustNewConstMetric(c.info, prometheus.GaugeValue, 1, info.Address, info.Name, info.Backend)
	}
	for backend, n := range perBackend {
		ch <- prometheus.MustNewConstMetric(c.devices, prometheus.GaugeValue, float64(n), backend)
	}
}
