package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus"
	promcollectors "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/smazurov/camhal/cmd"
	"github.com/smazurov/camhal/internal/api"
	"github.com/smazurov/camhal/internal/capture"
	"github.com/smazurov/camhal/internal/config"
	"github.com/smazurov/camhal/internal/events"
	"github.com/smazurov/camhal/internal/logging"
	"github.com/smazurov/camhal/internal/metrics"
	"github.com/smazurov/camhal/internal/metrics/collectors"
	"github.com/smazurov/camhal/internal/systemd"
	"github.com/smazurov/camhal/pkg/camera"
	"github.com/smazurov/camhal/pkg/hal"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port         string `help:"Address to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	AuthUsername string `help:"Basic auth username (empty disables auth)" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Camera settings
	CameraAddress        string `help:"Device to capture from at startup, e.g. v4l:///dev/video0" default:"" toml:"camera.address" env:"CAMERA_ADDRESS"`
	CameraFormat         string `help:"Pixel format for the startup capture" default:"" toml:"camera.format" env:"CAMERA_FORMAT"`
	CameraWidth          int    `help:"Frame width for the startup capture" default:"0" toml:"camera.width" env:"CAMERA_WIDTH"`
	CameraHeight         int    `help:"Frame height for the startup capture" default:"0" toml:"camera.height" env:"CAMERA_HEIGHT"`
	CameraBuffers        int    `help:"V4L2 mmap buffer count" default:"4" toml:"camera.buffers" env:"CAMERA_BUFFERS"`
	CameraFrameTimeoutMs int    `help:"How long a pull waits for a frame" default:"2000" toml:"camera.frame_timeout_ms" env:"CAMERA_FRAME_TIMEOUT_MS"`

	// Capture settings
	CaptureSnapshotSkip int `help:"Frames discarded before a one-shot snapshot" default:"2" toml:"capture.snapshot_skip" env:"CAPTURE_SNAPSHOT_SKIP"`

	// Metrics settings
	MetricsEnabled bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCamera  string `help:"Camera backend logging level" default:"" toml:"logging.modules.camera" env:"LOGGING_CAMERA"`
	LoggingCapture string `help:"Capture logging level" default:"" toml:"logging.modules.capture" env:"LOGGING_CAPTURE"`
	LoggingAPI     string `help:"API logging level" default:"" toml:"logging.modules.api" env:"LOGGING_API"`
	LoggingHTTP    string `help:"HTTP access logging level" default:"" toml:"logging.modules.http" env:"LOGGING_HTTP"`
}

func (o *Options) openOptions() []camera.Option {
	return []camera.Option{
		camera.WithBufferCount(uint32(max(o.CameraBuffers, 1))),
		camera.WithFrameTimeout(time.Duration(o.CameraFrameTimeoutMs) * time.Millisecond),
		camera.WithLogger(logging.GetLogger("camera")),
	}
}

func (o *Options) selector() (capture.Selector, error) {
	sel := capture.Selector{Width: uint32(max(o.CameraWidth, 0)), Height: uint32(max(o.CameraHeight, 0))}
	if o.CameraFormat != "" {
		f, err := hal.ParsePixelFormat(o.CameraFormat)
		if err != nil {
			return sel, err
		}
		sel.Format = f
	}
	return sel, nil
}

func main() {
	var cli humacli.CLI
	var parsed *Options

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		parsed = opts
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"camera":  opts.LoggingCamera,
				"capture": opts.LoggingCapture,
				"api":     opts.LoggingAPI,
				"http":    opts.LoggingHTTP,
			},
		})
		logger := logging.GetLogger("main")

		open := func(address string) (hal.Device, error) {
			return camera.Open(address, opts.openOptions()...)
		}

		ctx, cancel := context.WithCancel(context.Background())
		var (
			server  *api.Server
			manager *capture.Manager
			watcher *config.Watcher[logging.Config]
		)

		hooks.OnStart(func() {
			registry := prometheus.NewRegistry()
			registry.MustRegister(
				promcollectors.NewGoCollector(),
				promcollectors.NewProcessCollector(promcollectors.ProcessCollectorOpts{}),
				collectors.NewDeviceCollector(camera.Devices),
			)
			captureMetrics := metrics.NewCapture(registry)

			eventBus := events.New()
			manager = capture.NewManager(open, capture.Options{
				Bus:     eventBus,
				Metrics: captureMetrics,
				Logger:  logging.GetLogger("capture"),
			})

			apiOpts := &api.Options{
				AuthUsername: opts.AuthUsername,
				AuthPassword: opts.AuthPassword,
				Manager:      manager,
				Bus:          eventBus,
				SnapshotSkip: opts.CaptureSnapshotSkip,
			}
			if opts.MetricsEnabled {
				apiOpts.MetricsHandler = metrics.Handler(registry)
			}
			server = api.NewServer(apiOpts)

			// Hot-reload logging levels; everything else needs a restart.
			watcher = config.NewConfigWatcher(opts.Config, config.LoadLogging, logging.GetLogger("config"))
			watcher.OnReload(func(c logging.Config) {
				systemd.Reloading(logger)
				logging.SetLevels(c.Level, c.Modules)
				logger.Info("Logging levels reloaded", "level", c.Level)
				systemd.Ready(logger)
			})
			if startErr := watcher.Start(ctx); startErr != nil {
				logger.Warn("Config file watching disabled", "error", startErr)
			}

			go func() {
				if watchErr := camera.Watch(ctx, manager.HandleHotplug); watchErr != nil {
					logger.Warn("Device hotplug monitoring unavailable", "error", watchErr)
				}
			}()

			if opts.CameraAddress != "" {
				sel, selErr := opts.selector()
				if selErr == nil {
					_, selErr = manager.Start(opts.CameraAddress, sel)
				}
				if selErr != nil {
					logger.Warn("Failed to start capture", "address", opts.CameraAddress, "error", selErr)
				}
			}

			go systemd.RunWatchdog(ctx, logger)
			systemd.Ready(logger)

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			systemd.Stopping(logger)
			if server != nil {
				if stopErr := server.Stop(); stopErr != nil {
					logger.Error("Error stopping HTTP server", "error", stopErr)
				}
			}
			if manager != nil {
				if stopErr := manager.StopAll(); stopErr != nil {
					logger.Warn("Error stopping captures", "error", stopErr)
				}
			}
			if watcher != nil {
				_ = watcher.Stop()
			}
			cancel()
		})
	})

	env := func() cmd.Env {
		e := cmd.DefaultEnv()
		if parsed != nil {
			opts := parsed
			e.Open = func(address string) (hal.Device, error) {
				return camera.Open(address, opts.openOptions()...)
			}
		}
		return e
	}

	cli.Root().AddCommand(cmd.CreateDevicesCmd(env))
	cli.Root().AddCommand(cmd.CreateInfoCmd(env))
	cli.Root().AddCommand(cmd.CreateCaptureCmd(env))
	cli.Root().AddCommand(cmd.CreateControlCmd(env))

	cli.Run()
}
