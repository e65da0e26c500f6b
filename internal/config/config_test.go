package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config string

	Port         string   `toml:"server.port" env:"SERVER_PORT"`
	Address      string   `toml:"camera.address" env:"CAMERA_ADDRESS"`
	Buffers      uint32   `toml:"camera.buffers" env:"CAMERA_BUFFERS"`
	FrameTimeout int      `toml:"camera.frame_timeout_ms" env:"CAMERA_FRAME_TIMEOUT_MS"`
	Metrics      bool     `toml:"metrics.enabled" env:"METRICS_ENABLED"`
	Tags         []string `toml:"server.tags" env:"SERVER_TAGS"`
	Renamed      string   `name:"cam" toml:"camera.name" env:"CAMERA_NAME"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const sampleConfig = `
[server]
port = ":9000"
tags = ["a", "b"]

[camera]
address = "uvc://1:4"
buffers = 6
frame_timeout_ms = 1500
name = "porch"

[metrics]
enabled = true
`

func TestLoadConfigFromTOML(t *testing.T) {
	opts := &testOptions{Config: writeConfig(t, sampleConfig)}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	want := testOptions{
		Config:       opts.Config,
		Port:         ":9000",
		Address:      "uvc://1:4",
		Buffers:      6,
		FrameTimeout: 1500,
		Metrics:      true,
		Tags:         []string{"a", "b"},
		Renamed:      "porch",
	}
	if !reflect.DeepEqual(*opts, want) {
		t.Errorf("LoadConfig() = %+v, want %+v", *opts, want)
	}
}

func TestLoadConfigEnvOverridesTOML(t *testing.T) {
	t.Setenv("CAMHAL_CAMERA_ADDRESS", "v4l:///dev/video2")
	t.Setenv("CAMHAL_CAMERA_BUFFERS", "3")
	t.Setenv("CAMHAL_METRICS_ENABLED", "false")
	t.Setenv("CAMHAL_SERVER_TAGS", "x, y ,z")

	opts := &testOptions{Config: writeConfig(t, sampleConfig)}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatal(err)
	}

	if opts.Address != "v4l:///dev/video2" {
		t.Errorf("Address = %q, want env value", opts.Address)
	}
	if opts.Buffers != 3 {
		t.Errorf("Buffers = %d, want 3", opts.Buffers)
	}
	if opts.Metrics {
		t.Error("Metrics = true, want env override false")
	}
	if !reflect.DeepEqual(opts.Tags, []string{"x", "y", "z"}) {
		t.Errorf("Tags = %q", opts.Tags)
	}
	if opts.Port != ":9000" {
		t.Errorf("Port = %q, want file value", opts.Port)
	}
}

func TestLoadConfigFlagsWin(t *testing.T) {
	t.Setenv("CAMHAL_SERVER_PORT", ":7000")
	t.Setenv("CAMHAL_CAMERA_NAME", "garage")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("port", "", "")
	cmd.Flags().String("cam", "", "")
	if err := cmd.Flags().Parse([]string{"--port", ":8123", "--cam", "door"}); err != nil {
		t.Fatal(err)
	}

	opts := &testOptions{Config: writeConfig(t, sampleConfig), Port: ":8123", Renamed: "door"}
	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatal(err)
	}
	if opts.Port != ":8123" {
		t.Errorf("Port = %q, want flag value", opts.Port)
	}
	if opts.Renamed != "door" {
		t.Errorf("Renamed = %q, want flag value", opts.Renamed)
	}
	if opts.Address != "uvc://1:4" {
		t.Errorf("Address = %q, want file value", opts.Address)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "absent.toml"), Port: ":8090"}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if opts.Port != ":8090" {
		t.Errorf("Port = %q, default should survive", opts.Port)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{name: "invalid toml", content: "[server\nport = 1"},
		{name: "wrong type", content: "[camera]\nbuffers = \"many\""},
		{name: "negative unsigned", content: "[camera]\nbuffers = -1"},
		{name: "bad env int", env: map[string]string{"CAMHAL_CAMERA_FRAME_TIMEOUT_MS": "soon"}},
		{name: "bad env bool", env: map[string]string{"CAMHAL_METRICS_ENABLED": "perhaps"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			opts := &testOptions{Config: writeConfig(t, tt.content)}
			if err := LoadConfig(opts, nil); err == nil {
				t.Error("LoadConfig() succeeded, want error")
			}
		})
	}
}

func TestLoadConfigRejectsNonPointer(t *testing.T) {
	if err := LoadConfig(testOptions{}, nil); err == nil {
		t.Error("LoadConfig(struct) succeeded, want error")
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":                 "port",
		"LoggingLevel":         "logging-level",
		"CameraFrameTimeoutMs": "camera-frame-timeout-ms",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetNestedValue(t *testing.T) {
	tree := map[string]any{
		"camera":  map[string]any{"address": "uvc://1:4", "buffers": int64(4)},
		"flat":    "value",
		"scalars": int64(1),
	}
	tests := []struct {
		path string
		want any
	}{
		{"camera.address", "uvc://1:4"},
		{"camera.buffers", int64(4)},
		{"flat", "value"},
		{"camera.missing", nil},
		{"scalars.deeper", nil},
		{"absent.key", nil},
	}
	for _, tt := range tests {
		if got := getNestedValue(tree, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestLoadLogging(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"

[logging.modules]
uvc = "warn"
api = "error"
`)
	cfg, err := LoadLogging(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Level != "debug" || cfg.Format != "text" {
		t.Errorf("level/format = %q/%q, want debug/text", cfg.Level, cfg.Format)
	}
	if want := map[string]string{"uvc": "warn", "api": "error"}; !reflect.DeepEqual(cfg.Modules, want) {
		t.Errorf("Modules = %v, want %v", cfg.Modules, want)
	}

	if _, err := LoadLogging(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("LoadLogging of a missing file succeeded")
	}
}
