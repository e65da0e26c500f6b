package models

import (
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camhal/pkg/hal"
)

// PixelFormatName is a pixel format as accepted by hal.ParsePixelFormat:
// a format name such as "YUYV16" or a FourCC such as "MJPG".
type PixelFormatName string

// Schema lists the known names while still allowing any FourCC.
func (PixelFormatName) Schema(huma.Registry) *huma.Schema {
	known := hal.KnownFormats()
	examples := make([]any, 0, len(known))
	for _, f := range known {
		examples = append(examples, f.String())
	}
	return &huma.Schema{
		Type:        huma.TypeString,
		Examples:    examples,
		MaxLength:   intPtr(16),
		Description: "Pixel format name or FourCC",
	}
}

func intPtr(n int) *int { return &n }

// Parse converts the name, treating "" as no preference.
func (p PixelFormatName) Parse() (hal.PixelFormat, error) {
	if p == "" {
		return hal.PixelFormat{}, nil
	}
	return hal.ParsePixelFormat(string(p))
}

// Device models
type DeviceInfo struct {
	Address string `json:"address" example:"v4l:///dev/video0" doc:"Address to open the device with"`
	Name    string `json:"name" example:"HD Pro Webcam C920" doc:"Human-readable device name"`
	Backend string `json:"backend" example:"v4l" doc:"Backend scheme"`
	ID      string `json:"id" example:"usb-0000:00:14.0-1" doc:"Stable identifier across reboots"`
}

type DeviceData struct {
	Devices []DeviceInfo `json:"devices" doc:"Capture devices currently present"`
	Count   int          `json:"count" example:"1" doc:"Number of devices"`
}

type DeviceResponse struct {
	Body DeviceData
}

// Stream mode models
type StreamMode struct {
	Format     string    `json:"format" example:"YUYV16" doc:"Pixel format"`
	Width      uint32    `json:"width" example:"1280" doc:"Frame width in pixels"`
	Height     uint32    `json:"height" example:"720" doc:"Frame height in pixels"`
	FrameRates []float64 `json:"frame_rates" example:"[30,15]" doc:"Offered frame rates"`
}

// NewStreamMode converts a descriptor, listing rates in descriptor order.
func NewStreamMode(d hal.StreamDescriptor) StreamMode {
	rates := make([]float64, 0, len(d.Intervals))
	for _, iv := range d.Intervals {
		if iv > 0 {
			rates = append(rates, float64(time.Second)/float64(iv))
		}
	}
	return StreamMode{
		Format:     d.Format.String(),
		Width:      d.Width,
		Height:     d.Height,
		FrameRates: rates,
	}
}

type DeviceStreamsData struct {
	Address string       `json:"address" example:"v4l:///dev/video0" doc:"Device address"`
	Streams []StreamMode `json:"streams" doc:"Modes the device offers"`
}

type DeviceStreamsResponse struct {
	Body DeviceStreamsData
}

// Control models
type MenuItem struct {
	Index int64  `json:"index" example:"1" doc:"Value to write"`
	Name  string `json:"name" example:"Manual Mode" doc:"Label"`
}

type ControlInfo struct {
	ID      uint32     `json:"id" example:"9963776" doc:"Control identifier"`
	Name    string     `json:"name" example:"Brightness" doc:"Control name"`
	Kind    string     `json:"kind" example:"integer" enum:"integer,boolean,menu,button" doc:"Value type"`
	Min     int64      `json:"min" example:"0" doc:"Minimum value"`
	Max     int64      `json:"max" example:"255" doc:"Maximum value"`
	Step    int64      `json:"step" example:"1" doc:"Value step"`
	Default int64      `json:"default" example:"128" doc:"Default value"`
	Value   *int64     `json:"value,omitempty" example:"128" doc:"Current value, absent when unreadable"`
	Flags   string     `json:"flags,omitempty" example:"read-only" doc:"Access restrictions"`
	Menu    []MenuItem `json:"menu,omitempty" doc:"Choices of a menu control"`
}

// NewControlInfo converts c. value may be nil.
func NewControlInfo(c hal.Control, value *int64) ControlInfo {
	info := ControlInfo{
		ID:      c.ID,
		Name:    c.Name,
		Kind:    c.Kind.String(),
		Min:     c.Min,
		Max:     c.Max,
		Step:    c.Step,
		Default: c.Default,
		Value:   value,
		Flags:   c.Flags.String(),
	}
	for _, m := range c.Menu {
		info.Menu = append(info.Menu, MenuItem{Index: m.Index, Name: m.Name})
	}
	return info
}

type DeviceControlsData struct {
	Address  string        `json:"address" example:"v4l:///dev/video0" doc:"Device address"`
	Controls []ControlInfo `json:"controls" doc:"Adjustable parameters"`
}

type DeviceControlsResponse struct {
	Body DeviceControlsData
}

type ControlValueData struct {
	ID    uint32 `json:"id" example:"9963776" doc:"Control identifier"`
	Value int64  `json:"value" example:"128" doc:"Value; booleans are 0 or 1"`
}

type ControlValueResponse struct {
	Body ControlValueData
}

// SnapshotResponse carries an encoded still frame.
type SnapshotResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}
