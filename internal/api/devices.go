package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/disintegration/imaging"
	"github.com/smazurov/camhal/internal/api/models"
	"github.com/smazurov/camhal/internal/capture"
	"github.com/smazurov/camhal/internal/imageconv"
	"github.com/smazurov/camhal/pkg/hal"
)

// AddressInput selects a device.
type AddressInput struct {
	Address string `query:"address" required:"true" example:"v4l:///dev/video0" doc:"Device address"`
}

// ControlInput selects one control of a device.
type ControlInput struct {
	AddressInput
	ID uint32 `path:"id" example:"9963776" doc:"Control identifier"`
}

// ControlWriteInput carries the value to write.
type ControlWriteInput struct {
	ControlInput
	Body struct {
		Value int64 `json:"value" example:"128" doc:"Value; booleans are 0 or 1, menus take the item index"`
	}
}

// SnapshotInput picks the mode and encoding of a still frame.
type SnapshotInput struct {
	AddressInput
	Format  models.PixelFormatName `query:"format" doc:"Pixel format to capture in"`
	Width   uint32                 `query:"width" example:"1280" doc:"Frame width"`
	Height  uint32                 `query:"height" example:"720" doc:"Frame height"`
	Output  string                 `query:"output" enum:"jpeg,png" default:"jpeg" doc:"Encoding of the returned image"`
	Quality int                    `query:"quality" minimum:"1" maximum:"100" default:"90" doc:"JPEG quality"`
}

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "List capture devices of every compiled-in backend",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 502},
	}, func(_ context.Context, _ *struct{}) (*models.DeviceResponse, error) {
		infos, err := s.options.ListDevices()
		if err != nil {
			return nil, apiError("Failed to list devices", err)
		}
		devices := make([]models.DeviceInfo, len(infos))
		for i, info := range infos {
			devices[i] = models.DeviceInfo{
				Address: info.Address,
				Name:    info.Name,
				Backend: info.Backend,
				ID:      info.ID,
			}
		}
		return &models.DeviceResponse{
			Body: models.DeviceData{Devices: devices, Count: len(devices)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "device-streams",
		Method:      http.MethodGet,
		Path:        "/api/device/streams",
		Summary:     "Stream Modes",
		Description: "List the formats, sizes and frame rates a device offers",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 422, 502},
	}, func(_ context.Context, input *AddressInput) (*models.DeviceStreamsResponse, error) {
		var modes []models.StreamMode
		err := s.options.Manager.WithDevice(input.Address, func(dev hal.Device) error {
			streams, err := dev.QueryStreams()
			if err != nil {
				return err
			}
			modes = make([]models.StreamMode, len(streams))
			for i, d := range streams {
				modes[i] = models.NewStreamMode(d)
			}
			return nil
		})
		if err != nil {
			return nil, apiError("Failed to query streams", err)
		}
		return &models.DeviceStreamsResponse{
			Body: models.DeviceStreamsData{Address: input.Address, Streams: modes},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "device-controls",
		Method:      http.MethodGet,
		Path:        "/api/device/controls",
		Summary:     "Controls",
		Description: "List the adjustable parameters of a device with their current values",
		Tags:        []string{"controls"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 422, 502},
	}, func(_ context.Context, input *AddressInput) (*models.DeviceControlsResponse, error) {
		var infos []models.ControlInfo
		err := s.options.Manager.WithDevice(input.Address, func(dev hal.Device) error {
			controls, err := dev.QueryControls()
			if err != nil {
				return err
			}
			infos = make([]models.ControlInfo, len(controls))
			for i, c := range controls {
				infos[i] = models.NewControlInfo(c, currentValue(dev, c))
			}
			return nil
		})
		if err != nil {
			return nil, apiError("Failed to query controls", err)
		}
		return &models.DeviceControlsResponse{
			Body: models.DeviceControlsData{Address: input.Address, Controls: infos},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-control",
		Method:      http.MethodGet,
		Path:        "/api/device/controls/{id}",
		Summary:     "Read Control",
		Description: "Read the current value of one control",
		Tags:        []string{"controls"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 422, 502},
	}, func(_ context.Context, input *ControlInput) (*models.ControlValueResponse, error) {
		var v hal.Value
		err := s.options.Manager.WithDevice(input.Address, func(dev hal.Device) error {
			var err error
			v, err = dev.Control(input.ID)
			return err
		})
		if err != nil {
			return nil, apiError("Failed to read control", err)
		}
		return &models.ControlValueResponse{
			Body: models.ControlValueData{ID: input.ID, Value: v.Int()},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-control",
		Method:      http.MethodPut,
		Path:        "/api/device/controls/{id}",
		Summary:     "Write Control",
		Description: "Write a control; the change takes effect immediately",
		Tags:        []string{"controls"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 422, 502},
	}, func(_ context.Context, input *ControlWriteInput) (*models.ControlValueResponse, error) {
		v, err := s.options.Manager.SetControl(input.Address, input.ID, input.Body.Value)
		if err != nil {
			return nil, apiError("Failed to write control", err)
		}
		return &models.ControlValueResponse{
			Body: models.ControlValueData{ID: input.ID, Value: v.Int()},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "device-snapshot",
		Method:      http.MethodGet,
		Path:        "/api/device/snapshot",
		Summary:     "Snapshot",
		Description: "Capture one frame and return it as an image. A running capture session serves its latest frame.",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 422, 502},
	}, func(ctx context.Context, input *SnapshotInput) (*models.SnapshotResponse, error) {
		frame, err := s.snapshot(ctx, input)
		if err != nil {
			return nil, apiError("Failed to capture snapshot", err)
		}

		format, contentType := imaging.JPEG, "image/jpeg"
		if input.Output == "png" {
			format, contentType = imaging.PNG, "image/png"
		}
		var buf bytes.Buffer
		if err := imageconv.Encode(&buf, frame, format, imageconv.Options{Quality: input.Quality}); err != nil {
			return nil, apiError("Failed to encode snapshot", err)
		}
		return &models.SnapshotResponse{ContentType: contentType, Body: buf.Bytes()}, nil
	})
}

// currentValue reads c, or returns nil for unreadable controls.
func currentValue(dev hal.Device, c hal.Control) *int64 {
	if c.Flags&hal.FlagWriteOnly != 0 || c.Kind == hal.ControlButton {
		return nil
	}
	v, err := dev.Control(c.ID)
	if err != nil {
		return nil
	}
	n := v.Int()
	return &n
}

const sessionFrameWait = 5 * time.Second

func (s *Server) snapshot(ctx context.Context, input *SnapshotInput) (*hal.Image, error) {
	if session, ok := s.options.Manager.Get(input.Address); ok && session.Stats().Running {
		if img := session.Latest(); img != nil {
			return img, nil
		}
		ctx, cancel := context.WithTimeout(ctx, sessionFrameWait)
		defer cancel()
		return session.Next(ctx)
	}

	f, err := input.Format.Parse()
	if err != nil {
		return nil, err
	}
	sel := capture.Selector{Format: f, Width: input.Width, Height: input.Height}

	var frame *hal.Image
	err = s.options.Manager.WithDevice(input.Address, func(dev hal.Device) error {
		desc, err := sel.Choose(dev)
		if err != nil {
			return err
		}
		frame, err = capture.Snapshot(dev, desc, s.options.SnapshotSkip)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", input.Address, err)
	}
	return frame, nil
}
