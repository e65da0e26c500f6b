package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camhal/internal/api/models"
	"github.com/smazurov/camhal/internal/capture"
)

func captureInfo(s *capture.Session) models.CaptureInfo {
	st := s.Stats()
	info := models.CaptureInfo{
		Address: s.Address(),
		Mode:    models.NewStreamMode(s.Descriptor()),
		Running: st.Running,
		Frames:  st.Frames,
		Errors:  st.Errors,
	}
	if st.LastErr != nil {
		info.LastError = st.LastErr.Error()
	}
	return info
}

func (s *Server) registerCaptureRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "start-capture",
		Method:        http.MethodPost,
		Path:          "/api/captures",
		Summary:       "Start Capture",
		Description:   "Open a device and keep pulling frames in the background. Sessions come back after the device is unplugged and reattached.",
		Tags:          []string{"captures"},
		DefaultStatus: http.StatusCreated,
		Security:      withAuth(),
		Errors:        []int{400, 401, 404, 409, 422, 502},
	}, func(_ context.Context, input *models.CaptureStartRequest) (*models.CaptureResponse, error) {
		f, err := input.Body.Format.Parse()
		if err != nil {
			return nil, apiError("Invalid format", err)
		}
		sel := capture.Selector{Format: f, Width: input.Body.Width, Height: input.Body.Height}
		if input.Body.FPS > 0 {
			sel.Interval = time.Duration(float64(time.Second) / input.Body.FPS)
		}

		session, err := s.options.Manager.Start(input.Body.Address, sel)
		if err != nil {
			return nil, apiError("Failed to start capture", err)
		}
		return &models.CaptureResponse{Body: captureInfo(session)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-captures",
		Method:      http.MethodGet,
		Path:        "/api/captures",
		Summary:     "List Captures",
		Description: "List capture sessions",
		Tags:        []string{"captures"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.CaptureListResponse, error) {
		addresses := s.options.Manager.Addresses()
		list := make([]models.CaptureInfo, 0, len(addresses))
		for _, a := range addresses {
			if session, ok := s.options.Manager.Get(a); ok {
				list = append(list, captureInfo(session))
			}
		}
		return &models.CaptureListResponse{
			Body: models.CaptureListData{Captures: list, Count: len(list)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-capture",
		Method:      http.MethodGet,
		Path:        "/api/captures/status",
		Summary:     "Capture Status",
		Description: "Report one capture session",
		Tags:        []string{"captures"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(_ context.Context, input *AddressInput) (*models.CaptureResponse, error) {
		session, ok := s.options.Manager.Get(input.Address)
		if !ok {
			return nil, huma.Error404NotFound("No capture session for " + input.Address)
		}
		return &models.CaptureResponse{Body: captureInfo(session)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "stop-capture",
		Method:        http.MethodDelete,
		Path:          "/api/captures",
		Summary:       "Stop Capture",
		Description:   "Stop a capture session and release the device",
		Tags:          []string{"captures"},
		DefaultStatus: http.StatusNoContent,
		Security:      withAuth(),
		Errors:        []int{400, 401, 404},
	}, func(_ context.Context, input *AddressInput) (*struct{}, error) {
		if err := s.options.Manager.Stop(input.Address); err != nil {
			return nil, apiError("Failed to stop capture", err)
		}
		return nil, nil
	})
}
