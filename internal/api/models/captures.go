package models

// Capture session models
type CaptureStartData struct {
	Address string          `json:"address" example:"uvc://1:4" doc:"Device address"`
	Format  PixelFormatName `json:"format,omitempty" doc:"Pixel format to negotiate"`
	Width   uint32          `json:"width,omitempty" example:"1280" doc:"Frame width"`
	Height  uint32          `json:"height,omitempty" example:"720" doc:"Frame height"`
	FPS     float64         `json:"fps,omitempty" example:"30" minimum:"0" doc:"Frame rate"`
}

type CaptureStartRequest struct {
	Body CaptureStartData
}

type CaptureInfo struct {
	Address   string     `json:"address" example:"uvc://1:4" doc:"Device address"`
	Mode      StreamMode `json:"mode" doc:"Negotiated mode"`
	Running   bool       `json:"running" example:"true" doc:"Whether frames are still being pulled"`
	Frames    uint64     `json:"frames" example:"9000" doc:"Frames pulled so far"`
	Errors    uint64     `json:"errors" example:"2" doc:"Failed pulls so far"`
	LastError string     `json:"last_error,omitempty" example:"timed out waiting for frame" doc:"Most recent pull failure"`
}

type CaptureResponse struct {
	Body CaptureInfo
}

type CaptureListData struct {
	Captures []CaptureInfo `json:"captures" doc:"Capture sessions"`
	Count    int           `json:"count" example:"1" doc:"Number of sessions"`
}

type CaptureListResponse struct {
	Body CaptureListData
}
