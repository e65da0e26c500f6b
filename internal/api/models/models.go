package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string   `json:"version" example:"dev" doc:"Application version"`
	GitCommit string   `json:"git_commit" example:"abc123" doc:"Git commit hash"`
	BuildDate string   `json:"build_date" example:"2026-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string   `json:"go_version" example:"go1.25.0" doc:"Go compiler version"`
	Platform  string   `json:"platform" example:"linux/arm64" doc:"Target platform"`
	Backends  []string `json:"backends" example:"[\"v4l\",\"uvc\"]" doc:"Compiled-in capture backends, in priority order"`
}

type VersionResponse struct {
	Body VersionData
}
