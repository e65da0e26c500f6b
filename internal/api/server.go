// Package api serves the HTTP front end: device listing, modes, controls,
// snapshots, capture sessions and a server-sent event stream.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/camhal/internal/api/models"
	"github.com/smazurov/camhal/internal/capture"
	"github.com/smazurov/camhal/internal/events"
	"github.com/smazurov/camhal/internal/logging"
	"github.com/smazurov/camhal/internal/version"
	"github.com/smazurov/camhal/pkg/camera"
)

// Server is the huma API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	logger     *slog.Logger
}

// Options configures the server. Manager is required.
type Options struct {
	AuthUsername string
	AuthPassword string

	Manager *capture.Manager
	Bus     *events.Bus

	// ListDevices defaults to camera.Devices.
	ListDevices func() ([]camera.Info, error)

	// SnapshotSkip is how many frames a one-shot snapshot discards first.
	SnapshotSkip int

	// MetricsHandler is served on /metrics when set.
	MetricsHandler http.Handler
}

// basicAuthMiddleware rejects requests to secured operations without the
// configured credentials. SSE clients may pass them as ?auth=base64.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	deny := func(ctx huma.Context, msg string, errs ...error) {
		ctx.SetHeader("WWW-Authenticate", `Basic realm="camhal"`)
		huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg, errs...)
	}

	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		encoded := ctx.Query("auth")
		if header := ctx.Header("Authorization"); header != "" {
			var ok bool
			encoded, ok = strings.CutPrefix(header, "Basic ")
			if !ok {
				deny(ctx, "Invalid authentication type")
				return
			}
		}
		if encoded == "" {
			deny(ctx, "Authentication required")
			return
		}

		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			deny(ctx, "Invalid credentials format", err)
			return
		}
		user, pass, ok := strings.Cut(string(decoded), ":")
		if !ok {
			deny(ctx, "Invalid credentials format")
			return
		}
		if subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(password)) != 1 {
			deny(ctx, "Invalid credentials")
			return
		}
		next(ctx)
	}
}

// NewServer creates the API server on a fresh ServeMux.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("camhal API", version.Get().Version)
	config.Info.Description = "Capture device access over V4L2 and USB Video Class"
	// No servers keeps OpenAPI paths relative.
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)
	s := newServer(api, opts)
	s.mux = mux

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(s.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	// Registered on the mux directly so scrapes skip auth.
	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}

	s.registerRoutes()
	return s
}

func newServer(api huma.API, opts *Options) *Server {
	if opts.ListDevices == nil {
		opts.ListDevices = camera.Devices
	}
	return &Server{
		api:     api,
		options: opts,
		logger:  logging.GetLogger("api"),
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// API returns the huma API.
func (s *Server) API() huma.API {
	return s.api
}

// Start serves on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting camhal API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s.httpServer.ListenAndServe()
}

// Stop closes the listener and open connections, SSE streams included.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{Status: "ok", Message: "API is healthy"},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get build information and the compiled-in backends",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
				Backends:  camera.Schemes(),
			},
		}, nil
	})

	s.registerDeviceRoutes()
	s.registerCaptureRoutes()
	s.registerSSERoutes()
}

// withAuth returns the basic auth security requirement.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
