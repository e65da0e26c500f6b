package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camhal/internal/capture"
	"github.com/smazurov/camhal/pkg/hal"
)

// apiError maps an error category onto an HTTP status.
func apiError(msg string, err error) huma.StatusError {
	switch {
	case errors.Is(err, capture.ErrNotRunning):
		return huma.Error404NotFound(msg, err)
	case errors.Is(err, hal.ErrBusy):
		return huma.Error409Conflict(msg, err)
	}
	switch hal.Classify(err) {
	case hal.KindInvalidInput:
		return huma.Error400BadRequest(msg, err)
	case hal.KindNoBackend:
		return huma.Error404NotFound(msg, err)
	case hal.KindUnsupported:
		return huma.Error422UnprocessableEntity(msg, err)
	case hal.KindIO:
		return huma.Error502BadGateway(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}
