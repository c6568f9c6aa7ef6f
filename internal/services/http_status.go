package services

import (
	"errors"

	pilot_errors "instapilot/pkg/errors"
)

// HTTPStatus maps a service error to its response status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, pilot_errors.ErrInvalidInput):
		return 400
	case errors.Is(err, pilot_errors.ErrUnauthorized):
		return 401
	case errors.Is(err, pilot_errors.ErrForbidden), errors.Is(err, pilot_errors.ErrInvalidSignature):
		return 403
	case errors.Is(err, pilot_errors.ErrNotFound):
		return 404
	case errors.Is(err, pilot_errors.ErrAlreadyExists), errors.Is(err, pilot_errors.ErrConflict):
		return 409
	case errors.Is(err, pilot_errors.ErrTierLimitReached), errors.Is(err, pilot_errors.ErrAccountInactive):
		return 422
	case errors.Is(err, pilot_errors.ErrRateLimited):
		return 429
	case errors.Is(err, pilot_errors.ErrServiceUnavailable), errors.Is(err, pilot_errors.ErrQueueFull):
		return 503
	default:
		return 500
	}
}
