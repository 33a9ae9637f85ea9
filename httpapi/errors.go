package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"formrelay.dev/internal/errkind"
	"formrelay.dev/internal/obs"
)

// ErrorHandler maps an errkind.Error (or any other error) to a JSON
// response: client-safe message for known kinds, a generic message with
// full detail logged for everything else.
func ErrorHandler(log *obs.ContextLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if he, ok := err.(*echo.HTTPError); ok {
			status := he.Code
			message := http.StatusText(status)
			if msg, ok := he.Message.(string); ok {
				message = msg
			}
			_ = c.JSON(status, map[string]string{"error": message})
			return
		}

		kind, ok := errkind.As(err)
		if !ok {
			if log != nil {
				log.WithError(err).Error("unhandled error")
			}
			_ = c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
			return
		}

		status := statusForKind(kind.Kind)
		if status == http.StatusInternalServerError && log != nil {
			log.WithError(kind).Error("internal error")
		}

		message := kind.Message
		if status == http.StatusInternalServerError {
			message = "Internal server error"
		}
		_ = c.JSON(status, map[string]string{"error": message})
	}
}

func statusForKind(k errkind.Kind) int {
	switch k {
	case errkind.NotFound:
		return http.StatusNotFound
	case errkind.Unauthorized:
		return http.StatusUnauthorized
	case errkind.Forbidden:
		return http.StatusForbidden
	case errkind.BadRequest:
		return http.StatusBadRequest
	case errkind.Conflict:
		return http.StatusConflict
	case errkind.RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
