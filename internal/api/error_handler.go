package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/api/handler"
	"github.com/99minutos/auth-service/internal/core/domain"
)

var kindStatus = map[domain.ErrorKind]int{
	domain.KindValidation:     http.StatusBadRequest,
	domain.KindAuthentication: http.StatusUnauthorized,
	domain.KindAuthorization:  http.StatusForbidden,
	domain.KindNotFound:       http.StatusNotFound,
	domain.KindDuplicate:      http.StatusConflict,
	domain.KindServer:         http.StatusInternalServerError,
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps domain errors to a status code by kind.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"success": false, "message", "errorType", "errors"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, handler.ErrorResponse) {
	var de *domain.Error
	if errors.As(err, &de) {
		code := kindStatus[de.Kind]
		// Deactivated accounts authenticate correctly but may not proceed.
		if errors.Is(err, domain.ErrAccountInactive) || errors.Is(err, domain.ErrUserDeactivated) {
			code = http.StatusForbidden
		}
		if code == 0 {
			code = http.StatusInternalServerError
		}
		return code, handler.ErrorResponse{
			Message:   de.Message,
			ErrorType: de.Kind,
			Errors:    de.Fields,
		}
	}

	// Echo's own errors (router 404/405, body limit, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, handler.ErrorResponse{
			Message:   fmt.Sprintf("%v", he.Message),
			ErrorType: kindForStatus(he.Code),
		}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("unhandled error")

	return http.StatusInternalServerError, handler.ErrorResponse{
		Message:   "Something went wrong",
		ErrorType: domain.KindServer,
	}
}

func kindForStatus(code int) domain.ErrorKind {
	switch code {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return domain.KindValidation
	case http.StatusUnauthorized:
		return domain.KindAuthentication
	case http.StatusForbidden:
		return domain.KindAuthorization
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return domain.KindNotFound
	case http.StatusConflict:
		return domain.KindDuplicate
	default:
		return domain.KindServer
	}
}
