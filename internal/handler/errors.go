package handler

import (
	"errors"
	"net/http"

	"github.com/abdusco/shortly/internal"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ErrorHandler renders every error as {"error": msg}, adding per-field
// messages for validation failures.
func ErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	body := map[string]any{"error": "internal server error"}

	var verr *internal.ValidationError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &verr):
		code = http.StatusBadRequest
		body["error"] = "validation failed"
		body["errors"] = verr.Fields
	case errors.As(err, &httpErr):
		code = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok {
			body["error"] = msg
		}
	}

	evt := log.Debug()
	if code >= http.StatusInternalServerError {
		evt = log.Error()
	}
	evt.Int("code", code).
		Str("method", c.Request().Method).
		Str("path", c.Request().URL.Path).
		Err(err).
		Msg("http error")

	if c.Response().Committed {
		return
	}

	if err := c.JSON(code, body); err != nil {
		log.Error().Err(err).Msg("failed to write error response")
	}
}
