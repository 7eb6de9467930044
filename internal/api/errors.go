package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dunamismax/mediaproc/internal/domain"
	"github.com/dunamismax/mediaproc/internal/storage"
	"github.com/rs/zerolog/hlog"
)

// QueryError rejects a malformed query parameter. Want defaults to "an integer".
type QueryError struct {
	Param string
	Value string
	Want  string
}

func (e *QueryError) Error() string {
	want := e.Want
	if want == "" {
		want = "an integer"
	}
	return fmt.Sprintf("%s must be %s, got %q", e.Param, want, e.Value)
}

func (e *QueryError) Is(target error) bool {
	return target == domain.ErrValidation
}

// errorResponse maps an error kind to its status code and client-facing message.
// Messages never include storage URLs or codec internals.
func errorResponse(err error) (int, string) {
	var resErr *domain.ResolutionError
	switch {
	case errors.As(err, &resErr):
		return http.StatusBadRequest, fmt.Sprintf(
			"image resolution %dx%d exceeds maximum %dx%d",
			resErr.Width, resErr.Height, resErr.MaxDimension, resErr.MaxDimension,
		)
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, validationMessage(err)
	case errors.Is(err, domain.ErrProcessingFailed):
		return http.StatusUnprocessableEntity, "image could not be processed"
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "image not found"
	case errors.Is(err, storage.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "source image too large"
	case errors.Is(err, storage.ErrForbidden), errors.Is(err, storage.ErrTransport):
		return http.StatusBadGateway, "storage unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "processing timed out"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func validationMessage(err error) string {
	var (
		keyErr    *domain.KeyError
		paramErr  *domain.ParamError
		formatErr *domain.UnknownFormatError
		queryErr  *QueryError
	)
	switch {
	case errors.As(err, &keyErr):
		return keyErr.Error()
	case errors.As(err, &paramErr):
		return paramErr.Error()
	case errors.As(err, &formatErr):
		return formatErr.Error()
	case errors.As(err, &queryErr):
		return queryErr.Error()
	default:
		return "invalid request"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := errorResponse(err)

	logger := hlog.FromRequest(r)
	event := logger.Debug()
	switch {
	case status >= http.StatusInternalServerError:
		event = logger.Error()
	case status == http.StatusUnprocessableEntity:
		event = logger.Warn()
	}
	event.Err(err).Int("status", status).Msg("request failed")

	writeJSON(w, status, map[string]string{"error": message})
}
