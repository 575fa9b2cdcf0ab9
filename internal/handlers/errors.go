package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/shelfwise/apiserver/internal/services"
)

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindValidation, services.KindConflict:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindUnauthenticated:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError maps err to a status code and writes it. Server-side
// failures are logged and their cause is never sent to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeServiceErrorWith(w, r, err, ErrorResponse{})
}

func writeServiceErrorWith(w http.ResponseWriter, r *http.Request, err error, body ErrorResponse) {
	status := statusFor(services.KindOf(err))

	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		body.Error = svcErr.Message
		body.Code = svcErr.Code
	} else {
		body.Error = services.ErrPersistence.Message
		body.Code = services.ErrPersistence.Code
	}

	if status >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).
			Str("code", body.Code).
			Msg("request failed")
	}
	writeJSON(w, status, body)
}
