package handler

import (
	"errors"
	"net/http"

	"github.com/zabira-api/internal/domain"
	"go.uber.org/zap"
)

const internalMessage = "An unexpected error occurred"

// statusFor maps a domain error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBadRequest),
		errors.Is(err, domain.ErrExpired),
		errors.Is(err, domain.ErrInvalidCode):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDispatch):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// httpError writes err as {"error": msg}. Unclassified errors are logged and
// answered with a generic message.
func httpError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		writeError(w, status, internalMessage)
		return
	}
	writeError(w, status, domain.Message(err, http.StatusText(status)))
}
