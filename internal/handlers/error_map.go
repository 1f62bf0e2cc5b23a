package handlers

import (
	"errors"
	"net/http"

	"kobonz/internal/apperror"
	"kobonz/internal/logger"
	"kobonz/internal/store"
)

func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error, internalMessage string) {
	switch {
	case apperror.Is(err, apperror.KindNotFound):
		writeErrorResponse(w, http.StatusNotFound, err.Error())
	case apperror.Is(err, apperror.KindValidation):
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case apperror.Is(err, apperror.KindConflict), apperror.Is(err, apperror.KindPrecondition):
		writeErrorResponse(w, http.StatusConflict, err.Error())
	case apperror.Is(err, apperror.KindUnauthenticated):
		writeErrorResponse(w, http.StatusUnauthorized, err.Error())
	case apperror.Is(err, apperror.KindPermissionDenied):
		writeErrorResponse(w, http.StatusForbidden, err.Error())
	default:
		if log != nil {
			log.WithError(err).Error(internalMessage)
		}
		writeErrorResponse(w, http.StatusInternalServerError, internalMessage)
	}
}

// Коды ошибок callable-протокола.
const (
	callableInvalidArgument    = "invalid-argument"
	callableNotFound           = "not-found"
	callableFailedPrecondition = "failed-precondition"
	callableUnauthenticated    = "unauthenticated"
	callablePermissionDenied   = "permission-denied"
	callableAlreadyExists      = "already-exists"
	callableAborted            = "aborted"
	callableResourceExhausted  = "resource-exhausted"
	callableInternal           = "internal"

	callableInternalMessage = "Internal error"
)

// callableCode переводит ошибку в код callable-протокола и HTTP статус.
// Конфликт конкурентного изменения отдаётся как aborted: клиент может повторить.
func callableCode(err error) (string, int) {
	switch {
	case apperror.Is(err, apperror.KindNotFound):
		return callableNotFound, http.StatusNotFound
	case apperror.Is(err, apperror.KindValidation):
		return callableInvalidArgument, http.StatusBadRequest
	case apperror.Is(err, apperror.KindPrecondition):
		return callableFailedPrecondition, http.StatusBadRequest
	case apperror.Is(err, apperror.KindUnauthenticated):
		return callableUnauthenticated, http.StatusUnauthorized
	case apperror.Is(err, apperror.KindPermissionDenied):
		return callablePermissionDenied, http.StatusForbidden
	case apperror.Is(err, apperror.KindConflict):
		if errors.Is(err, store.ErrConflict) {
			return callableAborted, http.StatusConflict
		}
		return callableAlreadyExists, http.StatusConflict
	default:
		return callableInternal, http.StatusInternalServerError
	}
}
