package errors

import (
	"encoding/json"
	"net/http"

	"github.com/manorfm/connectM/internal/domain"
)

// StatusOf maps a domain error to its HTTP status
func StatusOf(err domain.Error) int {
	switch err.GetCode() {
	case domain.ErrUnknownProvider.GetCode(),
		domain.ErrConnectionNotFound.GetCode():
		return http.StatusNotFound
	case domain.ErrDuplicateConnection.GetCode():
		return http.StatusConflict
	case domain.ErrUnauthorized.GetCode():
		return http.StatusUnauthorized
	case domain.ErrRateLimited.GetCode():
		return http.StatusTooManyRequests
	case domain.ErrProviderUnavailable.GetCode():
		return http.StatusBadGateway
	case domain.ErrInternal.GetCode(),
		domain.ErrDatabaseQuery.GetCode():
		return http.StatusInternalServerError
	}

	return http.StatusBadRequest
}

// RespondWithError sends a standardized error response. Errors outside the
// domain are reported as internal errors.
func RespondWithError(w http.ResponseWriter, err error) {
	RespondErrorWithDetails(w, err, nil)
}

// RespondErrorWithDetails sends a standardized error response with details
func RespondErrorWithDetails(w http.ResponseWriter, err error, details []ErrorDetail) {
	domainErr := domain.AsError(err)
	if domainErr == nil {
		domainErr = domain.ErrInternal
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusOf(domainErr))
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    domainErr.GetCode(),
		Message: domainErr.GetMessage(),
		Details: details,
	})
}
