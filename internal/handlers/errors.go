package handlers

import (
	"errors"
	"net/http"

	"github.com/orgledger/backend/internal/services"
	"go.uber.org/zap"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{services.ErrUnexpected, http.StatusInternalServerError},
	{services.ErrInvalidPin, http.StatusUnauthorized},
	{services.ErrInvalidCredentials, http.StatusUnauthorized},
	{services.ErrPinLocked, http.StatusLocked},
	{services.ErrUserNotFound, http.StatusNotFound},
	{services.ErrAccountNotFound, http.StatusNotFound},
	{services.ErrSenderAccountNotFound, http.StatusNotFound},
	{services.ErrRecipientNotFound, http.StatusNotFound},
	{services.ErrTransactionNotFound, http.StatusNotFound},
	{services.ErrCannotReverseAReversal, http.StatusConflict},
	{services.ErrTransactionAlreadyReversed, http.StatusConflict},
}

// statusFor maps a ledger error onto an HTTP status. Validation kinds not
// listed above are 400, anything unknown is 500.
func statusFor(err error) int {
	for _, s := range errorStatuses {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	if services.Kind(err) != "unexpected" {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func sendServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: services.Kind(err)}
	if status == http.StatusInternalServerError {
		logger.Error("ledger request failed", zap.Error(err))
		resp.Error = "An Internal Error Occurred"
	}
	sendError(w, resp, status, nil)
}
