package api

import (
	"errors"
	"net/http"

	"megayield/oracle"
	"megayield/service"

	log "github.com/sirupsen/logrus"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{service.ErrInvalidAmount, http.StatusBadRequest},
	{service.ErrInvalidVestingAddress, http.StatusBadRequest},

	{service.ErrUnauthorizedCaller, http.StatusForbidden},
	{service.ErrUnauthorizedCallback, http.StatusForbidden},
	{service.ErrFaucetDisabled, http.StatusForbidden},

	{service.ErrPositionNotFound, http.StatusNotFound},
	{service.ErrUnknownRequestID, http.StatusNotFound},
	{oracle.ErrUnknownSequence, http.StatusNotFound},

	{service.ErrAlreadyDrawnForDay, http.StatusConflict},
	{service.ErrVestingAlreadyConfigured, http.StatusConflict},
	{service.ErrDrawRequestPending, http.StatusConflict},
	{service.ErrScheduleExhausted, http.StatusConflict},
	{oracle.ErrCallbackAlreadyExecuted, http.StatusConflict},

	{service.ErrInsufficientAllowance, http.StatusUnprocessableEntity},
	{service.ErrInsufficientBalance, http.StatusUnprocessableEntity},
	{service.ErrInsufficientFee, http.StatusUnprocessableEntity},
	{service.ErrNoTicketsForDay, http.StatusUnprocessableEntity},
	{service.ErrClaimTooSoon, http.StatusUnprocessableEntity},
	{service.ErrVaultInsufficientFunds, http.StatusUnprocessableEntity},

	{service.ErrVestingNotConfigured, http.StatusServiceUnavailable},
	{oracle.ErrNoCallbackHandler, http.StatusServiceUnavailable},
}

// statusFor maps a service error onto an HTTP status
func statusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// writeServiceError writes err with its mapped status. Unmapped errors are logged and hidden.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"error":  err,
		}).Error("Request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
