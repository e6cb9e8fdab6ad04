package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/dentexa/clinic-scheduling/internal/booking"
	"github.com/dentexa/clinic-scheduling/internal/clinic"
	redisclient "github.com/dentexa/clinic-scheduling/internal/redis"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeValidationErrors maps go-playground field errors to a 400 with
// per-field detail.
func writeValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		fields[strings.ToLower(fe.Field())] = "failed " + fe.Tag() + " validation"
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:  "validation_error",
		Fields: fields,
	})
}

// writeServiceError maps domain errors onto the HTTP taxonomy: validation
// 400, authorization 403, not-found 404, conflicts 409 with a retry hint.
func writeServiceError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var ve *clinic.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "validation_error",
			Fields: map[string]string{ve.Field: ve.Reason},
		})
	case errors.Is(err, clinic.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "you are not allowed to act on this resource")
	case errors.Is(err, clinic.ErrDentistNotFound),
		errors.Is(err, clinic.ErrPatientNotFound),
		errors.Is(err, clinic.ErrServiceNotFound),
		errors.Is(err, booking.ErrAppointmentNotFound),
		errors.Is(err, booking.ErrWorkingHourNotFound),
		errors.Is(err, booking.ErrBlockedDateNotFound):
		writeError(w, http.StatusNotFound, "resource_not_found", "resource not found")
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", "slot is no longer available, re-fetch availability and retry")
	case errors.Is(err, booking.ErrCalendarBusy),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "calendar_busy", "calendar is currently being booked, please retry shortly")
	case errors.Is(err, booking.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		logger.Error().Err(err).Msg("unhandled service error")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
