package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentexa/clinic-scheduling/internal/booking"
	"github.com/dentexa/clinic-scheduling/internal/clinic"
)

type handlers struct {
	booking   BookingService
	directory DirectoryService
	validate  *validator.Validate
	logger    zerolog.Logger
	loc       *time.Location
}

// Helpers

func (h *handlers) actor(w http.ResponseWriter, r *http.Request) (clinic.Actor, bool) {
	a, ok := ActorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token", "authentication required")
	}
	return a, ok
}

func (h *handlers) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeValidationErrors(w, verrs)
		} else {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		}
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func pageParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

// Availability

func (h *handlers) getAvailability(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()

	dentistID, err := uuid.Parse(q.Get("dentist_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_dentist_id", "dentist_id must be a valid UUID")
		return
	}

	date, err := time.ParseInLocation("2006-01-02", q.Get("date"), h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted as YYYY-MM-DD")
		return
	}

	duration := 0
	if serviceID := q.Get("service_id"); serviceID != "" {
		id, err := uuid.Parse(serviceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}
		svc, err := h.directory.GetService(r.Context(), id)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		duration = svc.DurationMinutes
	} else if v := q.Get("duration_minutes"); v != "" {
		duration, err = strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_duration_minutes", "duration_minutes must be an integer")
			return
		}
	} else {
		writeError(w, http.StatusBadRequest, "missing_duration", "either service_id or duration_minutes is required")
		return
	}

	spans, err := h.booking.Availability(r.Context(), actor, dentistID, date, duration)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := AvailabilityResponse{
		DentistID: dentistID,
		Date:      date.Format("2006-01-02"),
		Slots:     make([]SlotResponse, 0, len(spans)),
	}
	for _, sp := range spans {
		resp.Slots = append(resp.Slots, SlotResponse{
			Start: booking.FormatTimeOfDay(sp.Start),
			End:   booking.FormatTimeOfDay(sp.End),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Appointments

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req CreateAppointmentRequest
	if !h.bind(w, r, &req) {
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be RFC3339")
		return
	}

	// UUID formats were already checked by the validator.
	in := booking.CreateAppointmentInput{
		PatientID: uuid.MustParse(req.PatientID),
		DentistID: uuid.MustParse(req.DentistID),
		ServiceID: uuid.MustParse(req.ServiceID),
		StartTime: start,
		Notes:     req.Notes,
	}

	appt, err := h.booking.CreateAppointment(r.Context(), actor, in)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	appt, err := h.booking.GetAppointment(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	limit, offset := pageParams(r)
	q := r.URL.Query()

	if v := q.Get("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		appts, err := h.booking.ListPatientAppointments(r.Context(), actor, id, limit, offset)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
		return
	}

	if v := q.Get("dentist_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_dentist_id", "dentist_id must be a valid UUID")
			return
		}
		appts, err := h.booking.ListDentistAppointments(r.Context(), actor, id, limit, offset)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
		return
	}

	writeError(w, http.StatusBadRequest, "missing_filter", "either patient_id or dentist_id is required")
}

func (h *handlers) confirmAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	appt, err := h.booking.ConfirmAppointment(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req CancelAppointmentRequest
	if !h.bind(w, r, &req) {
		return
	}

	appt, err := h.booking.CancelAppointment(r.Context(), actor, id, req.Reason)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) completeAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req CompleteAppointmentRequest
	if r.ContentLength > 0 {
		if !h.bind(w, r, &req) {
			return
		}
	}

	appt, err := h.booking.CompleteAppointment(r.Context(), actor, id, req.TreatmentNotes)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) rescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req RescheduleAppointmentRequest
	if !h.bind(w, r, &req) {
		return
	}

	newStart, err := time.Parse(time.RFC3339, req.NewStartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_new_start_time", "new_start_time must be RFC3339")
		return
	}

	appt, err := h.booking.RescheduleAppointment(r.Context(), actor, id, newStart)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}
