package api

import (
	"net/http"
	"time"

	"github.com/dentexa/clinic-scheduling/internal/booking"
)

// Working hours

func (h *handlers) listWorkingHours(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	dentistID, ok := uuidParam(w, r, "dentistID")
	if !ok {
		return
	}

	hours, err := h.booking.ListWorkingHours(r.Context(), actor, dentistID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := make([]WorkingHourResponse, 0, len(hours))
	for i := range hours {
		resp = append(resp, toWorkingHourResponse(&hours[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) workingHourFromRequest(w http.ResponseWriter, req WorkingHourRequest, wh *booking.WorkingHour) bool {
	start, err := booking.ParseTimeOfDay(req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start_time", err.Error())
		return false
	}
	end, err := booking.ParseTimeOfDay(req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_end_time", err.Error())
		return false
	}

	wh.Weekday = time.Weekday(req.DayOfWeek)
	wh.StartMinute = start
	wh.EndMinute = end
	wh.IsActive = true
	if req.IsActive != nil {
		wh.IsActive = *req.IsActive
	}
	return true
}

func (h *handlers) createWorkingHour(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	dentistID, ok := uuidParam(w, r, "dentistID")
	if !ok {
		return
	}

	var req WorkingHourRequest
	if !h.bind(w, r, &req) {
		return
	}

	wh := booking.WorkingHour{DentistID: dentistID}
	if !h.workingHourFromRequest(w, req, &wh) {
		return
	}

	created, err := h.booking.CreateWorkingHour(r.Context(), actor, wh)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toWorkingHourResponse(created))
}

func (h *handlers) updateWorkingHour(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	dentistID, ok := uuidParam(w, r, "dentistID")
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req WorkingHourRequest
	if !h.bind(w, r, &req) {
		return
	}

	wh := booking.WorkingHour{ID: id, DentistID: dentistID}
	if !h.workingHourFromRequest(w, req, &wh) {
		return
	}

	updated, err := h.booking.UpdateWorkingHour(r.Context(), actor, wh)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toWorkingHourResponse(updated))
}

func (h *handlers) deleteWorkingHour(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	dentistID, ok := uuidParam(w, r, "dentistID")
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.booking.DeleteWorkingHour(r.Context(), actor, dentistID, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Blocked dates

func (h *handlers) listBlockedDates(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	dentistID, ok := uuidParam(w, r, "dentistID")
	if !ok {
		return
	}

	blocks, err := h.booking.ListBlockedDates(r.Context(), actor, dentistID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := make([]BlockedDateResponse, 0, len(blocks))
	for i := range blocks {
		resp = append(resp, toBlockedDateResponse(&blocks[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) createBlockedDate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	dentistID, ok := uuidParam(w, r, "dentistID")
	if !ok {
		return
	}

	var req BlockedDateRequest
	if !h.bind(w, r, &req) {
		return
	}

	date, err := time.ParseInLocation("2006-01-02", req.Date, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted as YYYY-MM-DD")
		return
	}

	bd := booking.BlockedDate{
		DentistID: dentistID,
		Date:      date,
		Reason:    req.Reason,
	}
	if req.StartTime != nil {
		m, err := booking.ParseTimeOfDay(*req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", err.Error())
			return
		}
		bd.StartMinute = &m
	}
	if req.EndTime != nil {
		m, err := booking.ParseTimeOfDay(*req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end_time", err.Error())
			return
		}
		bd.EndMinute = &m
	}

	created, err := h.booking.CreateBlockedDate(r.Context(), actor, bd)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBlockedDateResponse(created))
}

func (h *handlers) deleteBlockedDate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	dentistID, ok := uuidParam(w, r, "dentistID")
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.booking.DeleteBlockedDate(r.Context(), actor, dentistID, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
