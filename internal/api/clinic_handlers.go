package api

import (
	"net/http"

	"github.com/dentexa/clinic-scheduling/internal/clinic"
)

// Dentists

func (h *handlers) listDentists(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}

	limit, offset := pageParams(r)
	dentists, err := h.directory.ListDentists(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := make([]DentistResponse, 0, len(dentists))
	for i := range dentists {
		resp = append(resp, toDentistResponse(&dentists[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getDentist(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	id, ok := uuidParam(w, r, "dentistID")
	if !ok {
		return
	}

	d, err := h.directory.GetDentist(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toDentistResponse(d))
}

func (h *handlers) createDentist(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req DentistRequest
	if !h.bind(w, r, &req) {
		return
	}

	d, err := h.directory.CreateDentist(r.Context(), actor, clinic.Dentist{
		Name:      req.Name,
		Specialty: req.Specialty,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDentistResponse(d))
}

func (h *handlers) updateDentist(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "dentistID")
	if !ok {
		return
	}

	var req DentistRequest
	if !h.bind(w, r, &req) {
		return
	}

	d, err := h.directory.UpdateDentist(r.Context(), actor, clinic.Dentist{
		ID:        id,
		Name:      req.Name,
		Specialty: req.Specialty,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toDentistResponse(d))
}

func (h *handlers) deleteDentist(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "dentistID")
	if !ok {
		return
	}

	if err := h.directory.DeleteDentist(r.Context(), actor, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Patients

func (h *handlers) listPatients(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	limit, offset := pageParams(r)
	patients, err := h.directory.ListPatients(r.Context(), actor, limit, offset)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := make([]PatientResponse, 0, len(patients))
	for i := range patients {
		resp = append(resp, toPatientResponse(&patients[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getPatient(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "patientID")
	if !ok {
		return
	}

	p, err := h.directory.GetPatient(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toPatientResponse(p))
}

func (h *handlers) createPatient(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req PatientRequest
	if !h.bind(w, r, &req) {
		return
	}

	p, err := h.directory.CreatePatient(r.Context(), actor, clinic.Patient{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPatientResponse(p))
}

func (h *handlers) updatePatient(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "patientID")
	if !ok {
		return
	}

	var req PatientRequest
	if !h.bind(w, r, &req) {
		return
	}

	p, err := h.directory.UpdatePatient(r.Context(), actor, clinic.Patient{
		ID:    id,
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toPatientResponse(p))
}

func (h *handlers) deletePatient(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "patientID")
	if !ok {
		return
	}

	if err := h.directory.DeletePatient(r.Context(), actor, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Services

func (h *handlers) listServices(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}

	activeOnly := r.URL.Query().Get("active") == "true"
	services, err := h.directory.ListServices(r.Context(), activeOnly)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := make([]ServiceResponse, 0, len(services))
	for i := range services {
		resp = append(resp, toServiceResponse(&services[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getService(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	id, ok := uuidParam(w, r, "serviceID")
	if !ok {
		return
	}

	svc, err := h.directory.GetService(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toServiceResponse(svc))
}

func (h *handlers) serviceFromRequest(req ServiceRequest) clinic.Service {
	svc := clinic.Service{
		Name:            req.Name,
		Category:        req.Category,
		Price:           req.Price,
		DurationMinutes: req.DurationMinutes,
		IsActive:        true,
	}
	if req.IsActive != nil {
		svc.IsActive = *req.IsActive
	}
	return svc
}

func (h *handlers) createService(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req ServiceRequest
	if !h.bind(w, r, &req) {
		return
	}

	svc, err := h.directory.CreateService(r.Context(), actor, h.serviceFromRequest(req))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toServiceResponse(svc))
}

func (h *handlers) updateService(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "serviceID")
	if !ok {
		return
	}

	var req ServiceRequest
	if !h.bind(w, r, &req) {
		return
	}

	in := h.serviceFromRequest(req)
	in.ID = id

	svc, err := h.directory.UpdateService(r.Context(), actor, in)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toServiceResponse(svc))
}

func (h *handlers) deleteService(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "serviceID")
	if !ok {
		return
	}

	if err := h.directory.DeleteService(r.Context(), actor, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Admin

func (h *handlers) getStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	stats, err := h.directory.GetStats(r.Context(), actor)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
