package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/dentexa/clinic-scheduling/internal/booking"
	"github.com/dentexa/clinic-scheduling/internal/clinic"
)

// Requests

type CreateAppointmentRequest struct {
	PatientID string  `json:"patient_id" validate:"required,uuid"`
	DentistID string  `json:"dentist_id" validate:"required,uuid"`
	ServiceID string  `json:"service_id" validate:"required,uuid"`
	StartTime string  `json:"start_time" validate:"required"`
	Notes     *string `json:"notes,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type CompleteAppointmentRequest struct {
	TreatmentNotes *string `json:"treatment_notes,omitempty"`
}

type RescheduleAppointmentRequest struct {
	NewStartTime string `json:"new_start_time" validate:"required"`
}

type WorkingHourRequest struct {
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	IsActive  *bool  `json:"is_active,omitempty"`
}

type BlockedDateRequest struct {
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
	Reason    *string `json:"reason,omitempty"`
}

type DentistRequest struct {
	Name      string  `json:"name" validate:"required"`
	Specialty *string `json:"specialty,omitempty"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone     *string `json:"phone,omitempty"`
}

type PatientRequest struct {
	Name  string  `json:"name" validate:"required"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone *string `json:"phone,omitempty"`
}

type ServiceRequest struct {
	Name            string  `json:"name" validate:"required"`
	Category        *string `json:"category,omitempty"`
	Price           float64 `json:"price" validate:"min=0"`
	DurationMinutes int     `json:"duration_minutes" validate:"required,min=1"`
	IsActive        *bool   `json:"is_active,omitempty"`
}

// Responses

type SlotResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type AvailabilityResponse struct {
	DentistID uuid.UUID      `json:"dentist_id"`
	Date      string         `json:"date"`
	Slots     []SlotResponse `json:"slots"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID `json:"id"`
	PatientID          uuid.UUID `json:"patient_id"`
	DentistID          uuid.UUID `json:"dentist_id"`
	ServiceID          uuid.UUID `json:"service_id"`
	StartTime          time.Time `json:"start_time"`
	DurationMinutes    int       `json:"duration_minutes"`
	Status             string    `json:"status"`
	Notes              *string   `json:"notes,omitempty"`
	TreatmentNotes     *string   `json:"treatment_notes,omitempty"`
	Cost               float64   `json:"cost"`
	CancellationReason *string   `json:"cancellation_reason,omitempty"`
	IsPaid             bool      `json:"is_paid"`
	CreatedAt          time.Time `json:"created_at"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		PatientID:          a.PatientID,
		DentistID:          a.DentistID,
		ServiceID:          a.ServiceID,
		StartTime:          a.StartTime,
		DurationMinutes:    a.DurationMinutes,
		Status:             string(a.Status),
		Notes:              a.Notes,
		TreatmentNotes:     a.TreatmentNotes,
		Cost:               a.Cost,
		CancellationReason: a.CancellationReason,
		IsPaid:             a.IsPaid,
		CreatedAt:          a.CreatedAt,
	}
}

func toAppointmentResponses(in []booking.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(in))
	for i := range in {
		out = append(out, toAppointmentResponse(&in[i]))
	}
	return out
}

type WorkingHourResponse struct {
	ID        uuid.UUID `json:"id"`
	DentistID uuid.UUID `json:"dentist_id"`
	DayOfWeek int       `json:"day_of_week"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	IsActive  bool      `json:"is_active"`
}

func toWorkingHourResponse(wh *booking.WorkingHour) WorkingHourResponse {
	return WorkingHourResponse{
		ID:        wh.ID,
		DentistID: wh.DentistID,
		DayOfWeek: int(wh.Weekday),
		StartTime: booking.FormatTimeOfDay(wh.StartMinute),
		EndTime:   booking.FormatTimeOfDay(wh.EndMinute),
		IsActive:  wh.IsActive,
	}
}

type BlockedDateResponse struct {
	ID        uuid.UUID `json:"id"`
	DentistID uuid.UUID `json:"dentist_id"`
	Date      string    `json:"date"`
	StartTime *string   `json:"start_time,omitempty"`
	EndTime   *string   `json:"end_time,omitempty"`
	Reason    *string   `json:"reason,omitempty"`
}

func toBlockedDateResponse(bd *booking.BlockedDate) BlockedDateResponse {
	resp := BlockedDateResponse{
		ID:        bd.ID,
		DentistID: bd.DentistID,
		Date:      bd.Date.Format("2006-01-02"),
		Reason:    bd.Reason,
	}
	if bd.StartMinute != nil {
		s := booking.FormatTimeOfDay(*bd.StartMinute)
		resp.StartTime = &s
	}
	if bd.EndMinute != nil {
		e := booking.FormatTimeOfDay(*bd.EndMinute)
		resp.EndTime = &e
	}
	return resp
}

type DentistResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty *string   `json:"specialty,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
}

func toDentistResponse(d *clinic.Dentist) DentistResponse {
	return DentistResponse{ID: d.ID, Name: d.Name, Specialty: d.Specialty, Email: d.Email, Phone: d.Phone}
}

type PatientResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email *string   `json:"email,omitempty"`
	Phone *string   `json:"phone,omitempty"`
}

func toPatientResponse(p *clinic.Patient) PatientResponse {
	return PatientResponse{ID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone}
}

type ServiceResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Category        *string   `json:"category,omitempty"`
	Price           float64   `json:"price"`
	DurationMinutes int       `json:"duration_minutes"`
	IsActive        bool      `json:"is_active"`
}

func toServiceResponse(s *clinic.Service) ServiceResponse {
	return ServiceResponse{
		ID:              s.ID,
		Name:            s.Name,
		Category:        s.Category,
		Price:           s.Price,
		DurationMinutes: s.DurationMinutes,
		IsActive:        s.IsActive,
	}
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}
