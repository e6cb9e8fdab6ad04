// Package notify renders appointment emails from templates and dispatches
// them asynchronously. Delivery failures are logged, never propagated into
// the workflow that triggered them.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentexa/clinic-scheduling/internal/booking"
	"github.com/dentexa/clinic-scheduling/internal/clinic"
)

// EmailSender delivers a rendered message.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// LogSender writes outbound mail to the log instead of delivering it.
// Stands in for a real provider in dev and in tests. From is the envelope
// sender a real provider would put on the wire.
type LogSender struct {
	Logger zerolog.Logger
	From   string
}

func (s *LogSender) SendEmail(ctx context.Context, to, subject, body string) error {
	s.Logger.Info().
		Str("from", s.From).
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("email (log sender)")
	return nil
}

// Template is a reusable message with {{placeholder}} substitution.
type Template struct {
	ID      string
	Subject string
	Body    string
}

const (
	TemplateBooked        = "appointment-booked"
	TemplateStatusChanged = "appointment-status-changed"
	TemplateRescheduled   = "appointment-rescheduled"
	TemplateReminder      = "appointment-reminder"
)

var builtInTemplates = []Template{
	{
		ID:      TemplateBooked,
		Subject: "Your appointment request for {{date}}",
		Body:    "Dear {{patient_name}}, your appointment on {{date}} at {{time}} has been requested and is awaiting confirmation.",
	},
	{
		ID:      TemplateStatusChanged,
		Subject: "Your appointment on {{date}} is now {{status}}",
		Body:    "Dear {{patient_name}}, your appointment on {{date}} at {{time}} changed from {{old_status}} to {{status}}.{{extra}}",
	},
	{
		ID:      TemplateRescheduled,
		Subject: "Your appointment has been moved to {{date}}",
		Body:    "Dear {{patient_name}}, your dentist suggested a new time: {{date}} at {{time}}. The previous appointment was cancelled.",
	},
	{
		ID:      TemplateReminder,
		Subject: "Reminder: appointment on {{date}}",
		Body:    "Dear {{patient_name}}, this is a reminder of your appointment on {{date}} at {{time}}.",
	},
}

// Engine holds the registered templates.
type Engine struct {
	templates map[string]Template
}

func NewEngine() *Engine {
	e := &Engine{templates: make(map[string]Template)}
	for _, t := range builtInTemplates {
		e.Register(t)
	}
	return e
}

func (e *Engine) Register(t Template) {
	e.templates[t.ID] = t
}

// Render substitutes {{key}} placeholders in the template's subject and body.
// Unknown placeholders are left in place so broken templates are visible.
func (e *Engine) Render(id string, data map[string]string) (subject, body string, err error) {
	t, ok := e.templates[id]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", id)
	}
	return substitute(t.Subject, data), substitute(t.Body, data), nil
}

func substitute(s string, data map[string]string) string {
	for k, v := range data {
		s = strings.ReplaceAll(s, "{{"+k+"}}", v)
	}
	return s
}

// PatientDirectory resolves the recipient of an appointment notification.
type PatientDirectory interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*clinic.Patient, error)
}

// Dispatcher implements booking.Notifier. Each notification runs in its own
// goroutine with a detached context so a slow provider cannot hold up the
// request that triggered it.
type Dispatcher struct {
	engine      *Engine
	sender      EmailSender
	directory   PatientDirectory
	logger      zerolog.Logger
	loc         *time.Location
	sendTimeout time.Duration
}

func NewDispatcher(sender EmailSender, directory PatientDirectory, logger zerolog.Logger, loc *time.Location) *Dispatcher {
	return &Dispatcher{
		engine:      NewEngine(),
		sender:      sender,
		directory:   directory,
		logger:      logger.With().Str("component", "notify").Logger(),
		loc:         loc,
		sendTimeout: 10 * time.Second,
	}
}

func (d *Dispatcher) AppointmentBooked(ctx context.Context, a *booking.Appointment) {
	d.dispatch(a, TemplateBooked, nil)
}

func (d *Dispatcher) AppointmentStatusChanged(ctx context.Context, a *booking.Appointment, old booking.AppointmentStatus) {
	extra := ""
	if a.Status == booking.StatusCancelled && a.CancellationReason != nil {
		extra = " Reason: " + *a.CancellationReason
	}
	d.dispatch(a, TemplateStatusChanged, map[string]string{
		"old_status": string(old),
		"status":     string(a.Status),
		"extra":      extra,
	})
}

func (d *Dispatcher) AppointmentRescheduled(ctx context.Context, original, replacement *booking.Appointment) {
	d.dispatch(replacement, TemplateRescheduled, nil)
}

func (d *Dispatcher) AppointmentReminder(ctx context.Context, a *booking.Appointment) {
	d.dispatch(a, TemplateReminder, nil)
}

// dispatch is fire and forget: the caller's transition has already committed
// and must not be rolled back by delivery problems.
func (d *Dispatcher) dispatch(a *booking.Appointment, templateID string, extra map[string]string) {
	appt := *a

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		defer cancel()

		if err := d.send(ctx, &appt, templateID, extra); err != nil {
			d.logger.Error().Err(err).
				Str("appointment_id", appt.ID.String()).
				Str("template", templateID).
				Msg("notification dispatch failed")
		}
	}()
}

func (d *Dispatcher) send(ctx context.Context, a *booking.Appointment, templateID string, extra map[string]string) error {
	patient, err := d.directory.GetPatientByID(ctx, a.PatientID)
	if err != nil {
		return fmt.Errorf("resolve patient: %w", err)
	}
	if patient.Email == nil || *patient.Email == "" {
		d.logger.Debug().Str("patient_id", patient.ID.String()).Msg("patient has no email, skipping notification")
		return nil
	}

	start := a.StartTime.In(d.loc)
	data := map[string]string{
		"patient_name": patient.Name,
		"date":         start.Format("2006-01-02"),
		"time":         start.Format("15:04"),
		"extra":        "",
	}
	for k, v := range extra {
		data[k] = v
	}

	subject, body, err := d.engine.Render(templateID, data)
	if err != nil {
		return err
	}

	return d.sender.SendEmail(ctx, *patient.Email, subject, body)
}
