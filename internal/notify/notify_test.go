package notify

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentexa/clinic-scheduling/internal/booking"
	"github.com/dentexa/clinic-scheduling/internal/clinic"
)

func TestEngineRender(t *testing.T) {
	e := NewEngine()

	subject, body, err := e.Render(TemplateBooked, map[string]string{
		"patient_name": "Pat",
		"date":         "2025-06-02",
		"time":         "09:00",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if subject != "Your appointment request for 2025-06-02" {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(body, "Dear Pat") || !strings.Contains(body, "09:00") {
		t.Errorf("body missing substitutions: %q", body)
	}
}

func TestEngineRenderUnknownTemplate(t *testing.T) {
	e := NewEngine()
	if _, _, err := e.Render("no-such-template", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestEngineRenderLeavesUnknownPlaceholders(t *testing.T) {
	e := NewEngine()
	e.Register(Template{ID: "t", Subject: "Hi {{name}}", Body: "{{missing}}"})

	subject, body, err := e.Render("t", map[string]string{"name": "Pat"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if subject != "Hi Pat" {
		t.Errorf("subject = %q", subject)
	}
	if body != "{{missing}}" {
		t.Errorf("unknown placeholder should stay visible, got %q", body)
	}
}

func TestLogSenderIncludesFromAddress(t *testing.T) {
	var buf bytes.Buffer
	s := &LogSender{
		Logger: zerolog.New(&buf),
		From:   "noreply@dentexa.example",
	}

	if err := s.SendEmail(context.Background(), "pat@example.com", "subject", "body"); err != nil {
		t.Fatalf("SendEmail: %v", err)
	}
	if !strings.Contains(buf.String(), `"from":"noreply@dentexa.example"`) {
		t.Errorf("log line missing from address: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"to":"pat@example.com"`) {
		t.Errorf("log line missing recipient: %s", buf.String())
	}
}

type capturingSender struct {
	mu   sync.Mutex
	sent []struct{ to, subject, body string }
}

func (s *capturingSender) SendEmail(ctx context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, struct{ to, subject, body string }{to, subject, body})
	return nil
}

type staticDirectory struct {
	patient *clinic.Patient
}

func (d *staticDirectory) GetPatientByID(ctx context.Context, id uuid.UUID) (*clinic.Patient, error) {
	if d.patient != nil && d.patient.ID == id {
		return d.patient, nil
	}
	return nil, clinic.ErrPatientNotFound
}

func testAppointment(patientID uuid.UUID) *booking.Appointment {
	return &booking.Appointment{
		ID:        uuid.New(),
		PatientID: patientID,
		DentistID: uuid.New(),
		StartTime: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		Status:    booking.StatusPending,
	}
}

func TestSendResolvesPatientAndRenders(t *testing.T) {
	email := "pat@example.com"
	patientID := uuid.New()
	sender := &capturingSender{}
	d := NewDispatcher(sender, &staticDirectory{
		patient: &clinic.Patient{ID: patientID, Name: "Pat", Email: &email},
	}, zerolog.Nop(), time.UTC)

	err := d.send(context.Background(), testAppointment(patientID), TemplateReminder, nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.to != email {
		t.Errorf("to = %q, want %q", msg.to, email)
	}
	if !strings.Contains(msg.subject, "2025-06-02") {
		t.Errorf("subject missing date: %q", msg.subject)
	}
}

func TestSendSkipsPatientWithoutEmail(t *testing.T) {
	patientID := uuid.New()
	sender := &capturingSender{}
	d := NewDispatcher(sender, &staticDirectory{
		patient: &clinic.Patient{ID: patientID, Name: "Pat"},
	}, zerolog.Nop(), time.UTC)

	if err := d.send(context.Background(), testAppointment(patientID), TemplateReminder, nil); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent %d emails, want 0 when patient has no email", len(sender.sent))
	}
}

func TestSendUnknownPatient(t *testing.T) {
	sender := &capturingSender{}
	d := NewDispatcher(sender, &staticDirectory{}, zerolog.Nop(), time.UTC)

	if err := d.send(context.Background(), testAppointment(uuid.New()), TemplateReminder, nil); err == nil {
		t.Fatal("expected error resolving unknown patient")
	}
}

func TestStatusChangedIncludesCancellationReason(t *testing.T) {
	email := "pat@example.com"
	patientID := uuid.New()
	sender := &capturingSender{}
	d := NewDispatcher(sender, &staticDirectory{
		patient: &clinic.Patient{ID: patientID, Name: "Pat", Email: &email},
	}, zerolog.Nop(), time.UTC)

	reason := "clinic closed for maintenance"
	appt := testAppointment(patientID)
	appt.Status = booking.StatusCancelled
	appt.CancellationReason = &reason

	err := d.send(context.Background(), appt, TemplateStatusChanged, map[string]string{
		"old_status": string(booking.StatusConfirmed),
		"status":     string(appt.Status),
		"extra":      " Reason: " + reason,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].body, reason) {
		t.Errorf("body should name the cancellation reason: %q", sender.sent[0].body)
	}
}
