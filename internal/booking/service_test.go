package booking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentexa/clinic-scheduling/internal/clinic"
	redisclient "github.com/dentexa/clinic-scheduling/internal/redis"
)

// memRepo is an in-memory Repository with the same conditional-update and
// guarded-insert semantics as the Postgres implementation. beforeCreate, when
// set, runs once just before the next appointment insert so tests can commit
// a competing row inside the check-then-act window.
type memRepo struct {
	mu           sync.Mutex
	workingHours map[uuid.UUID]*WorkingHour
	blockedDates map[uuid.UUID]*BlockedDate
	appointments map[uuid.UUID]*Appointment
	beforeCreate func()
}

func newMemRepo() *memRepo {
	return &memRepo{
		workingHours: make(map[uuid.UUID]*WorkingHour),
		blockedDates: make(map[uuid.UUID]*BlockedDate),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

func (r *memRepo) ListWorkingHours(ctx context.Context, dentistID uuid.UUID) ([]WorkingHour, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []WorkingHour
	for _, wh := range r.workingHours {
		if wh.DentistID == dentistID {
			out = append(out, *wh)
		}
	}
	return out, nil
}

func (r *memRepo) ListActiveWorkingHours(ctx context.Context, dentistID uuid.UUID, weekday time.Weekday) ([]WorkingHour, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []WorkingHour
	for _, wh := range r.workingHours {
		if wh.DentistID == dentistID && wh.Weekday == weekday && wh.IsActive {
			out = append(out, *wh)
		}
	}
	return out, nil
}

func (r *memRepo) CreateWorkingHour(ctx context.Context, wh WorkingHour) (*WorkingHour, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wh.ID = uuid.New()
	r.workingHours[wh.ID] = &wh
	copied := wh
	return &copied, nil
}

func (r *memRepo) UpdateWorkingHour(ctx context.Context, wh WorkingHour) (*WorkingHour, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.workingHours[wh.ID]
	if !ok || existing.DentistID != wh.DentistID {
		return nil, ErrWorkingHourNotFound
	}
	*existing = wh
	copied := wh
	return &copied, nil
}

func (r *memRepo) DeleteWorkingHour(ctx context.Context, dentistID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.workingHours[id]
	if !ok || existing.DentistID != dentistID {
		return ErrWorkingHourNotFound
	}
	delete(r.workingHours, id)
	return nil
}

func (r *memRepo) ListBlockedDates(ctx context.Context, dentistID uuid.UUID, from time.Time) ([]BlockedDate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []BlockedDate
	for _, bd := range r.blockedDates {
		if bd.DentistID == dentistID && !bd.Date.Before(from) {
			out = append(out, *bd)
		}
	}
	return out, nil
}

func (r *memRepo) ListBlockedDatesForDay(ctx context.Context, dentistID uuid.UUID, day time.Time) ([]BlockedDate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []BlockedDate
	for _, bd := range r.blockedDates {
		if bd.DentistID == dentistID && bd.Date.Equal(day) {
			out = append(out, *bd)
		}
	}
	return out, nil
}

func (r *memRepo) CreateBlockedDate(ctx context.Context, bd BlockedDate) (*BlockedDate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bd.ID = uuid.New()
	r.blockedDates[bd.ID] = &bd
	copied := bd
	return &copied, nil
}

func (r *memRepo) DeleteBlockedDate(ctx context.Context, dentistID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.blockedDates[id]
	if !ok || existing.DentistID != dentistID {
		return ErrBlockedDateNotFound
	}
	delete(r.blockedDates, id)
	return nil
}

func (r *memRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *memRepo) ListActiveAppointments(ctx context.Context, dentistID uuid.UUID, dayStart, dayEnd time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.DentistID != dentistID {
			continue
		}
		active := false
		for _, st := range ActiveStatuses {
			if a.Status == st {
				active = true
				break
			}
		}
		if !active {
			continue
		}
		if a.StartTime.Before(dayEnd) && a.EndTime().After(dayStart) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memRepo) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memRepo) ListAppointmentsByDentist(ctx context.Context, dentistID uuid.UUID, limit, offset int) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.DentistID == dentistID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memRepo) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	if hook := r.beforeCreate; hook != nil {
		r.beforeCreate = nil
		hook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.overlapsActiveLocked(a) {
		return nil, ErrSlotUnavailable
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	r.appointments[a.ID] = &a
	copied := a
	return &copied, nil
}

// overlapsActiveLocked mirrors the SQL insert guard: an insert is refused
// when any active appointment for the dentist overlaps the half-open
// interval of the candidate row.
func (r *memRepo) overlapsActiveLocked(a Appointment) bool {
	for _, other := range r.appointments {
		if other.DentistID != a.DentistID {
			continue
		}
		active := false
		for _, st := range ActiveStatuses {
			if other.Status == st {
				active = true
				break
			}
		}
		if !active {
			continue
		}
		if other.StartTime.Before(a.EndTime()) && a.StartTime.Before(other.EndTime()) {
			return true
		}
	}
	return false
}

func (r *memRepo) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitionLocked(id, from, to)
}

func (r *memRepo) transitionLocked(id uuid.UUID, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error) {
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	matched := false
	for _, st := range from {
		if a.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	copied := *a
	return &copied, nil
}

func (r *memRepo) CancelAppointment(ctx context.Context, id uuid.UUID, from []AppointmentStatus, reason string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.transitionLocked(id, from, StatusCancelled)
	if err != nil {
		return nil, err
	}
	r.appointments[id].CancellationReason = &reason
	a.CancellationReason = &reason
	return a, nil
}

func (r *memRepo) CompleteAppointment(ctx context.Context, id uuid.UUID, treatmentNotes *string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.transitionLocked(id, []AppointmentStatus{StatusConfirmed}, StatusCompleted)
	if err != nil {
		return nil, err
	}
	if treatmentNotes != nil {
		r.appointments[id].TreatmentNotes = treatmentNotes
		a.TreatmentNotes = treatmentNotes
	}
	return a, nil
}

func (r *memRepo) RescheduleAppointment(ctx context.Context, originalID uuid.UUID, cancelReason string, replacement Appointment) (*Appointment, error) {
	if hook := r.beforeCreate; hook != nil {
		r.beforeCreate = nil
		hook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	prevStatus := AppointmentStatus("")
	var prevReason *string
	if orig, ok := r.appointments[originalID]; ok {
		prevStatus = orig.Status
		prevReason = orig.CancellationReason
	}

	if _, err := r.transitionLocked(originalID, []AppointmentStatus{StatusPending, StatusSuggested, StatusConfirmed}, StatusCancelled); err != nil {
		return nil, err
	}
	r.appointments[originalID].CancellationReason = &cancelReason

	// The original is cancelled at this point, so the guard only sees other
	// active rows, matching the transactional SQL ordering. A refused insert
	// rolls the cancel back the way the surrounding transaction would.
	if r.overlapsActiveLocked(replacement) {
		r.appointments[originalID].Status = prevStatus
		r.appointments[originalID].CancellationReason = prevReason
		return nil, ErrSlotUnavailable
	}

	replacement.ID = uuid.New()
	replacement.CreatedAt = time.Now()
	replacement.UpdatedAt = replacement.CreatedAt
	r.appointments[replacement.ID] = &replacement
	copied := replacement
	return &copied, nil
}

func (r *memRepo) FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.Status == StatusConfirmed && a.RemindedAt == nil &&
			!a.StartTime.Before(from) && a.StartTime.Before(to) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memRepo) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.RemindedAt = &at
	return nil
}

// fakeLocker runs the callback inline; when busy is set it refuses the lock.
type fakeLocker struct {
	busy  bool
	calls int
}

func (l *fakeLocker) WithCalendarLock(ctx context.Context, dentistID uuid.UUID, day time.Time, fn func(ctx context.Context) error) error {
	l.calls++
	if l.busy {
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}

// fakeDirectory serves dentists, patients and services from maps.
type fakeDirectory struct {
	dentists map[uuid.UUID]*clinic.Dentist
	patients map[uuid.UUID]*clinic.Patient
	services map[uuid.UUID]*clinic.Service
}

func (d *fakeDirectory) GetDentistByID(ctx context.Context, id uuid.UUID) (*clinic.Dentist, error) {
	if dent, ok := d.dentists[id]; ok {
		return dent, nil
	}
	return nil, clinic.ErrDentistNotFound
}

func (d *fakeDirectory) GetPatientByID(ctx context.Context, id uuid.UUID) (*clinic.Patient, error) {
	if p, ok := d.patients[id]; ok {
		return p, nil
	}
	return nil, clinic.ErrPatientNotFound
}

func (d *fakeDirectory) GetServiceByID(ctx context.Context, id uuid.UUID) (*clinic.Service, error) {
	if s, ok := d.services[id]; ok {
		return s, nil
	}
	return nil, clinic.ErrServiceNotFound
}

// recordingNotifier counts notifications synchronously.
type recordingNotifier struct {
	mu          sync.Mutex
	booked      int
	statusCalls int
	rescheduled int
	reminders   int
}

func (n *recordingNotifier) AppointmentBooked(ctx context.Context, a *Appointment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.booked++
}

func (n *recordingNotifier) AppointmentStatusChanged(ctx context.Context, a *Appointment, old AppointmentStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statusCalls++
}

func (n *recordingNotifier) AppointmentRescheduled(ctx context.Context, original, replacement *Appointment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rescheduled++
}

func (n *recordingNotifier) AppointmentReminder(ctx context.Context, a *Appointment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminders++
}

// Fixture

type fixture struct {
	svc      *Service
	repo     *memRepo
	locker   *fakeLocker
	notifier *recordingNotifier

	dentistID uuid.UUID
	patientID uuid.UUID
	serviceID uuid.UUID

	patient clinic.Actor
	dentist clinic.Actor
	admin   clinic.Actor

	// monday is the next working day after the fixed clock.
	monday time.Time
}

// fixedNow is a Sunday evening; the following Monday has working hours.
var fixedNow = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:      newMemRepo(),
		locker:    &fakeLocker{},
		notifier:  &recordingNotifier{},
		dentistID: uuid.New(),
		patientID: uuid.New(),
		serviceID: uuid.New(),
		monday:    time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	}

	f.patient = clinic.Actor{ID: f.patientID, Role: clinic.RolePatient}
	f.dentist = clinic.Actor{ID: f.dentistID, Role: clinic.RoleDentist}
	f.admin = clinic.Actor{ID: uuid.New(), Role: clinic.RoleAdmin}

	email := "pat@example.com"
	directory := &fakeDirectory{
		dentists: map[uuid.UUID]*clinic.Dentist{
			f.dentistID: {ID: f.dentistID, Name: "Dr. Molar"},
		},
		patients: map[uuid.UUID]*clinic.Patient{
			f.patientID: {ID: f.patientID, Name: "Pat", Email: &email},
		},
		services: map[uuid.UUID]*clinic.Service{
			f.serviceID: {ID: f.serviceID, Name: "Checkup", Price: 90, DurationMinutes: 30, IsActive: true},
		},
	}

	f.svc = NewService(f.repo, directory, f.locker, f.notifier, zerolog.Nop(), time.UTC)
	f.svc.now = func() time.Time { return fixedNow }

	// Monday 09:00-12:00.
	f.repo.workingHours[uuid.New()] = &WorkingHour{
		ID:          uuid.New(),
		DentistID:   f.dentistID,
		Weekday:     time.Monday,
		StartMinute: 9 * 60,
		EndMinute:   12 * 60,
		IsActive:    true,
	}

	return f
}

func (f *fixture) at(hour, min int) time.Time {
	return time.Date(2025, 6, 2, hour, min, 0, 0, time.UTC)
}

func (f *fixture) book(t *testing.T, hour, min int) *Appointment {
	t.Helper()
	appt, err := f.svc.CreateAppointment(context.Background(), f.patient, CreateAppointmentInput{
		PatientID: f.patientID,
		DentistID: f.dentistID,
		ServiceID: f.serviceID,
		StartTime: f.at(hour, min),
	})
	if err != nil {
		t.Fatalf("CreateAppointment at %02d:%02d: %v", hour, min, err)
	}
	return appt
}

// Availability

func TestAvailabilityOpenDay(t *testing.T) {
	f := newFixture(t)

	spans, err := f.svc.Availability(context.Background(), f.patient, f.dentistID, f.monday, 30)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}

	want := []Span{{Start: 540, End: 720}}
	if len(spans) != 1 || spans[0] != want[0] {
		t.Errorf("Availability = %v, want %v", spans, want)
	}
}

func TestAvailabilityAfterBooking(t *testing.T) {
	f := newFixture(t)
	f.book(t, 9, 0)

	spans, err := f.svc.Availability(context.Background(), f.patient, f.dentistID, f.monday, 30)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}

	want := Span{Start: 570, End: 720} // 09:30-12:00
	if len(spans) != 1 || spans[0] != want {
		t.Errorf("Availability after booking = %v, want [%v]", spans, want)
	}
}

func TestAvailabilityCancelledFreesInterval(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 9, 0)

	if _, err := f.svc.CancelAppointment(context.Background(), f.patient, appt.ID, "feeling better"); err != nil {
		t.Fatalf("CancelAppointment: %v", err)
	}

	spans, err := f.svc.Availability(context.Background(), f.patient, f.dentistID, f.monday, 30)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	want := Span{Start: 540, End: 720}
	if len(spans) != 1 || spans[0] != want {
		t.Errorf("Availability after cancel = %v, want [%v]", spans, want)
	}
}

func TestAvailabilityFullDayBlock(t *testing.T) {
	f := newFixture(t)
	f.repo.blockedDates[uuid.New()] = &BlockedDate{
		ID: uuid.New(), DentistID: f.dentistID, Date: f.monday,
	}

	spans, err := f.svc.Availability(context.Background(), f.patient, f.dentistID, f.monday, 30)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	if len(spans) != 0 {
		t.Errorf("expected no availability on fully blocked day, got %v", spans)
	}
}

func TestAvailabilityPartialBlock(t *testing.T) {
	f := newFixture(t)
	start, end := 10*60, 11*60
	f.repo.blockedDates[uuid.New()] = &BlockedDate{
		ID: uuid.New(), DentistID: f.dentistID, Date: f.monday,
		StartMinute: &start, EndMinute: &end,
	}

	spans, err := f.svc.Availability(context.Background(), f.patient, f.dentistID, f.monday, 30)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	want := []Span{{540, 600}, {660, 720}}
	if len(spans) != 2 || spans[0] != want[0] || spans[1] != want[1] {
		t.Errorf("Availability with partial block = %v, want %v", spans, want)
	}
}

func TestAvailabilityNoWorkingHours(t *testing.T) {
	f := newFixture(t)
	tuesday := f.monday.AddDate(0, 0, 1)

	spans, err := f.svc.Availability(context.Background(), f.patient, f.dentistID, tuesday, 30)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	if len(spans) != 0 {
		t.Errorf("expected no availability on day without working hours, got %v", spans)
	}
}

func TestAvailabilityPastDate(t *testing.T) {
	f := newFixture(t)
	past := f.monday.AddDate(0, 0, -7)

	_, err := f.svc.Availability(context.Background(), f.patient, f.dentistID, past, 30)
	var verr *clinic.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for past date, got %v", err)
	}
}

func TestAvailabilityUnknownDentist(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Availability(context.Background(), f.patient, uuid.New(), f.monday, 30)
	if !errors.Is(err, clinic.ErrDentistNotFound) {
		t.Fatalf("expected ErrDentistNotFound, got %v", err)
	}
}

// Booking

func TestCreateAppointment(t *testing.T) {
	f := newFixture(t)

	appt := f.book(t, 9, 0)

	if appt.Status != StatusPending {
		t.Errorf("new appointment status = %s, want pending", appt.Status)
	}
	if appt.DurationMinutes != 30 {
		t.Errorf("duration = %d, want snapshot of service duration 30", appt.DurationMinutes)
	}
	if appt.Cost != 90 {
		t.Errorf("cost = %.2f, want snapshot of service price 90", appt.Cost)
	}
	if f.notifier.booked != 1 {
		t.Errorf("booked notifications = %d, want 1", f.notifier.booked)
	}
}

func TestCreateAppointmentConflict(t *testing.T) {
	f := newFixture(t)
	f.book(t, 9, 0)

	_, err := f.svc.CreateAppointment(context.Background(), f.patient, CreateAppointmentInput{
		PatientID: f.patientID,
		DentistID: f.dentistID,
		ServiceID: f.serviceID,
		StartTime: f.at(9, 15), // overlaps 09:00-09:30
	})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestCreateAppointmentInsertGuard(t *testing.T) {
	f := newFixture(t)

	// A competing booking commits between the availability check and the
	// insert, as happens when a lock holder outlives the lock TTL and a
	// second booker acquires the expired lock. The insert itself must refuse
	// the overlapping row.
	f.repo.beforeCreate = func() {
		f.repo.mu.Lock()
		defer f.repo.mu.Unlock()
		id := uuid.New()
		f.repo.appointments[id] = &Appointment{
			ID:              id,
			PatientID:       uuid.New(),
			DentistID:       f.dentistID,
			ServiceID:       f.serviceID,
			StartTime:       f.at(9, 0),
			DurationMinutes: 30,
			Status:          StatusConfirmed,
		}
	}

	_, err := f.svc.CreateAppointment(context.Background(), f.patient, CreateAppointmentInput{
		PatientID: f.patientID,
		DentistID: f.dentistID,
		ServiceID: f.serviceID,
		StartTime: f.at(9, 15), // overlaps the row committed mid-flight
	})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable from the insert guard, got %v", err)
	}
	if len(f.repo.appointments) != 1 {
		t.Errorf("appointments = %d, want only the competing row", len(f.repo.appointments))
	}
}

func TestRescheduleInsertGuard(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 9, 0)

	f.repo.beforeCreate = func() {
		f.repo.mu.Lock()
		defer f.repo.mu.Unlock()
		id := uuid.New()
		f.repo.appointments[id] = &Appointment{
			ID:              id,
			PatientID:       uuid.New(),
			DentistID:       f.dentistID,
			ServiceID:       f.serviceID,
			StartTime:       f.at(10, 0),
			DurationMinutes: 30,
			Status:          StatusConfirmed,
		}
	}

	_, err := f.svc.RescheduleAppointment(context.Background(), f.dentist, appt.ID, f.at(10, 15))
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable from the insert guard, got %v", err)
	}

	// The refused insert takes the cancel down with it: the original still
	// occupies its slot.
	got, err := f.repo.GetAppointmentByID(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("GetAppointmentByID: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("original status = %s, want pending after rolled-back reschedule", got.Status)
	}
	if got.CancellationReason != nil {
		t.Errorf("original cancellation reason = %q, want none", *got.CancellationReason)
	}
}

func TestCreateAppointmentBackToBack(t *testing.T) {
	f := newFixture(t)
	f.book(t, 9, 0)
	// 09:30 starts exactly where the first ends; half-open intervals make
	// this a valid booking.
	f.book(t, 9, 30)
}

func TestCreateAppointmentOutsideWorkingHours(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateAppointment(context.Background(), f.patient, CreateAppointmentInput{
		PatientID: f.patientID,
		DentistID: f.dentistID,
		ServiceID: f.serviceID,
		StartTime: f.at(11, 45), // runs past 12:00
	})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable for slot crossing closing time, got %v", err)
	}
}

func TestCreateAppointmentCalendarBusy(t *testing.T) {
	f := newFixture(t)
	f.locker.busy = true

	_, err := f.svc.CreateAppointment(context.Background(), f.patient, CreateAppointmentInput{
		PatientID: f.patientID,
		DentistID: f.dentistID,
		ServiceID: f.serviceID,
		StartTime: f.at(9, 0),
	})
	if !errors.Is(err, ErrCalendarBusy) {
		t.Fatalf("expected ErrCalendarBusy, got %v", err)
	}
}

func TestCreateAppointmentForOtherPatientForbidden(t *testing.T) {
	f := newFixture(t)
	other := clinic.Actor{ID: uuid.New(), Role: clinic.RolePatient}

	_, err := f.svc.CreateAppointment(context.Background(), other, CreateAppointmentInput{
		PatientID: f.patientID,
		DentistID: f.dentistID,
		ServiceID: f.serviceID,
		StartTime: f.at(9, 0),
	})
	if !errors.Is(err, clinic.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCreateAppointmentAsDentistForbidden(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateAppointment(context.Background(), f.dentist, CreateAppointmentInput{
		PatientID: f.patientID,
		DentistID: f.dentistID,
		ServiceID: f.serviceID,
		StartTime: f.at(9, 0),
	})
	if !errors.Is(err, clinic.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCreateAppointmentInactiveService(t *testing.T) {
	f := newFixture(t)
	inactiveID := uuid.New()
	directory := f.svc.directory.(*fakeDirectory)
	directory.services[inactiveID] = &clinic.Service{
		ID: inactiveID, Name: "Retired", Price: 10, DurationMinutes: 30, IsActive: false,
	}

	_, err := f.svc.CreateAppointment(context.Background(), f.patient, CreateAppointmentInput{
		PatientID: f.patientID,
		DentistID: f.dentistID,
		ServiceID: inactiveID,
		StartTime: f.at(9, 0),
	})
	var verr *clinic.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for inactive service, got %v", err)
	}
}

func TestCreateAppointmentInPast(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateAppointment(context.Background(), f.patient, CreateAppointmentInput{
		PatientID: f.patientID,
		DentistID: f.dentistID,
		ServiceID: f.serviceID,
		StartTime: fixedNow.Add(-time.Hour),
	})
	var verr *clinic.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for past start, got %v", err)
	}
}

// Status transitions

func TestConfirmAppointment(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 9, 0)

	confirmed, err := f.svc.ConfirmAppointment(context.Background(), f.dentist, appt.ID)
	if err != nil {
		t.Fatalf("ConfirmAppointment: %v", err)
	}
	if confirmed.Status != StatusConfirmed {
		t.Errorf("status = %s, want confirmed", confirmed.Status)
	}
}

func TestConfirmByPatientForbidden(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 9, 0)

	_, err := f.svc.ConfirmAppointment(context.Background(), f.patient, appt.ID)
	if !errors.Is(err, clinic.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestConfirmByOtherDentistForbidden(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 9, 0)
	other := clinic.Actor{ID: uuid.New(), Role: clinic.RoleDentist}

	_, err := f.svc.ConfirmAppointment(context.Background(), other, appt.ID)
	if !errors.Is(err, clinic.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestConfirmCancelledAppointment(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 9, 0)
	if _, err := f.svc.CancelAppointment(context.Background(), f.patient, appt.ID, "conflict"); err != nil {
		t.Fatalf("CancelAppointment: %v", err)
	}

	_, err := f.svc.ConfirmAppointment(context.Background(), f.dentist, appt.ID)
	if !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}
}

func TestCancelRequiresReason(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 9, 0)

	_, err := f.svc.CancelAppointment(context.Background(), f.patient, appt.ID, "   ")
	var verr *clinic.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for empty reason, got %v", err)
	}
}

func TestCancelByDentist(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 9, 0)

	cancelled, err := f.svc.CancelAppointment(context.Background(), f.dentist, appt.ID, "emergency closure")
	if err != nil {
		t.Fatalf("CancelAppointment: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
	if cancelled.CancellationReason == nil || *cancelled.CancellationReason != "emergency closure" {
		t.Errorf("cancellation reason not stored: %v", cancelled.CancellationReason)
	}
}

func TestCancelCompletedAppointment(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 9, 0)
	if _, err := f.svc.ConfirmAppointment(context.Background(), f.dentist, appt.ID); err != nil {
		t.Fatalf("ConfirmAppointment: %v", err)
	}
	if _, err := f.svc.CompleteAppointment(context.Background(), f.dentist, appt.ID, nil); err != nil {
		t.Fatalf("CompleteAppointment: %v", err)
	}

	_, err := f.svc.CancelAppointment(context.Background(), f.patient, appt.ID, "too late")
	if !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}
}

func TestCompleteRequiresConfirmed(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 9, 0)

	_, err := f.svc.CompleteAppointment(context.Background(), f.dentist, appt.ID, nil)
	if !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition completing a pending appointment, got %v", err)
	}
}

func TestCompleteStoresTreatmentNotes(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 9, 0)
	if _, err := f.svc.ConfirmAppointment(context.Background(), f.dentist, appt.ID); err != nil {
		t.Fatalf("ConfirmAppointment: %v", err)
	}

	notes := "two fillings, lower left"
	completed, err := f.svc.CompleteAppointment(context.Background(), f.dentist, appt.ID, &notes)
	if err != nil {
		t.Fatalf("CompleteAppointment: %v", err)
	}
	if completed.TreatmentNotes == nil || *completed.TreatmentNotes != notes {
		t.Errorf("treatment notes not stored: %v", completed.TreatmentNotes)
	}
}

// Reschedule

func TestRescheduleAppointment(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 9, 0)

	replacement, err := f.svc.RescheduleAppointment(context.Background(), f.dentist, appt.ID, f.at(10, 0))
	if err != nil {
		t.Fatalf("RescheduleAppointment: %v", err)
	}

	if replacement.ID == appt.ID {
		t.Fatal("replacement must be a new appointment row")
	}
	if replacement.Status != StatusPending {
		t.Errorf("replacement status = %s, want pending", replacement.Status)
	}
	if replacement.Cost != appt.Cost || replacement.DurationMinutes != appt.DurationMinutes {
		t.Error("replacement must carry the original cost and duration")
	}

	original, err := f.repo.GetAppointmentByID(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("GetAppointmentByID: %v", err)
	}
	if original.Status != StatusCancelled {
		t.Errorf("original status = %s, want cancelled", original.Status)
	}
	if original.CancellationReason == nil || !strings.Contains(*original.CancellationReason, "2025-06-02 10:00") {
		t.Errorf("cancellation reason should name the new time, got %v", original.CancellationReason)
	}
	if f.notifier.rescheduled != 1 {
		t.Errorf("rescheduled notifications = %d, want 1", f.notifier.rescheduled)
	}
}

// The original appointment's own interval must not count as busy when
// validating the new time: moving 09:00 to 09:15 overlaps itself only.
func TestRescheduleOntoOwnInterval(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 9, 0)

	if _, err := f.svc.RescheduleAppointment(context.Background(), f.dentist, appt.ID, f.at(9, 15)); err != nil {
		t.Fatalf("RescheduleAppointment onto own interval: %v", err)
	}
}

func TestRescheduleOntoOccupiedSlot(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 9, 0)
	f.book(t, 10, 0)

	_, err := f.svc.RescheduleAppointment(context.Background(), f.dentist, appt.ID, f.at(10, 15))
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestRescheduleByPatientForbidden(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 9, 0)

	_, err := f.svc.RescheduleAppointment(context.Background(), f.patient, appt.ID, f.at(10, 0))
	if !errors.Is(err, clinic.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRescheduleCancelledAppointment(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 9, 0)
	if _, err := f.svc.CancelAppointment(context.Background(), f.patient, appt.ID, "conflict"); err != nil {
		t.Fatalf("CancelAppointment: %v", err)
	}

	_, err := f.svc.RescheduleAppointment(context.Background(), f.dentist, appt.ID, f.at(10, 0))
	if !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}
}

// Reads

func TestGetAppointmentVisibility(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 9, 0)

	if _, err := f.svc.GetAppointment(context.Background(), f.patient, appt.ID); err != nil {
		t.Errorf("patient should see their appointment: %v", err)
	}
	if _, err := f.svc.GetAppointment(context.Background(), f.dentist, appt.ID); err != nil {
		t.Errorf("dentist should see their appointment: %v", err)
	}
	if _, err := f.svc.GetAppointment(context.Background(), f.admin, appt.ID); err != nil {
		t.Errorf("admin should see any appointment: %v", err)
	}

	stranger := clinic.Actor{ID: uuid.New(), Role: clinic.RolePatient}
	if _, err := f.svc.GetAppointment(context.Background(), stranger, appt.ID); !errors.Is(err, clinic.ErrForbidden) {
		t.Errorf("stranger should be forbidden, got %v", err)
	}
}

func TestListPatientAppointmentsScoped(t *testing.T) {
	f := newFixture(t)
	f.book(t, 9, 0)

	stranger := clinic.Actor{ID: uuid.New(), Role: clinic.RolePatient}
	if _, err := f.svc.ListPatientAppointments(context.Background(), stranger, f.patientID, 20, 0); !errors.Is(err, clinic.ErrForbidden) {
		t.Errorf("expected ErrForbidden listing another patient's appointments, got %v", err)
	}

	appts, err := f.svc.ListPatientAppointments(context.Background(), f.patient, f.patientID, 20, 0)
	if err != nil {
		t.Fatalf("ListPatientAppointments: %v", err)
	}
	if len(appts) != 1 {
		t.Errorf("got %d appointments, want 1", len(appts))
	}
}

// Working hours

func TestCreateWorkingHourValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateWorkingHour(context.Background(), f.dentist, WorkingHour{
		DentistID:   f.dentistID,
		Weekday:     time.Tuesday,
		StartMinute: 600,
		EndMinute:   540,
		IsActive:    true,
	})
	var verr *clinic.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for inverted interval, got %v", err)
	}
}

func TestCreateWorkingHourForOtherDentistForbidden(t *testing.T) {
	f := newFixture(t)
	other := clinic.Actor{ID: uuid.New(), Role: clinic.RoleDentist}

	_, err := f.svc.CreateWorkingHour(context.Background(), other, WorkingHour{
		DentistID:   f.dentistID,
		Weekday:     time.Tuesday,
		StartMinute: 540,
		EndMinute:   720,
		IsActive:    true,
	})
	if !errors.Is(err, clinic.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

// Multiple working-hour rows on the same weekday are unioned.
func TestAvailabilitySplitSchedule(t *testing.T) {
	f := newFixture(t)
	f.repo.workingHours[uuid.New()] = &WorkingHour{
		ID:          uuid.New(),
		DentistID:   f.dentistID,
		Weekday:     time.Monday,
		StartMinute: 14 * 60,
		EndMinute:   17 * 60,
		IsActive:    true,
	}

	spans, err := f.svc.Availability(context.Background(), f.patient, f.dentistID, f.monday, 30)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	want := []Span{{540, 720}, {840, 1020}}
	if len(spans) != 2 || spans[0] != want[0] || spans[1] != want[1] {
		t.Errorf("Availability = %v, want %v", spans, want)
	}
}

// Blocked dates

func TestCreateBlockedDatePartialNeedsBothEnds(t *testing.T) {
	f := newFixture(t)
	start := 600

	_, err := f.svc.CreateBlockedDate(context.Background(), f.dentist, BlockedDate{
		DentistID:   f.dentistID,
		Date:        f.monday,
		StartMinute: &start,
	})
	var verr *clinic.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for one-sided block, got %v", err)
	}
}

func TestCreateBlockedDateInPast(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateBlockedDate(context.Background(), f.dentist, BlockedDate{
		DentistID: f.dentistID,
		Date:      f.monday.AddDate(0, 0, -14),
	})
	var verr *clinic.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for past block, got %v", err)
	}
}

// Reminders

func TestSendDueReminders(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 9, 0)
	if _, err := f.svc.ConfirmAppointment(context.Background(), f.dentist, appt.ID); err != nil {
		t.Fatalf("ConfirmAppointment: %v", err)
	}

	if err := f.svc.SendDueReminders(context.Background(), 24*time.Hour); err != nil {
		t.Fatalf("SendDueReminders: %v", err)
	}
	if f.notifier.reminders != 1 {
		t.Fatalf("reminders sent = %d, want 1", f.notifier.reminders)
	}

	// A second run must not re-remind.
	if err := f.svc.SendDueReminders(context.Background(), 24*time.Hour); err != nil {
		t.Fatalf("SendDueReminders: %v", err)
	}
	if f.notifier.reminders != 1 {
		t.Fatalf("reminders sent after second run = %d, want still 1", f.notifier.reminders)
	}
}

func TestSendDueRemindersSkipsPending(t *testing.T) {
	f := newFixture(t)
	f.book(t, 9, 0) // never confirmed

	if err := f.svc.SendDueReminders(context.Background(), 24*time.Hour); err != nil {
		t.Fatalf("SendDueReminders: %v", err)
	}
	if f.notifier.reminders != 0 {
		t.Fatalf("reminders sent = %d, want 0 for unconfirmed appointment", f.notifier.reminders)
	}
}
