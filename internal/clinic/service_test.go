package clinic

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type memRepo struct {
	dentists map[uuid.UUID]*Dentist
	patients map[uuid.UUID]*Patient
	services map[uuid.UUID]*Service
}

func newMemRepo() *memRepo {
	return &memRepo{
		dentists: make(map[uuid.UUID]*Dentist),
		patients: make(map[uuid.UUID]*Patient),
		services: make(map[uuid.UUID]*Service),
	}
}

func (r *memRepo) GetDentistByID(ctx context.Context, id uuid.UUID) (*Dentist, error) {
	if d, ok := r.dentists[id]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, ErrDentistNotFound
}

func (r *memRepo) ListDentists(ctx context.Context, limit, offset int) ([]Dentist, error) {
	var out []Dentist
	for _, d := range r.dentists {
		out = append(out, *d)
	}
	return out, nil
}

func (r *memRepo) CreateDentist(ctx context.Context, d Dentist) (*Dentist, error) {
	d.ID = uuid.New()
	r.dentists[d.ID] = &d
	copied := d
	return &copied, nil
}

func (r *memRepo) UpdateDentist(ctx context.Context, d Dentist) (*Dentist, error) {
	if _, ok := r.dentists[d.ID]; !ok {
		return nil, ErrDentistNotFound
	}
	r.dentists[d.ID] = &d
	copied := d
	return &copied, nil
}

func (r *memRepo) DeleteDentist(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.dentists[id]; !ok {
		return ErrDentistNotFound
	}
	delete(r.dentists, id)
	return nil
}

func (r *memRepo) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	if p, ok := r.patients[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, ErrPatientNotFound
}

func (r *memRepo) ListPatients(ctx context.Context, limit, offset int) ([]Patient, error) {
	var out []Patient
	for _, p := range r.patients {
		out = append(out, *p)
	}
	return out, nil
}

func (r *memRepo) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	p.ID = uuid.New()
	r.patients[p.ID] = &p
	copied := p
	return &copied, nil
}

func (r *memRepo) UpdatePatient(ctx context.Context, p Patient) (*Patient, error) {
	if _, ok := r.patients[p.ID]; !ok {
		return nil, ErrPatientNotFound
	}
	r.patients[p.ID] = &p
	copied := p
	return &copied, nil
}

func (r *memRepo) DeletePatient(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.patients[id]; !ok {
		return ErrPatientNotFound
	}
	delete(r.patients, id)
	return nil
}

func (r *memRepo) GetServiceByID(ctx context.Context, id uuid.UUID) (*Service, error) {
	if s, ok := r.services[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, ErrServiceNotFound
}

func (r *memRepo) ListServices(ctx context.Context, activeOnly bool) ([]Service, error) {
	var out []Service
	for _, s := range r.services {
		if activeOnly && !s.IsActive {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (r *memRepo) CreateService(ctx context.Context, s Service) (*Service, error) {
	s.ID = uuid.New()
	r.services[s.ID] = &s
	copied := s
	return &copied, nil
}

func (r *memRepo) UpdateService(ctx context.Context, s Service) (*Service, error) {
	if _, ok := r.services[s.ID]; !ok {
		return nil, ErrServiceNotFound
	}
	r.services[s.ID] = &s
	copied := s
	return &copied, nil
}

func (r *memRepo) DeleteService(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.services[id]; !ok {
		return ErrServiceNotFound
	}
	delete(r.services, id)
	return nil
}

func (r *memRepo) GetStats(ctx context.Context) (*Stats, error) {
	return &Stats{
		Dentists: len(r.dentists),
		Patients: len(r.patients),
	}, nil
}

var (
	admin   = Actor{ID: uuid.New(), Role: RoleAdmin}
	dentist = Actor{ID: uuid.New(), Role: RoleDentist}
	patient = Actor{ID: uuid.New(), Role: RolePatient}
)

func newTestService() (*DirectoryService, *memRepo) {
	repo := newMemRepo()
	return NewDirectoryService(repo, zerolog.Nop()), repo
}

func TestCreateDentistAdminOnly(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.CreateDentist(context.Background(), dentist, Dentist{Name: "Dr. A"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("dentist creating dentist: got %v, want ErrForbidden", err)
	}
	if _, err := svc.CreateDentist(context.Background(), patient, Dentist{Name: "Dr. A"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("patient creating dentist: got %v, want ErrForbidden", err)
	}

	created, err := svc.CreateDentist(context.Background(), admin, Dentist{Name: "Dr. A"})
	if err != nil {
		t.Fatalf("admin creating dentist: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Error("created dentist has no id")
	}
}

func TestCreateDentistEmptyName(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateDentist(context.Background(), admin, Dentist{Name: "   "})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateDentistOwnProfile(t *testing.T) {
	svc, repo := newTestService()
	created, err := svc.CreateDentist(context.Background(), admin, Dentist{Name: "Dr. A"})
	if err != nil {
		t.Fatalf("CreateDentist: %v", err)
	}

	self := Actor{ID: created.ID, Role: RoleDentist}
	updated, err := svc.UpdateDentist(context.Background(), self, Dentist{ID: created.ID, Name: "Dr. A, DDS"})
	if err != nil {
		t.Fatalf("dentist updating own profile: %v", err)
	}
	if updated.Name != "Dr. A, DDS" {
		t.Errorf("name = %q, want updated name", updated.Name)
	}

	other := Actor{ID: uuid.New(), Role: RoleDentist}
	if _, err := svc.UpdateDentist(context.Background(), other, Dentist{ID: created.ID, Name: "Dr. Mallory"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("other dentist updating profile: got %v, want ErrForbidden", err)
	}

	if repo.dentists[created.ID].Name != "Dr. A, DDS" {
		t.Error("repo should hold the legitimate update")
	}
}

func TestDeleteDentistAdminOnly(t *testing.T) {
	svc, _ := newTestService()
	created, err := svc.CreateDentist(context.Background(), admin, Dentist{Name: "Dr. A"})
	if err != nil {
		t.Fatalf("CreateDentist: %v", err)
	}

	if err := svc.DeleteDentist(context.Background(), dentist, created.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("dentist deleting dentist: got %v, want ErrForbidden", err)
	}
	if err := svc.DeleteDentist(context.Background(), admin, created.ID); err != nil {
		t.Errorf("admin deleting dentist: %v", err)
	}
	if err := svc.DeleteDentist(context.Background(), admin, created.ID); !errors.Is(err, ErrDentistNotFound) {
		t.Errorf("deleting twice: got %v, want ErrDentistNotFound", err)
	}
}

func TestGetPatientScoped(t *testing.T) {
	svc, _ := newTestService()
	created, err := svc.CreatePatient(context.Background(), admin, Patient{Name: "Pat"})
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}

	self := Actor{ID: created.ID, Role: RolePatient}
	if _, err := svc.GetPatient(context.Background(), self, created.ID); err != nil {
		t.Errorf("patient reading own record: %v", err)
	}
	if _, err := svc.GetPatient(context.Background(), patient, created.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("patient reading another record: got %v, want ErrForbidden", err)
	}
	if _, err := svc.GetPatient(context.Background(), dentist, created.ID); err != nil {
		t.Errorf("dentist reading patient record: %v", err)
	}
}

func TestListPatientsForbiddenForPatients(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.ListPatients(context.Background(), patient, 20, 0); !errors.Is(err, ErrForbidden) {
		t.Errorf("patient listing patients: got %v, want ErrForbidden", err)
	}
	if _, err := svc.ListPatients(context.Background(), dentist, 20, 0); err != nil {
		t.Errorf("dentist listing patients: %v", err)
	}
}

func TestCreateServiceValidation(t *testing.T) {
	svc, _ := newTestService()

	tests := []struct {
		name string
		in   Service
	}{
		{"empty name", Service{Name: "", Price: 10, DurationMinutes: 30}},
		{"zero duration", Service{Name: "Checkup", Price: 10, DurationMinutes: 0}},
		{"negative price", Service{Name: "Checkup", Price: -1, DurationMinutes: 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateService(context.Background(), admin, tt.in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}

	if _, err := svc.CreateService(context.Background(), admin, Service{Name: "Checkup", Price: 90, DurationMinutes: 30, IsActive: true}); err != nil {
		t.Errorf("valid service: %v", err)
	}
}

func TestListServicesActiveOnly(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.CreateService(context.Background(), admin, Service{Name: "Active", Price: 10, DurationMinutes: 30, IsActive: true}); err != nil {
		t.Fatalf("CreateService: %v", err)
	}
	if _, err := svc.CreateService(context.Background(), admin, Service{Name: "Retired", Price: 10, DurationMinutes: 30, IsActive: false}); err != nil {
		t.Fatalf("CreateService: %v", err)
	}

	active, err := svc.ListServices(context.Background(), true)
	if err != nil {
		t.Fatalf("ListServices: %v", err)
	}
	if len(active) != 1 || active[0].Name != "Active" {
		t.Errorf("active-only list = %v, want just the active service", active)
	}

	all, err := svc.ListServices(context.Background(), false)
	if err != nil {
		t.Fatalf("ListServices: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("full list has %d services, want 2", len(all))
	}
}

func TestGetStatsAdminOnly(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.GetStats(context.Background(), dentist); !errors.Is(err, ErrForbidden) {
		t.Errorf("dentist reading stats: got %v, want ErrForbidden", err)
	}
	if _, err := svc.GetStats(context.Background(), patient); !errors.Is(err, ErrForbidden) {
		t.Errorf("patient reading stats: got %v, want ErrForbidden", err)
	}
	if _, err := svc.GetStats(context.Background(), admin); err != nil {
		t.Errorf("admin reading stats: %v", err)
	}
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, 20, 0},
		{-5, -3, 20, 0},
		{50, 10, 50, 10},
		{500, 0, 100, 0},
	}

	for _, tt := range tests {
		gotLimit, gotOffset := clampPage(tt.limit, tt.offset)
		if gotLimit != tt.wantLimit || gotOffset != tt.wantOffset {
			t.Errorf("clampPage(%d, %d) = (%d, %d), want (%d, %d)",
				tt.limit, tt.offset, gotLimit, gotOffset, tt.wantLimit, tt.wantOffset)
		}
	}
}
