package clinic

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrDentistNotFound = errors.New("dentist not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrServiceNotFound = errors.New("service not found")
)

// Repository contains all DB interactions needed by the directory service and
// by the booking workflow's reference lookups.
type Repository interface {
	GetDentistByID(ctx context.Context, id uuid.UUID) (*Dentist, error)
	ListDentists(ctx context.Context, limit, offset int) ([]Dentist, error)
	CreateDentist(ctx context.Context, d Dentist) (*Dentist, error)
	UpdateDentist(ctx context.Context, d Dentist) (*Dentist, error)
	// DeleteDentist removes the dentist together with their appointments,
	// working hours and blocked dates in one transaction.
	DeleteDentist(ctx context.Context, id uuid.UUID) error

	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	ListPatients(ctx context.Context, limit, offset int) ([]Patient, error)
	CreatePatient(ctx context.Context, p Patient) (*Patient, error)
	UpdatePatient(ctx context.Context, p Patient) (*Patient, error)
	// DeletePatient removes the patient and their appointments in one
	// transaction.
	DeletePatient(ctx context.Context, id uuid.UUID) error

	GetServiceByID(ctx context.Context, id uuid.UUID) (*Service, error)
	ListServices(ctx context.Context, activeOnly bool) ([]Service, error)
	CreateService(ctx context.Context, s Service) (*Service, error)
	UpdateService(ctx context.Context, s Service) (*Service, error)
	// DeleteService removes the service and its appointments in one
	// transaction.
	DeleteService(ctx context.Context, id uuid.UUID) error

	GetStats(ctx context.Context) (*Stats, error)
}
