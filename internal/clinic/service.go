package clinic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrForbidden = errors.New("actor is not allowed to perform this action")

// ValidationError reports a malformed field on an operation's input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DirectoryService manages dentists, patients and services, and answers the
// admin stats query. All mutations are admin-only; dentists may edit their
// own profile.
type DirectoryService struct {
	repo   Repository
	logger zerolog.Logger
}

func NewDirectoryService(repo Repository, logger zerolog.Logger) *DirectoryService {
	return &DirectoryService{
		repo:   repo,
		logger: logger.With().Str("component", "directory").Logger(),
	}
}

// Dentists

func (s *DirectoryService) GetDentist(ctx context.Context, id uuid.UUID) (*Dentist, error) {
	return s.repo.GetDentistByID(ctx, id)
}

func (s *DirectoryService) ListDentists(ctx context.Context, limit, offset int) ([]Dentist, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListDentists(ctx, limit, offset)
}

func (s *DirectoryService) CreateDentist(ctx context.Context, actor Actor, d Dentist) (*Dentist, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(d.Name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return s.repo.CreateDentist(ctx, d)
}

func (s *DirectoryService) UpdateDentist(ctx context.Context, actor Actor, d Dentist) (*Dentist, error) {
	if !actor.IsAdmin() && !(actor.Role == RoleDentist && actor.ID == d.ID) {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(d.Name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return s.repo.UpdateDentist(ctx, d)
}

func (s *DirectoryService) DeleteDentist(ctx context.Context, actor Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if err := s.repo.DeleteDentist(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("dentist_id", id.String()).Msg("dentist deleted with cascade")
	return nil
}

// Patients

func (s *DirectoryService) GetPatient(ctx context.Context, actor Actor, id uuid.UUID) (*Patient, error) {
	if actor.Role == RolePatient && actor.ID != id {
		return nil, ErrForbidden
	}
	return s.repo.GetPatientByID(ctx, id)
}

func (s *DirectoryService) ListPatients(ctx context.Context, actor Actor, limit, offset int) ([]Patient, error) {
	if actor.Role == RolePatient {
		return nil, ErrForbidden
	}
	limit, offset = clampPage(limit, offset)
	return s.repo.ListPatients(ctx, limit, offset)
}

func (s *DirectoryService) CreatePatient(ctx context.Context, actor Actor, p Patient) (*Patient, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return s.repo.CreatePatient(ctx, p)
}

func (s *DirectoryService) UpdatePatient(ctx context.Context, actor Actor, p Patient) (*Patient, error) {
	if !actor.IsAdmin() && !(actor.Role == RolePatient && actor.ID == p.ID) {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return s.repo.UpdatePatient(ctx, p)
}

func (s *DirectoryService) DeletePatient(ctx context.Context, actor Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if err := s.repo.DeletePatient(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("patient_id", id.String()).Msg("patient deleted with cascade")
	return nil
}

// Services

func (s *DirectoryService) GetService(ctx context.Context, id uuid.UUID) (*Service, error) {
	return s.repo.GetServiceByID(ctx, id)
}

func (s *DirectoryService) ListServices(ctx context.Context, activeOnly bool) ([]Service, error) {
	return s.repo.ListServices(ctx, activeOnly)
}

func (s *DirectoryService) CreateService(ctx context.Context, actor Actor, svc Service) (*Service, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := validateService(svc); err != nil {
		return nil, err
	}
	return s.repo.CreateService(ctx, svc)
}

func (s *DirectoryService) UpdateService(ctx context.Context, actor Actor, svc Service) (*Service, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := validateService(svc); err != nil {
		return nil, err
	}
	return s.repo.UpdateService(ctx, svc)
}

func (s *DirectoryService) DeleteService(ctx context.Context, actor Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if err := s.repo.DeleteService(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("service_id", id.String()).Msg("service deleted with cascade")
	return nil
}

// Stats

func (s *DirectoryService) GetStats(ctx context.Context, actor Actor) (*Stats, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.repo.GetStats(ctx)
}

func validateService(svc Service) error {
	if strings.TrimSpace(svc.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if svc.DurationMinutes <= 0 {
		return &ValidationError{Field: "duration_minutes", Reason: "must be positive"}
	}
	if svc.Price < 0 {
		return &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	return nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
