package clinic

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDentist Role = "dentist"
	RoleAdmin   Role = "admin"
)

// Actor is the authenticated caller, resolved by the API layer from the
// identity token and passed explicitly into every operation.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type Dentist struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	Email     *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Service is a billable treatment. Price and duration are copied onto an
// appointment at booking time, so editing a service never rewrites history.
type Service struct {
	ID              uuid.UUID
	Name            string
	Category        *string
	Price           float64
	DurationMinutes int
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Stats is the cross-clinic aggregate view exposed to admins.
type Stats struct {
	Dentists             int            `json:"dentists"`
	Patients             int            `json:"patients"`
	ActiveServices       int            `json:"active_services"`
	AppointmentsByStatus map[string]int `json:"appointments_by_status"`
	CompletedRevenue     float64        `json:"completed_revenue"`
	CompletedPaidRevenue float64        `json:"completed_paid_revenue"`
}
