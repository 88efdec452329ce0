package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/sehatkor/care-gateway/internal/chatwindow"
)

type ProviderKind string

const (
	ProviderDoctor ProviderKind = "doctor"
	ProviderNurse  ProviderKind = "nurse"
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	City      *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Provider is a bookable professional on the marketplace. Nurses carry an
// approval flag and a home-visit radius used by the emergency router.
type Provider struct {
	ID                uuid.UUID
	Name              string
	Kind              ProviderKind
	Specialty         *string
	Approved          bool
	HomeVisitRadiusKm *float64
	City              *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Appointment stores its wall-clock the way the marketplace records it: a
// calendar date plus a 12-hour clock string, both interpreted in the fixed
// display zone by the chat-window evaluator.
type Appointment struct {
	ID               uuid.UUID
	ProviderID       uuid.UUID
	PatientID        uuid.UUID
	AppointmentDate  string // 2006-01-02
	AppointmentTime  string // 3:04 PM
	ConsultationType chatwindow.ConsultationType
	Status           chatwindow.AppointmentStatus
	ChatRoomID       *uuid.UUID
	ReminderSentAt   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type AppointmentDetail struct {
	Appointment
	Patient  *Patient
	Provider *Provider
}
