package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sehatkor/care-gateway/internal/chatwindow"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// For conflict checks inside the booking lock
	GetScheduledAppointment(ctx context.Context, providerID uuid.UUID, date, clock string) (*Appointment, error)

	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to chatwindow.AppointmentStatus) (*Appointment, error)

	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error)

	// Chat room provisioning
	EnsureChatRoom(ctx context.Context, appointmentID uuid.UUID) (uuid.UUID, error)

	// Reminder worker
	FindUnremindedOnline(ctx context.Context, fromDate string) ([]Appointment, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// NurseDirectory is the nurse approval/radius lookup the emergency router
// performs when a nurse session activates.
type NurseDirectory interface {
	NurseProfile(ctx context.Context, id uuid.UUID) (approved bool, radiusKm *float64, err error)
}
