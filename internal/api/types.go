package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/sehatkor/care-gateway/internal/chatwindow"
)

type BookAppointmentRequest struct {
	ProviderID       string `json:"provider_id"`
	PatientID        string `json:"patient_id"`
	AppointmentDate  string `json:"appointment_date"` // 2006-01-02
	AppointmentTime  string `json:"appointment_time"` // 3:04 PM
	ConsultationType string `json:"consultation_type"`
}

type AppointmentResponse struct {
	ID               uuid.UUID  `json:"id"`
	ProviderID       uuid.UUID  `json:"provider_id"`
	PatientID        uuid.UUID  `json:"patient_id"`
	AppointmentDate  string     `json:"appointment_date"`
	AppointmentTime  string     `json:"appointment_time"`
	ConsultationType string     `json:"consultation_type"`
	Status           string     `json:"status"`
	ChatRoomID       *uuid.UUID `json:"chat_room_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type ChatStatusResponse struct {
	IsAccessible       bool             `json:"is_accessible"`
	IsActive           bool             `json:"is_active"`
	Status             chatwindow.State `json:"status"`
	MinutesUntilActive *int             `json:"minutes_until_active,omitempty"`
	MinutesUntilEnd    *int             `json:"minutes_until_end,omitempty"`
	Message            string           `json:"message,omitempty"`
}

type ChatRoomResponse struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	ChatRoomID    uuid.UUID `json:"chat_room_id"`
}

type SessionRequest struct {
	Role               string   `json:"role"`
	NurseApproved      bool     `json:"nurse_approved"`
	PermissionGranted  bool     `json:"permission_granted"`
	Focused            bool     `json:"focused"`
	ActiveRoomID       string   `json:"active_room_id"`
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
	NotificationsReady bool     `json:"notifications_ready"`
}

type ActiveRoomRequest struct {
	RoomID string `json:"room_id"` // empty clears the marker
}

type FocusRequest struct {
	Focused bool `json:"focused"`
}

type LocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CoverageEntry is one approved nurse session in the coverage report.
type CoverageEntry struct {
	UserID      string    `json:"user_id"`
	Subscribed  bool      `json:"subscribed"`
	HasLocation bool      `json:"has_location"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateEmergencyRequest struct {
	PatientID   string   `json:"patient_id"`
	PatientName string   `json:"patient_name"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Urgency     string   `json:"urgency"`
	Address     *string  `json:"address,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
}

type EmergencyResponse struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Urgency     string    `json:"urgency"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
