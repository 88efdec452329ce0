package emergency

import (
	"time"

	"github.com/google/uuid"
)

type Urgency string

const (
	UrgencyCritical   Urgency = "critical"
	UrgencyWithinHour Urgency = "within_1_hour"
	UrgencyScheduled  Urgency = "scheduled"
)

type RequestStatus string

const (
	RequestOpen     RequestStatus = "open"
	RequestAccepted RequestStatus = "accepted"
	RequestClosed   RequestStatus = "closed"
)

// Request is a patient's call for a home-visit nurse.
type Request struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	PatientName string
	Latitude    *float64
	Longitude   *float64
	Urgency     Urgency
	Status      RequestStatus
	Address     *string
	Notes       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// requestRecord is the wire shape of an emergency request row on the feed.
type requestRecord struct {
	ID          string   `json:"id"`
	PatientID   string   `json:"patient_id"`
	PatientName string   `json:"patient_name"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Urgency     string   `json:"urgency"`
	Status      string   `json:"status"`
	Address     string   `json:"address,omitempty"`
}
