package notify

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

type PayloadType string

const (
	TypeChat        PayloadType = "chat"
	TypeAppointment PayloadType = "appointment"
	TypeEmergency   PayloadType = "emergency"
	TypeSystem      PayloadType = "system"
)

type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var (
	ErrUnknownType   = errors.New("unknown notification type")
	ErrMissingEntity = errors.New("notification payload has no entity id")
)

// Payload is one notification event, consumed exactly once by the dispatcher.
// Delivery history is the backend's concern; nothing here is persisted.
type Payload struct {
	Type      PayloadType
	Title     string
	Body      string
	EntityID  string
	Priority  Priority
	Timestamp int64 // epoch millis
	Data      map[string]string
}

// ParsePayload validates a data-only push message at the boundary. Field
// presence is checked per type instead of trusted: chat and emergency events
// are useless without an entity id, so those are rejected outright. An unknown
// priority degrades to normal rather than failing the whole event.
func ParsePayload(raw map[string]string) (Payload, error) {
	p := Payload{
		Type:     PayloadType(raw["type"]),
		Title:    raw["title"],
		Body:     raw["body"],
		EntityID: raw["entityId"],
		Priority: Priority(raw["priority"]),
		Data:     raw,
	}

	switch p.Type {
	case TypeChat, TypeAppointment, TypeEmergency, TypeSystem:
	default:
		return Payload{}, fmt.Errorf("%w: %q", ErrUnknownType, raw["type"])
	}

	if (p.Type == TypeChat || p.Type == TypeEmergency) && p.EntityID == "" {
		return Payload{}, fmt.Errorf("%w: type %s", ErrMissingEntity, p.Type)
	}

	switch p.Priority {
	case PriorityNormal, PriorityHigh, PriorityCritical:
	default:
		p.Priority = PriorityNormal
	}

	if ms, err := strconv.ParseInt(raw["timestamp"], 10, 64); err == nil && ms > 0 {
		p.Timestamp = ms
	} else {
		p.Timestamp = time.Now().UnixMilli()
	}

	return p, nil
}
