package chatwindow

import (
	"fmt"
	"time"
)

type ConsultationType string

const (
	ConsultationOnline   ConsultationType = "online"
	ConsultationInPerson ConsultationType = "in_person"
)

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentCompleted AppointmentStatus = "completed"
)

type State string

const (
	StateNotStarted State = "not_started"
	StateActive     State = "active"
	StateEnded      State = "ended"
)

// MsgOnlineOnly is returned for in-person consultations, which never open a chat.
const MsgOnlineOnly = "Chat is only available for online consultations"

// Status describes where a chat session sits relative to its activity window.
// MinutesUntilActive and MinutesUntilEnd are nil outside the state they apply to.
type Status struct {
	IsAccessible       bool
	IsActive           bool
	State              State
	MinutesUntilActive *int
	MinutesUntilEnd    *int
	Message            string
}

// Evaluator computes chat activity windows. The window opens Lead before the
// appointment instant and closes Tail after it. Every appointment wall-clock is
// interpreted in the single fixed Location, never the caller's local zone.
type Evaluator struct {
	lead time.Duration
	tail time.Duration
	loc  *time.Location
}

const (
	DefaultLead = 15 * time.Minute
	DefaultTail = 24 * time.Hour
)

// DefaultLocation is Pakistan standard time. The marketplace interprets every
// user's appointment times in this one zone.
var DefaultLocation = time.FixedZone("UTC+5", 5*3600)

func NewEvaluator(lead, tail time.Duration, loc *time.Location) *Evaluator {
	if lead <= 0 {
		lead = DefaultLead
	}
	if tail <= 0 {
		tail = DefaultTail
	}
	if loc == nil {
		loc = DefaultLocation
	}
	return &Evaluator{lead: lead, tail: tail, loc: loc}
}

// ParseAppointmentInstant combines a calendar date ("2006-01-02") with a
// 12-hour clock string ("3:04 PM") in the evaluator's fixed zone. Unparseable
// input is an error the caller must handle; there is no fallback instant.
func (e *Evaluator) ParseAppointmentInstant(date, clock string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 3:04 PM", "2006-01-02 03:04 PM"} {
		if t, err := time.ParseInLocation(layout, date+" "+clock, e.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse appointment instant from %q %q", date, clock)
}

// Evaluate is a pure function of the supplied clock and appointment fields.
func (e *Evaluator) Evaluate(now time.Time, date, clock string, consultation ConsultationType, status AppointmentStatus) (Status, error) {
	if consultation != ConsultationOnline {
		return Status{
			IsAccessible: false,
			IsActive:     false,
			State:        StateNotStarted,
			Message:      MsgOnlineOnly,
		}, nil
	}

	if status == AppointmentCancelled {
		return Status{
			IsAccessible: false,
			IsActive:     false,
			State:        StateEnded,
			Message:      "This appointment has been cancelled",
		}, nil
	}

	instant, err := e.ParseAppointmentInstant(date, clock)
	if err != nil {
		return Status{}, err
	}

	activeStart := instant.Add(-e.lead)
	activeEnd := instant.Add(e.tail)

	switch {
	case now.Before(activeStart):
		m := ceilMinutes(activeStart.Sub(now))
		return Status{
			IsAccessible:       true,
			IsActive:           false,
			State:              StateNotStarted,
			MinutesUntilActive: &m,
			Message:            fmt.Sprintf("Chat opens in %d minutes", m),
		}, nil
	case now.After(activeEnd):
		return Status{
			IsAccessible: true,
			IsActive:     false,
			State:        StateEnded,
			Message:      "This chat session has ended",
		}, nil
	default:
		m := ceilMinutes(activeEnd.Sub(now))
		return Status{
			IsAccessible:    true,
			IsActive:        true,
			State:           StateActive,
			MinutesUntilEnd: &m,
		}, nil
	}
}

func ceilMinutes(d time.Duration) int {
	return int((d + time.Minute - 1) / time.Minute)
}
