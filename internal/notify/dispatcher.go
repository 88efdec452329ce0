package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Outcome string

const (
	OutcomeShown                  Outcome = "shown"
	OutcomeSuppressedActiveRoom   Outcome = "suppressed_active_room"
	OutcomeSuppressedFocused      Outcome = "suppressed_focused"
	OutcomeSuppressedNoPermission Outcome = "suppressed_no_permission"
)

// Visible notifications auto-dismiss after this long unless marked persistent.
const autoDismissAfter = 5 * time.Second

// ClientState is the posture of the receiving session, reported by the client
// and passed explicitly into every dispatch call. There is no process-wide
// active-room cell; whichever chat view the session last reported wins.
type ClientState struct {
	NotificationsAvailable bool
	PermissionGranted      bool
	Focused                bool
	ActiveRoomID           string
}

// Notification is a fully resolved visible alert ready for the presenter.
type Notification struct {
	Title        string
	Body         string
	Route        string
	Importance   Importance
	Tone         []Note
	Vibration    []int
	Persistent   bool
	DismissAfter time.Duration
}

// Presenter is the native notification capability boundary: it shows alerts,
// plays tones and fires vibration patterns on the device of the given user.
type Presenter interface {
	Show(ctx context.Context, userID string, n Notification) error
	PlayTone(ctx context.Context, userID string, tone []Note) error
	Vibrate(ctx context.Context, userID string, pattern []int) error
}

type Dispatcher struct {
	presenter Presenter
	log       zerolog.Logger
}

func NewDispatcher(presenter Presenter, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{presenter: presenter, log: log}
}

// Dispatch decides whether a payload surfaces as a visible alert, a sound-only
// nudge, or nothing. First matching rule wins:
//
//  1. no capability or no permission: fully suppressed
//  2. chat message for the room the user is looking at: sound only
//  3. focused client, non-critical payload: sound and vibration only
//  4. otherwise: visible notification with the channel's settings
//
// Side effects are attempted independently; a failing one never blocks the
// others and never propagates.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, client ClientState, p Payload) Outcome {
	if !client.NotificationsAvailable || !client.PermissionGranted {
		return OutcomeSuppressedNoPermission
	}

	ch := ChannelFor(p.Type)

	if p.Type == TypeChat && client.ActiveRoomID != "" && p.EntityID == client.ActiveRoomID {
		d.playTone(ctx, userID, p.Type, ch)
		return OutcomeSuppressedActiveRoom
	}

	if client.Focused && p.Priority != PriorityCritical {
		d.playTone(ctx, userID, p.Type, ch)
		d.vibrate(ctx, userID, ch)
		return OutcomeSuppressedFocused
	}

	n := Notification{
		Title:      p.Title,
		Body:       p.Body,
		Route:      routeFor(p),
		Importance: ch.Importance,
		Vibration:  ch.Vibration,
		Persistent: p.Priority == PriorityCritical,
	}
	if ch.SoundEnabled {
		n.Tone = ToneFor(p.Type)
	}
	if !n.Persistent {
		n.DismissAfter = autoDismissAfter
	}

	if err := d.presenter.Show(ctx, userID, n); err != nil {
		d.log.Error().Err(err).Str("user_id", userID).Str("type", string(p.Type)).Msg("show notification failed")
	}
	d.playTone(ctx, userID, p.Type, ch)
	d.vibrate(ctx, userID, ch)

	return OutcomeShown
}

func (d *Dispatcher) playTone(ctx context.Context, userID string, t PayloadType, ch Channel) {
	if !ch.SoundEnabled {
		return
	}
	if err := d.presenter.PlayTone(ctx, userID, ToneFor(t)); err != nil {
		d.log.Warn().Err(err).Str("user_id", userID).Msg("tone playback failed")
	}
}

func (d *Dispatcher) vibrate(ctx context.Context, userID string, ch Channel) {
	if len(ch.Vibration) == 0 {
		return
	}
	if err := d.presenter.Vibrate(ctx, userID, ch.Vibration); err != nil {
		d.log.Warn().Err(err).Str("user_id", userID).Msg("vibration failed")
	}
}

// routeFor picks the click-navigation destination. An explicit url in the data
// map overrides the per-type default.
func routeFor(p Payload) string {
	if url := p.Data["url"]; url != "" {
		return url
	}
	switch p.Type {
	case TypeChat:
		return "/chat/" + p.EntityID
	case TypeAppointment:
		return "/bookings"
	case TypeEmergency:
		return "/emergency"
	default:
		return "/"
	}
}
