package emergency

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sehatkor/care-gateway/internal/geo"
	"github.com/sehatkor/care-gateway/internal/notify"
	"github.com/sehatkor/care-gateway/internal/realtime"
)

// FeedTable is the realtime feed the router consumes.
const FeedTable = "emergency_requests"

// Dispatcher is the slice of the notification dispatcher the router needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID string, client notify.ClientState, p notify.Payload) notify.Outcome
}

// LocationSource yields the nurse's current position, one fix per call.
type LocationSource interface {
	Current(ctx context.Context) (geo.Point, error)
}

// PostureSource yields the nurse session's client posture at dispatch time.
type PostureSource interface {
	Posture(userID string) notify.ClientState
}

// Router filters the emergency-request feed for one approved nurse: events
// outside the nurse's visit radius are dropped, survivors are dispatched as
// critical notifications, and a bounded seen-set keeps redundant feed
// deliveries from surfacing twice.
type Router struct {
	nurseID    string
	radiusKm   float64
	refresh    time.Duration
	dispatcher Dispatcher
	location   LocationSource
	posture    PostureSource
	log        zerolog.Logger

	mu        sync.Mutex
	lastFix   *geo.Point
	seen      *seenSet
	dedupeCap int
}

type RouterConfig struct {
	NurseID        string
	RadiusKm       float64 // 0 falls back to the 10 km default
	Refresh        time.Duration
	DedupeCapacity int
	Dispatcher     Dispatcher
	Location       LocationSource
	Posture        PostureSource
	Log            zerolog.Logger
}

const defaultRadiusKm = 10

func NewRouter(cfg RouterConfig) *Router {
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = defaultRadiusKm
	}
	if cfg.Refresh <= 0 {
		cfg.Refresh = 5 * time.Minute
	}
	return &Router{
		nurseID:    cfg.NurseID,
		radiusKm:   cfg.RadiusKm,
		refresh:    cfg.Refresh,
		dispatcher: cfg.Dispatcher,
		location:   cfg.Location,
		posture:    cfg.Posture,
		dedupeCap:  cfg.DedupeCapacity,
		log:        cfg.Log.With().Str("nurse_id", cfg.NurseID).Logger(),
	}
}

// Run holds the subscribed state: it requests a location fix immediately and
// on every refresh tick, and consumes the feed until the context is cancelled.
func (r *Router) Run(ctx context.Context, sub *realtime.Subscriber) error {
	r.mu.Lock()
	r.seen = newSeenSet(r.dedupeCap)
	r.mu.Unlock()

	r.refreshLocation(ctx)

	go r.refreshLoop(ctx)

	return sub.Subscribe(ctx, FeedTable, r.HandleEvent)
}

func (r *Router) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(r.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshLocation(ctx)
		}
	}
}

// refreshLocation requests one fix. A failure keeps the last known position
// in place; there is no retry before the next tick.
func (r *Router) refreshLocation(ctx context.Context) {
	fix, err := r.location.Current(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("location fix failed, keeping last known position")
		return
	}

	r.mu.Lock()
	r.lastFix = &fix
	r.mu.Unlock()
}

// SetSeenCapacity replaces the seen-set with one of the given capacity.
func (r *Router) SetSeenCapacity(capacity int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dedupeCap = capacity
	r.seen = newSeenSet(capacity)
}

// HandleEvent applies the filter chain to one feed event.
func (r *Router) HandleEvent(ctx context.Context, ev realtime.Event) {
	if ev.Type != realtime.EventInsert {
		return
	}

	var rec requestRecord
	if err := json.Unmarshal(ev.Record, &rec); err != nil {
		r.log.Warn().Err(err).Msg("skipping undecodable emergency record")
		return
	}
	if rec.ID == "" {
		// Events without an identifier cannot be deduplicated; drop silently.
		r.log.Debug().Msg("emergency event without id discarded")
		return
	}

	r.mu.Lock()
	if r.seen == nil {
		r.seen = newSeenSet(0)
	}
	if r.seen.Seen(rec.ID) {
		r.mu.Unlock()
		return
	}
	fix := r.lastFix
	r.mu.Unlock()

	if fix != nil && rec.Latitude != nil && rec.Longitude != nil {
		distance := geo.DistanceKm(*fix, geo.Point{Lat: *rec.Latitude, Lng: *rec.Longitude})
		// Equality is in range; only strictly farther events are dropped.
		if distance > r.radiusKm {
			r.log.Debug().
				Str("request_id", rec.ID).
				Str("distance_km", strconv.FormatFloat(distance, 'f', 2, 64)).
				Msg("emergency request outside visit radius")
			return
		}
	}

	title, body := describe(rec)

	payload := notify.Payload{
		Type:      notify.TypeEmergency,
		Title:     title,
		Body:      body,
		EntityID:  rec.ID,
		Priority:  notify.PriorityCritical,
		Timestamp: time.Now().UnixMilli(),
		Data: map[string]string{
			"type":     string(notify.TypeEmergency),
			"entityId": rec.ID,
			"urgency":  classify(rec.Urgency),
		},
	}

	r.mu.Lock()
	r.seen.Add(rec.ID)
	r.mu.Unlock()

	outcome := r.dispatcher.Dispatch(ctx, r.nurseID, r.posture.Posture(r.nurseID), payload)
	r.log.Info().
		Str("request_id", rec.ID).
		Str("outcome", string(outcome)).
		Msg("emergency request routed")
}

// classify folds the raw urgency field into the three labels the UI knows.
func classify(u string) string {
	switch Urgency(u) {
	case UrgencyCritical:
		return string(UrgencyCritical)
	case UrgencyWithinHour:
		return string(UrgencyWithinHour)
	default:
		return string(UrgencyScheduled)
	}
}

func describe(rec requestRecord) (title, body string) {
	switch Urgency(rec.Urgency) {
	case UrgencyCritical:
		title = "Critical emergency request"
	case UrgencyWithinHour:
		title = "Urgent nurse request (within 1 hour)"
	default:
		title = "New home visit request"
	}

	name := rec.PatientName
	if name == "" {
		name = "A patient"
	}
	body = fmt.Sprintf("%s needs a home visit nurse", name)
	if rec.Address != "" {
		body += " near " + rec.Address
	}
	return title, body
}
