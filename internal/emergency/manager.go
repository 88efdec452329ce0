package emergency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sehatkor/care-gateway/internal/appointment"
	"github.com/sehatkor/care-gateway/internal/geo"
	"github.com/sehatkor/care-gateway/internal/notify"
	"github.com/sehatkor/care-gateway/internal/realtime"
	"github.com/sehatkor/care-gateway/internal/session"
)

var (
	ErrNurseNotApproved = errors.New("nurse is not approved for emergency dispatch")
	ErrNoLocation       = errors.New("no location reported for session")
)

// Manager owns the router lifecycle per nurse: inactive until the nurse's
// approval is confirmed, subscribed while active, and back to inactive on
// sign-out or loss of approval.
type Manager struct {
	sub        *realtime.Subscriber
	directory  appointment.NurseDirectory
	sessions   *session.Registry
	dispatcher Dispatcher
	refresh    time.Duration
	dedupeCap  int
	radiusKm   float64
	log        zerolog.Logger

	mu     sync.Mutex
	active map[string]*registration
}

type registration struct {
	cancel context.CancelFunc
}

type ManagerConfig struct {
	Subscriber     *realtime.Subscriber
	Directory      appointment.NurseDirectory
	Sessions       *session.Registry
	Dispatcher     Dispatcher
	Refresh        time.Duration
	DedupeCapacity int
	DefaultRadius  float64
	Log            zerolog.Logger
}

func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		sub:        cfg.Subscriber,
		directory:  cfg.Directory,
		sessions:   cfg.Sessions,
		dispatcher: cfg.Dispatcher,
		refresh:    cfg.Refresh,
		dedupeCap:  cfg.DedupeCapacity,
		radiusKm:   cfg.DefaultRadius,
		log:        cfg.Log,
		active:     make(map[string]*registration),
	}
}

// Activate confirms approval, then opens a subscription for the nurse.
// Activating an already-subscribed nurse is a no-op.
func (m *Manager) Activate(ctx context.Context, nurseID uuid.UUID) error {
	approved, radius, err := m.directory.NurseProfile(ctx, nurseID)
	if err != nil {
		return fmt.Errorf("load nurse profile: %w", err)
	}
	if !approved {
		return ErrNurseNotApproved
	}

	id := nurseID.String()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[id]; ok {
		return nil
	}

	radiusKm := m.radiusKm
	if radius != nil && *radius > 0 {
		radiusKm = *radius
	}

	router := NewRouter(RouterConfig{
		NurseID:        id,
		RadiusKm:       radiusKm,
		Refresh:        m.refresh,
		DedupeCapacity: m.dedupeCap,
		Dispatcher:     m.dispatcher,
		Location:       sessionLocation{sessions: m.sessions, userID: id},
		Posture:        sessionPosture{sessions: m.sessions},
		Log:            m.log,
	})

	// Routers outlive the request that activated them; only Deactivate or
	// manager shutdown stops one.
	runCtx, cancel := context.WithCancel(context.Background())
	reg := &registration{cancel: cancel}
	m.active[id] = reg

	go func() {
		if err := router.Run(runCtx, m.sub); err != nil {
			m.log.Error().Err(err).Str("nurse_id", id).Msg("emergency router stopped with error")
		}
		m.mu.Lock()
		// Only clear our own registration; a later re-activation owns the slot.
		if m.active[id] == reg {
			delete(m.active, id)
		}
		m.mu.Unlock()
		cancel()
	}()

	m.log.Info().Str("nurse_id", id).Float64("radius_km", radiusKm).Msg("emergency router subscribed")
	return nil
}

// Deactivate tears the subscription down. Safe to call for an inactive nurse.
func (m *Manager) Deactivate(nurseID uuid.UUID) {
	id := nurseID.String()

	m.mu.Lock()
	reg, ok := m.active[id]
	if ok {
		delete(m.active, id)
	}
	m.mu.Unlock()

	if ok {
		reg.cancel()
		m.log.Info().Str("nurse_id", id).Msg("emergency router deactivated")
	}
}

// Shutdown cancels every active subscription. Used on process exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	regs := make([]*registration, 0, len(m.active))
	for id, reg := range m.active {
		regs = append(regs, reg)
		delete(m.active, id)
	}
	m.mu.Unlock()

	for _, reg := range regs {
		reg.cancel()
	}
}

// Active reports whether the nurse currently holds a subscription.
func (m *Manager) Active(nurseID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[nurseID.String()]
	return ok
}

// sessionLocation reads the latest device-reported position from the session
// registry. The gateway cannot request a fix itself; the client reports and
// the router polls what was last seen.
type sessionLocation struct {
	sessions *session.Registry
	userID   string
}

func (s sessionLocation) Current(_ context.Context) (geo.Point, error) {
	sess, ok := s.sessions.Get(s.userID)
	if !ok || sess.Location == nil {
		return geo.Point{}, ErrNoLocation
	}
	return *sess.Location, nil
}

type sessionPosture struct {
	sessions *session.Registry
}

func (s sessionPosture) Posture(userID string) notify.ClientState {
	sess, ok := s.sessions.Get(userID)
	if !ok {
		return notify.ClientState{}
	}
	return sess.Client
}
