package session

import (
	"sync"
	"time"

	"github.com/sehatkor/care-gateway/internal/geo"
	"github.com/sehatkor/care-gateway/internal/notify"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleNurse   Role = "nurse"
	RoleAdmin   Role = "admin"
)

// Session is one connected client's reported posture. The client owns this
// state and reports changes through the API; the gateway only mirrors it so
// the dispatcher and emergency router can read it.
type Session struct {
	UserID        string
	Role          Role
	NurseApproved bool
	Client        notify.ClientState
	Location      *geo.Point
	UpdatedAt     time.Time
}

// Registry keeps sessions keyed by user id. Last report wins; disconnect
// removes the entry.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Session)}
}

func (r *Registry) Upsert(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.UpdatedAt = time.Now()
	r.sessions[s.UserID] = s
}

func (r *Registry) Get(userID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	return s, ok
}

func (r *Registry) Remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// SetActiveRoom records which chat room the session is looking at. An empty
// room id clears the marker (chat view closed).
func (r *Registry) SetActiveRoom(userID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		return
	}
	s.Client.ActiveRoomID = roomID
	s.UpdatedAt = time.Now()
	r.sessions[userID] = s
}

func (r *Registry) SetFocus(userID string, focused bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		return
	}
	s.Client.Focused = focused
	s.UpdatedAt = time.Now()
	r.sessions[userID] = s
}

func (r *Registry) SetLocation(userID string, p geo.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		return
	}
	loc := p
	s.Location = &loc
	s.UpdatedAt = time.Now()
	r.sessions[userID] = s
}

// ApprovedNurses snapshots every session belonging to an approved nurse.
func (r *Registry) ApprovedNurses() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Session
	for _, s := range r.sessions {
		if s.Role == RoleNurse && s.NurseApproved {
			out = append(out, s)
		}
	}
	return out
}
