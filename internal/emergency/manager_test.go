package emergency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sehatkor/care-gateway/internal/geo"
	"github.com/sehatkor/care-gateway/internal/notify"
	"github.com/sehatkor/care-gateway/internal/realtime"
	"github.com/sehatkor/care-gateway/internal/session"
)

type fakeDirectory struct {
	approved map[uuid.UUID]bool
	radius   map[uuid.UUID]*float64
}

func (f *fakeDirectory) NurseProfile(_ context.Context, id uuid.UUID) (bool, *float64, error) {
	return f.approved[id], f.radius[id], nil
}

func TestManagerLifecycle(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer rdb.Close()

	nurseID := uuid.New()
	otherID := uuid.New()

	directory := &fakeDirectory{
		approved: map[uuid.UUID]bool{nurseID: true, otherID: false},
		radius:   map[uuid.UUID]*float64{},
	}

	sessions := session.NewRegistry()
	sessions.Upsert(session.Session{
		UserID:        nurseID.String(),
		Role:          session.RoleNurse,
		NurseApproved: true,
		Client:        notify.ClientState{NotificationsAvailable: true, PermissionGranted: true},
	})
	sessions.SetLocation(nurseID.String(), geo.Point{Lat: 0, Lng: 0})

	dispatcher := &recordingDispatcher{}

	m := NewManager(ManagerConfig{
		Subscriber:    realtime.NewSubscriber(rdb, zerolog.Nop()),
		Directory:     directory,
		Sessions:      sessions,
		Dispatcher:    dispatcher,
		Refresh:       time.Hour,
		DefaultRadius: 10,
		Log:           zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// An unapproved nurse never reaches the subscribed state.
	err := m.Activate(ctx, otherID)
	require.ErrorIs(t, err, ErrNurseNotApproved)
	assert.False(t, m.Active(otherID))

	require.NoError(t, m.Activate(ctx, nurseID))
	assert.True(t, m.Active(nurseID))

	// Re-activation while subscribed is a no-op.
	require.NoError(t, m.Activate(ctx, nurseID))

	pub := realtime.NewPublisher(rdb)

	// The subscription opens asynchronously; publish fresh ids until one lands.
	require.Eventually(t, func() bool {
		rec := requestRecord{
			ID:       uuid.NewString(),
			Urgency:  "critical",
			Latitude: floatPtr(0), Longitude: floatPtr(0),
		}
		require.NoError(t, pub.PublishInsert(ctx, FeedTable, rec))
		return dispatcher.count() > 0
	}, 3*time.Second, 25*time.Millisecond)

	m.Deactivate(nurseID)
	require.Eventually(t, func() bool {
		return !m.Active(nurseID)
	}, time.Second, 10*time.Millisecond)
}
