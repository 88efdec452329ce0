package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sehatkor/care-gateway/internal/chatwindow"
)

type fakeRepo struct {
	mu           sync.Mutex
	patients     map[uuid.UUID]*Patient
	providers    map[uuid.UUID]*Provider
	appointments map[uuid.UUID]*Appointment
	events       []EventLog
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		patients:     make(map[uuid.UUID]*Patient),
		providers:    make(map[uuid.UUID]*Provider),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

func (f *fakeRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.patients[id]; ok {
		return p, nil
	}
	return nil, ErrPatientNotFound
}

func (f *fakeRepo) GetProviderByID(_ context.Context, id uuid.UUID) (*Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.providers[id]; ok {
		return p, nil
	}
	return nil, ErrProviderNotFound
}

func (f *fakeRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.appointments[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, ErrAppointmentNotFound
}

func (f *fakeRepo) GetScheduledAppointment(_ context.Context, providerID uuid.UUID, date, clock string) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.appointments {
		if a.ProviderID == providerID && a.AppointmentDate == date && a.AppointmentTime == clock && a.Status == chatwindow.AppointmentScheduled {
			copied := *a
			return &copied, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (f *fakeRepo) CreateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = uuid.New()
	a.Status = chatwindow.AppointmentScheduled
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	f.appointments[a.ID] = &a
	copied := a
	return &copied, nil
}

func (f *fakeRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to chatwindow.AppointmentStatus) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	copied := *a
	return &copied, nil
}

func (f *fakeRepo) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, _, _ int) ([]AppointmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []AppointmentDetail
	for _, a := range f.appointments {
		if a.PatientID == patientID {
			out = append(out, AppointmentDetail{Appointment: *a})
		}
	}
	return out, nil
}

func (f *fakeRepo) EnsureChatRoom(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return uuid.Nil, ErrAppointmentNotFound
	}
	if a.ChatRoomID == nil {
		roomID := uuid.New()
		a.ChatRoomID = &roomID
	}
	return *a.ChatRoomID, nil
}

func (f *fakeRepo) FindUnremindedOnline(_ context.Context, fromDate string) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for _, a := range f.appointments {
		if a.Status == chatwindow.AppointmentScheduled &&
			a.ConsultationType == chatwindow.ConsultationOnline &&
			a.ReminderSentAt == nil &&
			a.AppointmentDate >= fromDate {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkReminderSent(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok || a.ReminderSentAt != nil {
		return ErrAppointmentNotFound
	}
	a.ReminderSentAt = &at
	return nil
}

func (f *fakeRepo) InsertEvent(_ context.Context, ev EventLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

type passLocker struct{ calls int }

func (l *passLocker) WithBookingLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	l.calls++
	return fn(ctx)
}

type fakeFeed struct {
	mu      sync.Mutex
	records []any
}

func (f *fakeFeed) PublishInsert(_ context.Context, _ string, record any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

func newTestService(repo *fakeRepo) (*Service, *passLocker, *fakeFeed) {
	locker := &passLocker{}
	feed := &fakeFeed{}
	evaluator := chatwindow.NewEvaluator(0, 0, nil)
	return NewService(repo, locker, feed, evaluator, zerolog.Nop()), locker, feed
}

func seedPatientAndProvider(repo *fakeRepo) (patientID, providerID uuid.UUID) {
	patientID = uuid.New()
	providerID = uuid.New()
	repo.patients[patientID] = &Patient{ID: patientID, Name: "Ayesha Khan"}
	repo.providers[providerID] = &Provider{ID: providerID, Name: "Dr. Imran", Kind: ProviderDoctor, Approved: true}
	return
}

func TestBookAppointment(t *testing.T) {
	repo := newFakeRepo()
	svc, locker, feed := newTestService(repo)
	patientID, providerID := seedPatientAndProvider(repo)

	appt, err := svc.BookAppointment(context.Background(), providerID, patientID, "2025-01-10", "10:00 AM", chatwindow.ConsultationOnline)
	require.NoError(t, err)
	assert.Equal(t, chatwindow.AppointmentScheduled, appt.Status)
	assert.Equal(t, 1, locker.calls)
	assert.Len(t, feed.records, 1)
	require.Len(t, repo.events, 1)
	assert.Equal(t, EventAppointmentBooked, repo.events[0].EventType)
}

func TestBookAppointmentSlotTaken(t *testing.T) {
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	patientID, providerID := seedPatientAndProvider(repo)

	_, err := svc.BookAppointment(context.Background(), providerID, patientID, "2025-01-10", "10:00 AM", chatwindow.ConsultationOnline)
	require.NoError(t, err)

	_, err = svc.BookAppointment(context.Background(), providerID, patientID, "2025-01-10", "10:00 AM", chatwindow.ConsultationInPerson)
	require.ErrorIs(t, err, ErrSlotTaken)
}

func TestBookAppointmentRejectsBadSchedule(t *testing.T) {
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	patientID, providerID := seedPatientAndProvider(repo)

	_, err := svc.BookAppointment(context.Background(), providerID, patientID, "2025-01-10", "26:00", chatwindow.ConsultationOnline)
	require.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestBookAppointmentUnapprovedProvider(t *testing.T) {
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	patientID, providerID := seedPatientAndProvider(repo)
	repo.providers[providerID].Approved = false

	_, err := svc.BookAppointment(context.Background(), providerID, patientID, "2025-01-10", "10:00 AM", chatwindow.ConsultationOnline)
	require.ErrorIs(t, err, ErrProviderNotApproved)
}

func TestCancelAppointmentPublishesChange(t *testing.T) {
	repo := newFakeRepo()
	svc, _, feed := newTestService(repo)
	patientID, providerID := seedPatientAndProvider(repo)

	appt, err := svc.BookAppointment(context.Background(), providerID, patientID, "2025-01-10", "10:00 AM", chatwindow.ConsultationOnline)
	require.NoError(t, err)

	cancelled, err := svc.CancelAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, chatwindow.AppointmentCancelled, cancelled.Status)
	assert.Len(t, feed.records, 2)

	// Second cancel is an invalid transition, not a missing row.
	_, err = svc.CancelAppointment(context.Background(), appt.ID)
	require.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestCancelMissingAppointment(t *testing.T) {
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)

	_, err := svc.CancelAppointment(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestChatStatusReflectsCancellation(t *testing.T) {
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	patientID, providerID := seedPatientAndProvider(repo)

	appt, err := svc.BookAppointment(context.Background(), providerID, patientID, "2025-01-10", "10:00 AM", chatwindow.ConsultationOnline)
	require.NoError(t, err)

	during := time.Date(2025, 1, 10, 10, 30, 0, 0, chatwindow.DefaultLocation)

	status, err := svc.ChatStatus(context.Background(), appt.ID, during)
	require.NoError(t, err)
	assert.Equal(t, chatwindow.StateActive, status.State)

	_, err = svc.CancelAppointment(context.Background(), appt.ID)
	require.NoError(t, err)

	status, err = svc.ChatStatus(context.Background(), appt.ID, during)
	require.NoError(t, err)
	assert.Equal(t, chatwindow.StateEnded, status.State)
	assert.False(t, status.IsAccessible)
}

func TestEnsureChatRoomIsStable(t *testing.T) {
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	patientID, providerID := seedPatientAndProvider(repo)

	appt, err := svc.BookAppointment(context.Background(), providerID, patientID, "2025-01-10", "10:00 AM", chatwindow.ConsultationOnline)
	require.NoError(t, err)

	first, err := svc.EnsureChatRoom(context.Background(), appt.ID)
	require.NoError(t, err)
	second, err := svc.EnsureChatRoom(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDueReminders(t *testing.T) {
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	patientID, providerID := seedPatientAndProvider(repo)

	soon, err := svc.BookAppointment(context.Background(), providerID, patientID, "2025-01-10", "10:00 AM", chatwindow.ConsultationOnline)
	require.NoError(t, err)
	_, err = svc.BookAppointment(context.Background(), providerID, patientID, "2025-01-12", "10:00 AM", chatwindow.ConsultationOnline)
	require.NoError(t, err)
	inPerson, err := svc.BookAppointment(context.Background(), providerID, patientID, "2025-01-10", "11:00 AM", chatwindow.ConsultationInPerson)
	require.NoError(t, err)

	// 09:35: the 10:00 AM window opens at 09:45, inside a 15-minute horizon.
	now := time.Date(2025, 1, 10, 9, 35, 0, 0, chatwindow.DefaultLocation)

	due, err := svc.DueReminders(context.Background(), now, 15*time.Minute)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, soon.ID, due[0].ID)
	assert.NotEqual(t, inPerson.ID, due[0].ID)

	// Marking removes it from the next scan.
	require.NoError(t, svc.MarkReminderSent(context.Background(), soon.ID, now))

	due, err = svc.DueReminders(context.Background(), now, 15*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, due)
}
