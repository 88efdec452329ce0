package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sehatkor/care-gateway/internal/appointment"
	"github.com/sehatkor/care-gateway/internal/chatwindow"
	"github.com/sehatkor/care-gateway/internal/emergency"
	"github.com/sehatkor/care-gateway/internal/session"
)

type fakeApptRepo struct {
	patients     map[uuid.UUID]*appointment.Patient
	providers    map[uuid.UUID]*appointment.Provider
	appointments map[uuid.UUID]*appointment.Appointment
}

func newFakeApptRepo() *fakeApptRepo {
	return &fakeApptRepo{
		patients:     make(map[uuid.UUID]*appointment.Patient),
		providers:    make(map[uuid.UUID]*appointment.Provider),
		appointments: make(map[uuid.UUID]*appointment.Appointment),
	}
}

func (f *fakeApptRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*appointment.Patient, error) {
	if p, ok := f.patients[id]; ok {
		return p, nil
	}
	return nil, appointment.ErrPatientNotFound
}

func (f *fakeApptRepo) GetProviderByID(_ context.Context, id uuid.UUID) (*appointment.Provider, error) {
	if p, ok := f.providers[id]; ok {
		return p, nil
	}
	return nil, appointment.ErrProviderNotFound
}

func (f *fakeApptRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	if a, ok := f.appointments[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, appointment.ErrAppointmentNotFound
}

func (f *fakeApptRepo) GetScheduledAppointment(_ context.Context, providerID uuid.UUID, date, clock string) (*appointment.Appointment, error) {
	for _, a := range f.appointments {
		if a.ProviderID == providerID && a.AppointmentDate == date && a.AppointmentTime == clock && a.Status == chatwindow.AppointmentScheduled {
			cp := *a
			return &cp, nil
		}
	}
	return nil, appointment.ErrAppointmentNotFound
}

func (f *fakeApptRepo) CreateAppointment(_ context.Context, a appointment.Appointment) (*appointment.Appointment, error) {
	a.ID = uuid.New()
	a.Status = chatwindow.AppointmentScheduled
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	f.appointments[a.ID] = &a
	cp := a
	return &cp, nil
}

func (f *fakeApptRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to chatwindow.AppointmentStatus) (*appointment.Appointment, error) {
	a, ok := f.appointments[id]
	if !ok || a.Status != from {
		return nil, appointment.ErrAppointmentNotFound
	}
	a.Status = to
	cp := *a
	return &cp, nil
}

func (f *fakeApptRepo) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, _, _ int) ([]appointment.AppointmentDetail, error) {
	var out []appointment.AppointmentDetail
	for _, a := range f.appointments {
		if a.PatientID == patientID {
			out = append(out, appointment.AppointmentDetail{Appointment: *a})
		}
	}
	return out, nil
}

func (f *fakeApptRepo) EnsureChatRoom(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	a, ok := f.appointments[id]
	if !ok {
		return uuid.Nil, appointment.ErrAppointmentNotFound
	}
	if a.ChatRoomID == nil {
		room := uuid.New()
		a.ChatRoomID = &room
	}
	return *a.ChatRoomID, nil
}

func (f *fakeApptRepo) FindUnremindedOnline(_ context.Context, _ string) ([]appointment.Appointment, error) {
	return nil, nil
}

func (f *fakeApptRepo) MarkReminderSent(_ context.Context, _ uuid.UUID, _ time.Time) error {
	return nil
}

func (f *fakeApptRepo) InsertEvent(_ context.Context, _ appointment.EventLog) error {
	return nil
}

// NurseProfile lets the fake double as the emergency manager's directory.
// No nurse is ever approved here, so session upserts stay in-process.
func (f *fakeApptRepo) NurseProfile(_ context.Context, id uuid.UUID) (bool, *float64, error) {
	if _, ok := f.providers[id]; !ok {
		return false, nil, appointment.ErrProviderNotFound
	}
	return false, nil, nil
}

type passLocker struct{}

func (passLocker) WithBookingLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeEmergencyRepo struct{}

func (fakeEmergencyRepo) CreateRequest(_ context.Context, req emergency.Request) (*emergency.Request, error) {
	req.ID = uuid.New()
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	return &req, nil
}

type dropFeed struct{}

func (dropFeed) PublishInsert(_ context.Context, _ string, _ any) error { return nil }

type testEnv struct {
	repo    *fakeApptRepo
	router  http.Handler
	session *session.Registry
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	log := zerolog.Nop()
	repo := newFakeApptRepo()
	evaluator := chatwindow.NewEvaluator(15*time.Minute, 24*time.Hour, chatwindow.DefaultLocation)

	apptSvc := appointment.NewService(repo, passLocker{}, dropFeed{}, evaluator, log)
	emergencySvc := emergency.NewService(fakeEmergencyRepo{}, dropFeed{}, log)

	sessions := session.NewRegistry()
	manager := emergency.NewManager(emergency.ManagerConfig{
		Directory: repo,
		Sessions:  sessions,
		Log:       log,
	})
	t.Cleanup(manager.Shutdown)

	router := NewRouter(RouterConfig{
		Appointments: apptSvc,
		Emergencies:  emergencySvc,
		Sessions:     sessions,
		Manager:      manager,
		Log:          log,
		Env:          "test",
		Version:      "test",
	})

	return testEnv{repo: repo, router: router, session: sessions}
}

func (e testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e testEnv) addPatient() uuid.UUID {
	id := uuid.New()
	e.repo.patients[id] = &appointment.Patient{ID: id, Name: "Ayesha Khan"}
	return id
}

func (e testEnv) addDoctor(approved bool) uuid.UUID {
	id := uuid.New()
	e.repo.providers[id] = &appointment.Provider{ID: id, Name: "Dr. Imran", Kind: appointment.ProviderDoctor, Approved: approved}
	return id
}

func TestBookAppointment(t *testing.T) {
	env := newTestEnv(t)
	patient := env.addPatient()
	doctor := env.addDoctor(true)

	rec := env.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		ProviderID:       doctor.String(),
		PatientID:        patient.String(),
		AppointmentDate:  "2026-09-10",
		AppointmentTime:  "10:00 AM",
		ConsultationType: "online",
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "scheduled", resp.Status)
	assert.Equal(t, "10:00 AM", resp.AppointmentTime)
	assert.NotEqual(t, uuid.Nil, resp.ID)
}

func TestBookAppointmentSlotConflict(t *testing.T) {
	env := newTestEnv(t)
	patient := env.addPatient()
	doctor := env.addDoctor(true)

	body := BookAppointmentRequest{
		ProviderID:       doctor.String(),
		PatientID:        patient.String(),
		AppointmentDate:  "2026-09-10",
		AppointmentTime:  "10:00 AM",
		ConsultationType: "online",
	}

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/appointments", body).Code)

	rec := env.do(t, http.MethodPost, "/appointments", body)
	require.Equal(t, http.StatusConflict, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "slot_taken", errResp.Error)
}

func TestBookAppointmentValidation(t *testing.T) {
	env := newTestEnv(t)
	patient := env.addPatient()
	doctor := env.addDoctor(true)
	unapproved := env.addDoctor(false)

	tests := []struct {
		name     string
		req      BookAppointmentRequest
		wantCode int
		wantErr  string
	}{
		{
			name: "unknown provider",
			req: BookAppointmentRequest{
				ProviderID: uuid.NewString(), PatientID: patient.String(),
				AppointmentDate: "2026-09-10", AppointmentTime: "10:00 AM", ConsultationType: "online",
			},
			wantCode: http.StatusNotFound,
			wantErr:  "provider_not_found",
		},
		{
			name: "unapproved provider",
			req: BookAppointmentRequest{
				ProviderID: unapproved.String(), PatientID: patient.String(),
				AppointmentDate: "2026-09-10", AppointmentTime: "10:00 AM", ConsultationType: "online",
			},
			wantCode: http.StatusConflict,
			wantErr:  "provider_not_approved",
		},
		{
			name: "unparseable time",
			req: BookAppointmentRequest{
				ProviderID: doctor.String(), PatientID: patient.String(),
				AppointmentDate: "2026-09-10", AppointmentTime: "25:99", ConsultationType: "online",
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_schedule",
		},
		{
			name: "bad consultation type",
			req: BookAppointmentRequest{
				ProviderID: doctor.String(), PatientID: patient.String(),
				AppointmentDate: "2026-09-10", AppointmentTime: "10:00 AM", ConsultationType: "video",
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_consultation_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/appointments", tt.req)
			require.Equal(t, tt.wantCode, rec.Code)

			var errResp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
			assert.Equal(t, tt.wantErr, errResp.Error)
		})
	}
}

func TestCancelAppointment(t *testing.T) {
	env := newTestEnv(t)
	patient := env.addPatient()
	doctor := env.addDoctor(true)

	rec := env.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		ProviderID:       doctor.String(),
		PatientID:        patient.String(),
		AppointmentDate:  "2026-09-10",
		AppointmentTime:  "10:00 AM",
		ConsultationType: "online",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/appointments/%s/cancel", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cancelled AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.Equal(t, "cancelled", cancelled.Status)

	// Second cancel hits the wrong-status guard
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/appointments/%s/cancel", created.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestChatStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	patient := env.addPatient()
	doctor := env.addDoctor(true)

	rec := env.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		ProviderID:       doctor.String(),
		PatientID:        patient.String(),
		AppointmentDate:  "2026-09-10",
		AppointmentTime:  "10:00 AM",
		ConsultationType: "online",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// 10 minutes before the appointment: inside the 15-minute lead window
	rec = env.do(t, http.MethodGet,
		fmt.Sprintf("/appointments/%s/chat-status?now=2026-09-10T09:50:00%%2B05:00", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status ChatStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.IsActive)
	assert.True(t, status.IsAccessible)
	assert.Equal(t, chatwindow.StateActive, status.Status)

	// The day before, the window has not opened yet
	rec = env.do(t, http.MethodGet,
		fmt.Sprintf("/appointments/%s/chat-status?now=2026-09-09T09:00:00%%2B05:00", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.IsActive)
	assert.Equal(t, chatwindow.StateNotStarted, status.Status)

	rec = env.do(t, http.MethodGet,
		fmt.Sprintf("/appointments/%s/chat-status?now=banana", created.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatRoomIsStable(t *testing.T) {
	env := newTestEnv(t)
	patient := env.addPatient()
	doctor := env.addDoctor(true)

	rec := env.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		ProviderID:       doctor.String(),
		PatientID:        patient.String(),
		AppointmentDate:  "2026-09-10",
		AppointmentTime:  "10:00 AM",
		ConsultationType: "online",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/appointments/%s/chat-room", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var first ChatRoomResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/appointments/%s/chat-room", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var second ChatRoomResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))

	assert.Equal(t, first.ChatRoomID, second.ChatRoomID)
}

func TestSessionPosture(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.NewString()

	rec := env.do(t, http.MethodPut, "/sessions/"+userID, SessionRequest{
		Role:               "patient",
		PermissionGranted:  true,
		Focused:            true,
		NotificationsReady: true,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	sess, ok := env.session.Get(userID)
	require.True(t, ok)
	assert.True(t, sess.Client.Focused)
	assert.True(t, sess.Client.PermissionGranted)

	rec = env.do(t, http.MethodPut, "/sessions/"+userID+"/active-room", ActiveRoomRequest{RoomID: "room-7"})
	require.Equal(t, http.StatusNoContent, rec.Code)
	sess, _ = env.session.Get(userID)
	assert.Equal(t, "room-7", sess.Client.ActiveRoomID)

	rec = env.do(t, http.MethodPut, "/sessions/"+userID+"/focus", FocusRequest{Focused: false})
	require.Equal(t, http.StatusNoContent, rec.Code)
	sess, _ = env.session.Get(userID)
	assert.False(t, sess.Client.Focused)

	rec = env.do(t, http.MethodPut, "/sessions/"+userID+"/location", LocationRequest{Latitude: 24.86, Longitude: 67.0})
	require.Equal(t, http.StatusNoContent, rec.Code)
	sess, _ = env.session.Get(userID)
	require.NotNil(t, sess.Location)
	assert.InDelta(t, 24.86, sess.Location.Lat, 1e-9)

	rec = env.do(t, http.MethodDelete, "/sessions/"+userID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	_, ok = env.session.Get(userID)
	assert.False(t, ok)
}

func TestCoverageEndpoint(t *testing.T) {
	env := newTestEnv(t)
	nurseID := uuid.NewString()

	env.session.Upsert(session.Session{
		UserID:        nurseID,
		Role:          session.RoleNurse,
		NurseApproved: true,
	})

	rec := env.do(t, http.MethodGet, "/emergencies/coverage", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []CoverageEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, nurseID, entries[0].UserID)
	assert.False(t, entries[0].Subscribed)
	assert.False(t, entries[0].HasLocation)
}

func TestCreateEmergency(t *testing.T) {
	env := newTestEnv(t)
	lat, lng := 24.8607, 67.0011

	rec := env.do(t, http.MethodPost, "/emergencies", CreateEmergencyRequest{
		PatientID:   uuid.NewString(),
		PatientName: "Bilal Ahmed",
		Latitude:    &lat,
		Longitude:   &lng,
		Urgency:     "critical",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp EmergencyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "critical", resp.Urgency)
	assert.Equal(t, "open", resp.Status)
}

func TestCreateEmergencyMissingCoordinates(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/emergencies", CreateEmergencyRequest{
		PatientID:   uuid.NewString(),
		PatientName: "Bilal Ahmed",
		Urgency:     "critical",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "missing_coordinates", errResp.Error)
}
