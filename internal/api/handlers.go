package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sehatkor/care-gateway/internal/appointment"
	"github.com/sehatkor/care-gateway/internal/chatwindow"
	"github.com/sehatkor/care-gateway/internal/emergency"
	"github.com/sehatkor/care-gateway/internal/geo"
	"github.com/sehatkor/care-gateway/internal/notify"
	"github.com/sehatkor/care-gateway/internal/session"
)

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:               a.ID,
		ProviderID:       a.ProviderID,
		PatientID:        a.PatientID,
		AppointmentDate:  a.AppointmentDate,
		AppointmentTime:  a.AppointmentTime,
		ConsultationType: string(a.ConsultationType),
		Status:           string(a.Status),
		ChatRoomID:       a.ChatRoomID,
		CreatedAt:        a.CreatedAt,
	}
}

func bookAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		consultation := chatwindow.ConsultationType(req.ConsultationType)
		if consultation != chatwindow.ConsultationOnline && consultation != chatwindow.ConsultationInPerson {
			writeError(w, http.StatusBadRequest, "invalid_consultation_type", "consultation_type must be online or in_person")
			return
		}

		appt, err := svc.BookAppointment(r.Context(), providerID, patientID, req.AppointmentDate, req.AppointmentTime, consultation)
		if err != nil {
			handleBookError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func handleBookError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, appointment.ErrProviderNotApproved):
		writeError(w, http.StatusConflict, "provider_not_approved", err.Error())
	case errors.Is(err, appointment.ErrInvalidSchedule):
		writeError(w, http.StatusBadRequest, "invalid_schedule", err.Error())
	case errors.Is(err, appointment.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func transitionHandler(apply func(r *http.Request, id uuid.UUID) (*appointment.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := apply(r, id)
		if err != nil {
			handleTransitionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func handleTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleTransitionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuid.Parse(r.URL.Query().Get("patient_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		details, err := svc.ListAppointmentsByPatient(r.Context(), patientID, limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		out := make([]AppointmentResponse, 0, len(details))
		for i := range details {
			out = append(out, toAppointmentResponse(&details[i].Appointment))
		}

		writeJSON(w, http.StatusOK, out)
	}
}

// chatStatusHandler evaluates the appointment's activity window. A "now"
// query parameter (RFC3339) overrides the clock, which keeps the endpoint
// deterministic for clients that poll on their own tick.
func chatStatusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		now := time.Now()
		if raw := r.URL.Query().Get("now"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_now", "now must be RFC3339")
				return
			}
			now = parsed
		}

		status, err := svc.ChatStatus(r.Context(), id, now)
		if err != nil {
			if errors.Is(err, appointment.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
				return
			}
			writeError(w, http.StatusUnprocessableEntity, "unevaluable_schedule", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, ChatStatusResponse{
			IsAccessible:       status.IsAccessible,
			IsActive:           status.IsActive,
			Status:             status.State,
			MinutesUntilActive: status.MinutesUntilActive,
			MinutesUntilEnd:    status.MinutesUntilEnd,
			Message:            status.Message,
		})
	}
}

func chatRoomHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		roomID, err := svc.EnsureChatRoom(r.Context(), id)
		if err != nil {
			handleTransitionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, ChatRoomResponse{AppointmentID: id, ChatRoomID: roomID})
	}
}

// upsertSessionHandler mirrors the client's reported posture and drives the
// emergency router lifecycle for nurse sessions.
func upsertSessionHandler(sessions *session.Registry, manager *emergency.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		parsedID, err := uuid.Parse(userID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "userID must be a valid UUID")
			return
		}

		var req SessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		sess := session.Session{
			UserID:        userID,
			Role:          session.Role(req.Role),
			NurseApproved: req.NurseApproved,
			Client: notify.ClientState{
				NotificationsAvailable: req.NotificationsReady,
				PermissionGranted:      req.PermissionGranted,
				Focused:                req.Focused,
				ActiveRoomID:           req.ActiveRoomID,
			},
		}
		if req.Latitude != nil && req.Longitude != nil {
			sess.Location = &geo.Point{Lat: *req.Latitude, Lng: *req.Longitude}
		}
		sessions.Upsert(sess)

		if sess.Role == session.RoleNurse && sess.NurseApproved {
			// Approval is re-verified against the directory inside Activate.
			if err := manager.Activate(r.Context(), parsedID); err != nil && !errors.Is(err, emergency.ErrNurseNotApproved) {
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
				return
			}
		} else {
			manager.Deactivate(parsedID)
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func removeSessionHandler(sessions *session.Registry, manager *emergency.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if parsedID, err := uuid.Parse(userID); err == nil {
			manager.Deactivate(parsedID)
		}
		sessions.Remove(userID)
		w.WriteHeader(http.StatusNoContent)
	}
}

// Partial posture updates. Clients report each change as it happens instead of
// re-sending the whole session; a report for an unknown session is a no-op.

func setActiveRoomHandler(sessions *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ActiveRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		sessions.SetActiveRoom(chi.URLParam(r, "userID"), req.RoomID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func setFocusHandler(sessions *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req FocusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		sessions.SetFocus(chi.URLParam(r, "userID"), req.Focused)
		w.WriteHeader(http.StatusNoContent)
	}
}

func setLocationHandler(sessions *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LocationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		sessions.SetLocation(chi.URLParam(r, "userID"), geo.Point{Lat: req.Latitude, Lng: req.Longitude})
		w.WriteHeader(http.StatusNoContent)
	}
}

// coverageHandler reports which approved nurses are online and whether each
// one holds a live emergency subscription.
func coverageHandler(sessions *session.Registry, manager *emergency.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nurses := sessions.ApprovedNurses()

		out := make([]CoverageEntry, 0, len(nurses))
		for _, sess := range nurses {
			subscribed := false
			if id, err := uuid.Parse(sess.UserID); err == nil {
				subscribed = manager.Active(id)
			}
			out = append(out, CoverageEntry{
				UserID:      sess.UserID,
				Subscribed:  subscribed,
				HasLocation: sess.Location != nil,
				UpdatedAt:   sess.UpdatedAt,
			})
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func createEmergencyHandler(svc *emergency.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateEmergencyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		created, err := svc.CreateRequest(r.Context(), emergency.Request{
			PatientID:   patientID,
			PatientName: req.PatientName,
			Latitude:    req.Latitude,
			Longitude:   req.Longitude,
			Urgency:     emergency.Urgency(req.Urgency),
			Address:     req.Address,
			Notes:       req.Notes,
		})
		if err != nil {
			if errors.Is(err, emergency.ErrMissingCoordinates) {
				writeError(w, http.StatusBadRequest, "missing_coordinates", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, EmergencyResponse{
			ID:          created.ID,
			PatientID:   created.PatientID,
			PatientName: created.PatientName,
			Urgency:     string(created.Urgency),
			Status:      string(created.Status),
			CreatedAt:   created.CreatedAt,
		})
	}
}
