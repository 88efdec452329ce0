package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sehatkor/care-gateway/internal/chatwindow"
	redisclient "github.com/sehatkor/care-gateway/internal/redis"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventReminderSent         = "REMINDER_SENT"
)

// Feed table names published on appointment transitions, consumed by chat
// watchers for window invalidation.
const FeedTable = "appointments"

var (
	ErrSlotTaken               = errors.New("provider already has a scheduled appointment at this time")
	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrProviderNotApproved     = errors.New("provider is not approved for bookings")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidSchedule         = errors.New("appointment date or time is not parseable")
)

// FeedPublisher pushes row events onto the realtime change feed.
type FeedPublisher interface {
	PublishInsert(ctx context.Context, table string, record any) error
}

type Service struct {
	repo      Repository
	locker    redisclient.Locker
	feed      FeedPublisher
	evaluator *chatwindow.Evaluator
	log       zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, feed FeedPublisher, evaluator *chatwindow.Evaluator, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		locker:    locker,
		feed:      feed,
		evaluator: evaluator,
		log:       log,
	}
}

// BookAppointment reserves a provider's time slot for a patient. A per-slot
// Redis lock keeps concurrent requests for the same slot from both booking.
func (s *Service) BookAppointment(ctx context.Context, providerID, patientID uuid.UUID, date, clock string, consultation chatwindow.ConsultationType) (*Appointment, error) {
	if _, err := s.evaluator.ParseAppointmentInstant(date, clock); err != nil {
		return nil, fmt.Errorf("%w: %s %s", ErrInvalidSchedule, date, clock)
	}

	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	provider, err := s.repo.GetProviderByID(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("load provider: %w", err)
	}
	if !provider.Approved {
		return nil, ErrProviderNotApproved
	}

	var created *Appointment

	lockKey := fmt.Sprintf("%s:%s:%s", providerID, date, clock)
	err = s.locker.WithBookingLock(ctx, lockKey, func(lockCtx context.Context) error {
		// Re-check inside the critical section
		existing, err := s.repo.GetScheduledAppointment(lockCtx, providerID, date, clock)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check scheduled appointment: %w", err)
		}
		if existing != nil {
			return ErrSlotTaken
		}

		appt, err := s.repo.CreateAppointment(lockCtx, Appointment{
			ProviderID:       providerID,
			PatientID:        patientID,
			AppointmentDate:  date,
			AppointmentTime:  clock,
			ConsultationType: consultation,
		})
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentBooked, map[string]any{
			"provider_id":       providerID.String(),
			"patient_id":        patientID.String(),
			"appointment_date":  date,
			"appointment_time":  clock,
			"consultation_type": consultation,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.publishFeed(ctx, created)

	return created, nil
}

// CancelAppointment moves a scheduled appointment to cancelled and publishes
// the change so any open chat view can invalidate its window.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, chatwindow.AppointmentScheduled, chatwindow.AppointmentCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, s.transitionError(ctx, id)
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{})
	s.publishFeed(ctx, updated)

	return updated, nil
}

// CompleteAppointment moves a scheduled appointment to completed.
func (s *Service) CompleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, chatwindow.AppointmentScheduled, chatwindow.AppointmentCompleted)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, s.transitionError(ctx, id)
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCompleted, map[string]any{})
	s.publishFeed(ctx, updated)

	return updated, nil
}

// transitionError distinguishes "no such appointment" from "wrong status" when
// a guarded UPDATE matched nothing.
func (s *Service) transitionError(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetAppointmentByID(ctx, id); err != nil {
		return err
	}
	return ErrInvalidStatusTransition
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appointments, nil
}

// ChatStatus evaluates the appointment's activity window against now.
func (s *Service) ChatStatus(ctx context.Context, id uuid.UUID, now time.Time) (chatwindow.Status, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return chatwindow.Status{}, fmt.Errorf("load appointment: %w", err)
	}

	return s.evaluator.Evaluate(now, appt.AppointmentDate, appt.AppointmentTime, appt.ConsultationType, appt.Status)
}

// EnsureChatRoom returns the appointment's chat room, creating it on first use.
func (s *Service) EnsureChatRoom(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	roomID, err := s.repo.EnsureChatRoom(ctx, id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("ensure chat room: %w", err)
	}
	return roomID, nil
}

// DueReminders returns online scheduled appointments whose activity window
// opens within [now, now+horizon) and which have not been reminded yet.
// Unparseable rows are skipped and logged, never fatal.
func (s *Service) DueReminders(ctx context.Context, now time.Time, horizon time.Duration) ([]Appointment, error) {
	fromDate := now.AddDate(0, 0, -1).Format("2006-01-02")

	candidates, err := s.repo.FindUnremindedOnline(ctx, fromDate)
	if err != nil {
		return nil, fmt.Errorf("find unreminded appointments: %w", err)
	}

	var due []Appointment
	for _, appt := range candidates {
		status, err := s.evaluator.Evaluate(now, appt.AppointmentDate, appt.AppointmentTime, appt.ConsultationType, appt.Status)
		if err != nil {
			s.log.Warn().Err(err).Stringer("appointment_id", appt.ID).Msg("skipping appointment with unparseable schedule")
			continue
		}

		switch {
		case status.State == chatwindow.StateActive:
			due = append(due, appt)
		case status.MinutesUntilActive != nil && time.Duration(*status.MinutesUntilActive)*time.Minute <= horizon:
			due = append(due, appt)
		}
	}

	return due, nil
}

// MarkReminderSent records that a reminder went out, so the worker never sends
// a second one for the same window opening.
func (s *Service) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := s.repo.MarkReminderSent(ctx, id, at); err != nil {
		return err
	}
	s.logEvent(ctx, id, EventReminderSent, map[string]any{"sent_at": at})
	return nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("marshal event payload failed")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Stringer("appointment_id", appointmentID).Msg("insert event log failed")
	}
}

// appointmentRecord is the wire shape of an appointment row on the feed.
type appointmentRecord struct {
	ID               string `json:"id"`
	ProviderID       string `json:"provider_id"`
	PatientID        string `json:"patient_id"`
	AppointmentDate  string `json:"appointment_date"`
	AppointmentTime  string `json:"appointment_time"`
	ConsultationType string `json:"consultation_type"`
	Status           string `json:"status"`
}

func (s *Service) publishFeed(ctx context.Context, appt *Appointment) {
	if s.feed == nil || appt == nil {
		return
	}

	rec := appointmentRecord{
		ID:               appt.ID.String(),
		ProviderID:       appt.ProviderID.String(),
		PatientID:        appt.PatientID.String(),
		AppointmentDate:  appt.AppointmentDate,
		AppointmentTime:  appt.AppointmentTime,
		ConsultationType: string(appt.ConsultationType),
		Status:           string(appt.Status),
	}

	if err := s.feed.PublishInsert(ctx, FeedTable, rec); err != nil {
		s.log.Warn().Err(err).Stringer("appointment_id", appt.ID).Msg("publish appointment feed event failed")
	}
}
