package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sehatkor/care-gateway/internal/appointment"
	"github.com/sehatkor/care-gateway/internal/chatwindow"
	"github.com/sehatkor/care-gateway/internal/config"
	"github.com/sehatkor/care-gateway/internal/db"
	"github.com/sehatkor/care-gateway/internal/notify"
	"github.com/sehatkor/care-gateway/internal/push"
	"github.com/sehatkor/care-gateway/internal/realtime"
	redisclient "github.com/sehatkor/care-gateway/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLog := zerolog.New(os.Stderr)
		errLog.Fatal().Err(err).Msg("config load error")
	}

	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "reminder-worker").Logger()
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("reminder worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()

	repo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewRedisBookingLocker(rdb, cfg.BookingLockTTL)
	evaluator := chatwindow.NewEvaluator(cfg.ChatLeadTime, cfg.ChatTailTime, cfg.DisplayLocation())
	svc := appointment.NewService(repo, locker, nil, evaluator, log)

	presenter := push.NewPresenter(push.NewClient(cfg.PushEndpoint, cfg.PushAPIKey, log))

	worker := reminderWorker{
		svc:       svc,
		evaluator: evaluator,
		presenter: presenter,
		horizon:   cfg.ChatLeadTime,
		log:       log,
	}

	// Scan on a fixed tick, but let appointment feed events force an
	// immediate rescan so a fresh booking inside the horizon is not stuck
	// waiting out the interval.
	watcher := chatwindow.NewWatcher(cfg.WorkerInterval, log)

	go func() {
		sub := realtime.NewSubscriber(rdb, log)
		err := sub.Subscribe(rootCtx, appointment.FeedTable, func(ctx context.Context, ev realtime.Event) {
			watcher.Invalidate()
		})
		if err != nil {
			log.Warn().Err(err).Msg("appointment feed subscription failed, falling back to tick only")
		}
	}()

	watcher.Run(rootCtx, func(now time.Time) {
		worker.runOnce(rootCtx, now)
	})

	log.Info().Msg("reminder worker stopped")
}

type reminderWorker struct {
	svc       *appointment.Service
	evaluator *chatwindow.Evaluator
	presenter *push.Presenter
	horizon   time.Duration
	log       zerolog.Logger
}

func (w reminderWorker) runOnce(ctx context.Context, now time.Time) {
	if ctx.Err() != nil {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	due, err := w.svc.DueReminders(runCtx, now, w.horizon)
	if err != nil {
		w.log.Error().Err(err).Msg("reminder scan error")
		return
	}

	sent := 0
	for _, appt := range due {
		if err := w.remind(runCtx, appt, now); err != nil {
			w.log.Warn().Err(err).Stringer("appointment_id", appt.ID).Msg("reminder delivery failed")
			continue
		}
		if err := w.svc.MarkReminderSent(runCtx, appt.ID, time.Now()); err != nil {
			w.log.Error().Err(err).Stringer("appointment_id", appt.ID).Msg("mark reminder sent failed")
			continue
		}
		sent++
	}

	w.log.Info().Int("due", len(due)).Int("sent", sent).Dur("took", time.Since(now)).Msg("reminder run complete")
}

// remind delivers the window-opening alert to the patient. The worker has no
// view of client posture, so reminders always surface as visible notifications;
// the appointment channel's tone and vibration ride along.
func (w reminderWorker) remind(ctx context.Context, appt appointment.Appointment, now time.Time) error {
	status, err := w.evaluator.Evaluate(now, appt.AppointmentDate, appt.AppointmentTime, appt.ConsultationType, appt.Status)
	if err != nil {
		return err
	}

	body := "Your consultation chat is now open."
	if status.MinutesUntilActive != nil && *status.MinutesUntilActive > 0 {
		body = fmt.Sprintf("Your consultation chat opens in %d minutes.", *status.MinutesUntilActive)
	}

	ch := notify.ChannelFor(notify.TypeAppointment)
	n := notify.Notification{
		Title:      "Appointment Reminder",
		Body:       body,
		Route:      "/bookings",
		Importance: ch.Importance,
		Vibration:  ch.Vibration,
	}
	if ch.SoundEnabled {
		n.Tone = notify.ToneFor(notify.TypeAppointment)
	}

	return w.presenter.Show(ctx, appt.PatientID.String(), n)
}
