package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sehatkor/care-gateway/internal/api"
	"github.com/sehatkor/care-gateway/internal/appointment"
	"github.com/sehatkor/care-gateway/internal/chatwindow"
	"github.com/sehatkor/care-gateway/internal/config"
	"github.com/sehatkor/care-gateway/internal/db"
	"github.com/sehatkor/care-gateway/internal/emergency"
	"github.com/sehatkor/care-gateway/internal/notify"
	"github.com/sehatkor/care-gateway/internal/push"
	"github.com/sehatkor/care-gateway/internal/realtime"
	redisclient "github.com/sehatkor/care-gateway/internal/redis"
	"github.com/sehatkor/care-gateway/internal/session"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLog := zerolog.New(os.Stderr)
		errLog.Fatal().Err(err).Msg("config load error")
	}

	log := newLogger(cfg.Env).With().Str("service", "gateway").Logger()
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("gateway starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	evaluator := chatwindow.NewEvaluator(cfg.ChatLeadTime, cfg.ChatTailTime, cfg.DisplayLocation())
	feed := realtime.NewPublisher(rdb)
	locker := redisclient.NewRedisBookingLocker(rdb, cfg.BookingLockTTL)

	apptRepo := appointment.NewPgRepository(pgPool)
	apptSvc := appointment.NewService(apptRepo, locker, feed, evaluator, log)

	pushClient := push.NewClient(cfg.PushEndpoint, cfg.PushAPIKey, log)
	dispatcher := notify.NewDispatcher(push.NewPresenter(pushClient), log)

	sessions := session.NewRegistry()

	emergencyRepo := emergency.NewPgRepository(pgPool)
	emergencySvc := emergency.NewService(emergencyRepo, feed, log)

	manager := emergency.NewManager(emergency.ManagerConfig{
		Subscriber:     realtime.NewSubscriber(rdb, log),
		Directory:      apptRepo,
		Sessions:       sessions,
		Dispatcher:     dispatcher,
		Refresh:        cfg.LocationRefresh,
		DedupeCapacity: cfg.DedupeCapacity,
		DefaultRadius:  cfg.EmergencyRadiusKm,
		Log:            log,
	})
	defer manager.Shutdown()

	router := api.NewRouter(api.RouterConfig{
		Appointments: apptSvc,
		Emergencies:  emergencySvc,
		Sessions:     sessions,
		Manager:      manager,
		PgPool:       pgPool,
		Redis:        rdb,
		Log:          log,
		Env:          cfg.Env,
		Version:      version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("gateway stopped")
}

func newLogger(env string) zerolog.Logger {
	if env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
