package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/optician-booking/internal/appointment"
	"github.com/hackgods/optician-booking/internal/config"
	"github.com/hackgods/optician-booking/internal/db"
	"github.com/hackgods/optician-booking/internal/logger"
	"github.com/hackgods/optician-booking/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	zlog.Info("notifier starting up",
		zap.String("env", cfg.Env),
		zap.String("smtp", cfg.SMTPHost+":"+cfg.SMTPPort),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, "notifier")
	cancelPg()
	if err != nil {
		zlog.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	zlog.Info("connected to Postgres")

	var cal notify.Calendar
	if cfg.CalendarID != "" {
		gc, err := notify.NewGoogleCalendar(rootCtx, cfg.CalendarID, cfg.CredentialsFile)
		if err != nil {
			zlog.Fatal("google calendar error", zap.Error(err))
		}
		cal = gc
		zlog.Info("calendar events enabled", zap.String("calendar_id", cfg.CalendarID))
	} else {
		zlog.Info("GOOGLE_CALENDAR_ID not set, calendar events disabled")
	}

	handler := notify.NewHandler(
		notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom),
		cal,
		appointment.NewPgRepository(pgPool),
		cfg.Location(),
		cfg.PracticeEmail,
		zlog.Named("handler"),
	)

	consumer := notify.NewConsumer(cfg.RabbitMQURL, handler, zlog.Named("consumer"))
	if err := consumer.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		zlog.Error("consumer stopped", zap.Error(err))
	}

	zlog.Info("notifier stopped")
}
