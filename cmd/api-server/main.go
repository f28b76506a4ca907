package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/optician-booking/internal/api"
	"github.com/hackgods/optician-booking/internal/appointment"
	"github.com/hackgods/optician-booking/internal/config"
	"github.com/hackgods/optician-booking/internal/db"
	"github.com/hackgods/optician-booking/internal/logger"
	"github.com/hackgods/optician-booking/internal/notify"
	redisclient "github.com/hackgods/optician-booking/internal/redis"
	"github.com/hackgods/optician-booking/internal/staff"
)

var version = "dev"

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

	zlog.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("timezone", cfg.Timezone),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, "api-server")
	cancelPg()
	if err != nil {
		zlog.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	zlog.Info("connected to Postgres")

	if err := db.Migrate(rootCtx, pgPool); err != nil {
		zlog.Fatal("schema migration error", zap.Error(err))
	}

	// Redis is optional: without it bookings rely on the database alone and
	// the rate limiter is off.
	var (
		locker      redisclient.Locker
		rateLimiter *redisclient.RateLimiter
		redisPinger api.Pinger
	)
	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		zlog.Warn("redis unavailable, continuing without slot locks", zap.Error(err))
	} else {
		defer func() {
			if err := rdb.Close(); err != nil {
				zlog.Warn("error closing redis", zap.Error(err))
			}
		}()
		zlog.Info("connected to Redis")
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
		rateLimiter = redisclient.NewRateLimiter(rdb, cfg.RateLimitRequests, cfg.RateLimitWindow, "rl:appointments", zlog)
		redisPinger = redisPing(rdb)
	}

	publisher := notify.NewPublisher(cfg.RabbitMQURL, cfg.AMQPDialTimeout)
	defer func() {
		if err := publisher.Close(); err != nil {
			zlog.Warn("error closing rabbitmq publisher", zap.Error(err))
		}
	}()

	repo := appointment.NewPgRepository(pgPool)
	svc := appointment.NewService(repo, locker, publisher, cfg, zlog.Named("appointment"))
	if err := svc.SyncTimeSlots(rootCtx); err != nil {
		zlog.Fatal("time slot sync error", zap.Error(err))
	}
	zlog.Info("time slots synced", zap.Int("count", len(svc.Slots())))

	staffSvc := staff.NewService(staff.NewPgRepository(pgPool), cfg.JWTSecret, cfg.JWTTTL)

	router := api.NewRouter(api.RouterConfig{
		Appointments: svc,
		Staff:        staffSvc,
		Health:       api.NewHealthHandler(pgPool, redisPinger, cfg.Env, version),
		RateLimiter:  rateLimiter,
		Logger:       zlog.Named("http"),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		zlog.Info("shutdown signal received")
	case err := <-errCh:
		zlog.Error("http server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}

	zlog.Info("api-server stopped")
}

func redisPing(rdb *redis.Client) api.PingFunc {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
