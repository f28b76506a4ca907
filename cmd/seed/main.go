package main

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"

	"github.com/hackgods/optician-booking/internal/appointment"
	"github.com/hackgods/optician-booking/internal/config"
	"github.com/hackgods/optician-booking/internal/db"
	"github.com/hackgods/optician-booking/internal/logger"
	"github.com/hackgods/optician-booking/internal/slots"
	"github.com/hackgods/optician-booking/internal/staff"
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
	zlog.Info("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, "seed")
	if err != nil {
		zlog.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		zlog.Fatal("migrate", zap.Error(err))
	}

	gofakeit.Seed(time.Now().UnixNano())

	svc := appointment.NewService(appointment.NewPgRepository(pool), nil, nil, cfg, zlog.Named("appointment"))
	if err := svc.SyncTimeSlots(ctx); err != nil {
		zlog.Fatal("sync time slots", zap.Error(err))
	}

	staffSvc := staff.NewService(staff.NewPgRepository(pool), cfg.JWTSecret, cfg.JWTTTL)
	username := getEnv("SEED_STAFF_USERNAME", "reception")
	if _, err := staffSvc.Register(ctx, username, getEnv("SEED_STAFF_PASSWORD", "change-me-please")); err != nil {
		zlog.Fatal("seed staff user", zap.Error(err))
	}
	zlog.Info("staff user ready", zap.String("username", username))

	days, err := seedAvailability(ctx, svc, getInt("SEED_DAYS", 14))
	if err != nil {
		zlog.Fatal("seed availability", zap.Error(err))
	}
	zlog.Info("availability seeded", zap.Int("days", len(days)))

	booked, err := seedAppointments(ctx, svc, days, getInt("SEED_APPOINTMENTS", 25))
	if err != nil {
		zlog.Fatal("seed appointments", zap.Error(err))
	}
	zlog.Info("seed complete", zap.Int("appointments", booked))
}

// seedAvailability opens every slot on the coming weekdays.
func seedAvailability(ctx context.Context, svc *appointment.Service, n int) ([]time.Time, error) {
	all := make([]int, len(svc.Slots()))
	for i, s := range svc.Slots() {
		all[i] = s.ID
	}

	today := slots.Today(time.Now(), svc.Location())
	var days []time.Time
	for i := 1; len(days) < n && i <= n*2; i++ {
		day := today.AddDate(0, 0, i)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		if _, err := svc.UpdateAvailability(ctx, day, all); err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, nil
}

func seedAppointments(ctx context.Context, svc *appointment.Service, days []time.Time, count int) (int, error) {
	if len(days) == 0 {
		return 0, nil
	}

	booked := 0
	for attempt := 0; booked < count && attempt < count*3; attempt++ {
		day := days[gofakeit.Number(0, len(days)-1)]
		open, err := svc.AvailableSlots(ctx, day)
		if err != nil {
			return booked, err
		}
		if len(open) == 0 {
			continue
		}
		slot := open[gofakeit.Number(0, len(open)-1)]

		_, err = svc.Book(ctx, appointment.BookingRequest{
			FullName:    gofakeit.Name(),
			DateOfBirth: gofakeit.DateRange(time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)).Truncate(24 * time.Hour),
			Phone:       gofakeit.Phone(),
			Email:       gofakeit.Email(),
			Date:        day,
			SlotID:      slot.ID,
			Services:    pickServices(svc.Services()),
			IsNewUser:   gofakeit.Bool(),
		})
		if errors.Is(err, appointment.ErrSlotUnavailable) {
			continue
		}
		if err != nil {
			return booked, err
		}
		booked++
	}
	return booked, nil
}

func pickServices(catalog []string) []string {
	shuffled := append([]string(nil), catalog...)
	gofakeit.ShuffleStrings(shuffled)
	return shuffled[:gofakeit.Number(1, min(2, len(shuffled)))]
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
