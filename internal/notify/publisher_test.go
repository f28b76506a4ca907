package notify

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/optician-booking/internal/appointment"
)

// silentBroker accepts TCP connections and never speaks AMQP.
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

func testAppointment() appointment.Appointment {
	return appointment.Appointment{
		ID:        uuid.New(),
		FullName:  "Ada Lovelace",
		Date:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		SlotID:    2,
		SlotLabel: "10:00 AM - 11:00 AM",
		Services:  []string{"Eye Test"},
	}
}

func TestPublisher_UnresponsiveBrokerTimesOut(t *testing.T) {
	p := NewPublisher(silentBroker(t), 200*time.Millisecond)
	defer p.Close()

	start := time.Now()
	err := p.BookingCreated(context.Background(), testAppointment())
	if err == nil {
		t.Fatal("expected dial error")
	}
	if took := time.Since(start); took > 3*time.Second {
		t.Fatalf("publish took %s", took)
	}
}

func TestPublisher_HonoursCallerDeadline(t *testing.T) {
	p := NewPublisher(silentBroker(t), time.Minute)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := p.BookingCreated(ctx, testAppointment()); err == nil {
		t.Fatal("expected dial error")
	}
	if took := time.Since(start); took > 3*time.Second {
		t.Fatalf("publish took %s", took)
	}
}

func TestPublisher_ConcurrentCallersDoNotQueue(t *testing.T) {
	p := NewPublisher(silentBroker(t), 300*time.Millisecond)
	defer p.Close()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.BookingCreated(context.Background(), testAppointment())
		}()
	}
	wg.Wait()

	// Serialized dials would take 8 x 300ms.
	if took := time.Since(start); took > 2*time.Second {
		t.Fatalf("concurrent publishes took %s", took)
	}
}
