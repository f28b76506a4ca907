package redisclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := NewRedisClient(context.Background(), mr.Addr(), "", "")
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestSlotLock_ExclusiveAndReleased(t *testing.T) {
	mr, rdb := newTestClient(t)
	locker := NewRedisSlotLocker(rdb, 5*time.Second)
	ctx := context.Background()

	err := locker.WithSlotLock(ctx, "2024-06-01:2", func(ctx context.Context) error {
		if !mr.Exists("lock:slot:2024-06-01:2") {
			t.Fatal("lock key not set while held")
		}
		inner := locker.WithSlotLock(ctx, "2024-06-01:2", func(context.Context) error {
			t.Fatal("second holder must not run")
			return nil
		})
		if !errors.Is(inner, ErrLockNotAcquired) {
			t.Fatalf("expected ErrLockNotAcquired, got %v", inner)
		}
		// A different slot is independent.
		return locker.WithSlotLock(ctx, "2024-06-01:3", func(context.Context) error { return nil })
	})
	if err != nil {
		t.Fatalf("WithSlotLock: %v", err)
	}
	if mr.Exists("lock:slot:2024-06-01:2") {
		t.Fatal("lock key not released")
	}
}

func TestSlotLock_PropagatesError(t *testing.T) {
	_, rdb := newTestClient(t)
	locker := NewRedisSlotLocker(rdb, time.Second)
	boom := errors.New("boom")

	err := locker.WithSlotLock(context.Background(), "k", func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestSlotLock_DoesNotReleaseForeignToken(t *testing.T) {
	mr, rdb := newTestClient(t)
	locker := NewRedisSlotLocker(rdb, time.Second)

	err := locker.WithSlotLock(context.Background(), "k", func(context.Context) error {
		// Simulate expiry and takeover by another holder.
		mr.Set("lock:slot:k", "someone-else")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := mr.Get("lock:slot:k"); v != "someone-else" {
		t.Fatalf("foreign lock was released, value=%q", v)
	}
}

func TestNoopLocker(t *testing.T) {
	called := false
	err := NoopLocker{}.WithSlotLock(context.Background(), "k", func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("err=%v called=%v", err, called)
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	mr, rdb := newTestClient(t)
	rl := NewRateLimiter(rdb, 2, time.Minute, "rl:test", nil)

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/appointments", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := do("10.0.0.1:1234"); code != http.StatusNoContent {
			t.Fatalf("request %d: status %d", i, code)
		}
	}
	if code := do("10.0.0.1:5555"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := do("10.0.0.2:1234"); code != http.StatusNoContent {
		t.Fatalf("other client limited: %d", code)
	}

	mr.FastForward(time.Minute + time.Second)
	if code := do("10.0.0.1:1234"); code != http.StatusNoContent {
		t.Fatalf("window did not reset: %d", code)
	}
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	mr, rdb := newTestClient(t)
	rl := NewRateLimiter(rdb, 1, time.Minute, "", nil)
	mr.Close()

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected request to pass when redis is down, got %d", rec.Code)
	}
}
