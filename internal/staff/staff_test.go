package staff

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type memRepo struct {
	mu    sync.Mutex
	users map[string]User
}

func (m *memRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (m *memRepo) Upsert(_ context.Context, username, hash string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := User{ID: uuid.New(), Username: username, PasswordHash: hash, CreatedAt: time.Now()}
	m.users[username] = u
	return &u, nil
}

func TestLoginRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&memRepo{users: map[string]User{}}, "secret", time.Hour)

	if _, err := svc.Register(ctx, "reception", "correct horse"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, exp, err := svc.Login(ctx, "reception", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("token already expired: %s", exp)
	}

	claims, err := svc.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if claims.Subject != "reception" || claims.Role != RoleStaff {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{users: map[string]User{}}
	svc := NewService(repo, "secret", time.Hour)
	if _, err := svc.Register(ctx, "reception", "correct horse"); err != nil {
		t.Fatal(err)
	}

	if _, _, err := svc.Login(ctx, "reception", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: %v", err)
	}
}

func TestRegisterValidates(t *testing.T) {
	svc := NewService(&memRepo{users: map[string]User{}}, "secret", time.Hour)
	if _, err := svc.Register(context.Background(), " ", "long enough"); err == nil {
		t.Fatal("expected error for empty username")
	}
	if _, err := svc.Register(context.Background(), "a", "short"); err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestParseTokenRejects(t *testing.T) {
	now := time.Now()
	expired, _, err := IssueToken("secret", "reception", -time.Minute, now)
	if err != nil {
		t.Fatal(err)
	}
	good, _, err := IssueToken("secret", "reception", time.Minute, now)
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string]struct{ secret, token string }{
		"expired":      {"secret", expired},
		"wrong secret": {"other", good},
		"garbage":      {"secret", "not.a.token"},
		"empty":        {"secret", ""},
	}
	for name, tc := range cases {
		if _, err := ParseToken(tc.secret, tc.token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyPassword(hash, "s3cret-pass") || VerifyPassword(hash, "nope") {
		t.Fatal("VerifyPassword mismatch")
	}
}
