package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/capitalize-ai/alpine-chat/internal/model"
	"github.com/capitalize-ai/alpine-chat/internal/store"
	"github.com/capitalize-ai/alpine-chat/pkg/logger"
)

func newTestService(t *testing.T, ttl time.Duration) (*Service, *store.MemoryStore) {
	t.Helper()
	repo := store.NewMemory()
	return NewService(repo, NewTokenIssuer("test-secret", ttl), logger.NewNop()), repo
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("pw123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "pw123" || !strings.HasPrefix(hash, "$2") {
		t.Fatalf("expected bcrypt hash, got %q", hash)
	}
	if !CheckPassword(hash, "pw123") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "pw124") {
		t.Error("wrong password accepted")
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, repo := newTestService(t, time.Hour)
	ctx := context.Background()

	resp, err := svc.Register(ctx, &model.RegisterRequest{
		Email: " Alice@Example.com ", Password: "pw123", FullName: "Alice",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.Token == "" || resp.User.Email != "alice@example.com" || !resp.User.IsActive {
		t.Fatalf("unexpected response %+v", resp)
	}

	stored, _ := repo.GetUser(ctx, resp.User.ID)
	if stored.PasswordHash == "pw123" {
		t.Fatal("plaintext password persisted")
	}

	_, err = svc.Register(ctx, &model.RegisterRequest{Email: "alice@example.com", Password: "x", FullName: "A"})
	if !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}

	if _, err := svc.Authenticate(ctx, &model.LoginRequest{Email: "alice@example.com", Password: "pw123"}); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, err := svc.Authenticate(ctx, &model.LoginRequest{Email: "alice@example.com", Password: "nope"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, &model.LoginRequest{Email: "ghost@example.com", Password: "pw123"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	resp, err := svc.Register(ctx, &model.RegisterRequest{Email: "bob@example.com", Password: "pw", FullName: "Bob"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	user, err := svc.Verify(ctx, resp.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if user.ID != resp.User.ID {
		t.Errorf("Verify returned %s, want %s", user.ID, resp.User.ID)
	}

	if _, err := svc.Verify(ctx, resp.Token); err != nil {
		t.Fatalf("Verify (again): %v", err)
	}

	if _, err := svc.Verify(ctx, resp.Token+"x"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("tampered token: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := svc.Verify(ctx, "not-a-jwt"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("garbage token: expected ErrUnauthenticated, got %v", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	svc, _ := newTestService(t, -time.Minute)
	ctx := context.Background()

	resp, err := svc.Register(ctx, &model.RegisterRequest{Email: "carol@example.com", Password: "pw", FullName: "Carol"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Verify(ctx, resp.Token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for expired token, got %v", err)
	}
}

func TestVerifyUnknownUser(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)

	token, _, err := NewTokenIssuer("test-secret", time.Hour).Issue("no-such-user")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.Verify(context.Background(), token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestInactiveUser(t *testing.T) {
	svc, repo := newTestService(t, time.Hour)
	ctx := context.Background()

	hash, _ := HashPassword("pw")
	user := &model.User{ID: "u-inactive", Email: "dave@example.com", PasswordHash: hash, IsActive: false, CreatedAt: time.Now()}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if _, err := svc.Authenticate(ctx, &model.LoginRequest{Email: "dave@example.com", Password: "pw"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	token, _, _ := NewTokenIssuer("test-secret", time.Hour).Issue(user.ID)
	if _, err := svc.Verify(ctx, token); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestTokenIssuerRejectsOtherSecretAndAlgorithm(t *testing.T) {
	issuer := NewTokenIssuer("secret-a", time.Hour)
	token, _, err := NewTokenIssuer("secret-b", time.Hour).Issue("u1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuer.Parse(token); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}

	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, _ := issuer.Issue("u1")
	issuer.now = time.Now
	_, err = issuer.Parse(old)
	if !IsExpired(err) {
		t.Errorf("expected expired error, got %v", err)
	}
}

// mutableUsers lets a test deactivate a stored user and counts lookups.
type mutableUsers struct {
	*store.MemoryStore
	mu       sync.Mutex
	inactive map[string]bool
	lookups  int
}

func (m *mutableUsers) GetUser(ctx context.Context, userID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	u, err := m.MemoryStore.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := *u
	if m.inactive[userID] {
		out.IsActive = false
	}
	return &out, nil
}

func TestVerifySeesDeactivationImmediately(t *testing.T) {
	users := &mutableUsers{MemoryStore: store.NewMemory(), inactive: map[string]bool{}}
	svc := NewService(users, NewTokenIssuer("test-secret", time.Hour), logger.NewNop())
	ctx := context.Background()

	resp, err := svc.Register(ctx, &model.RegisterRequest{Email: "erin@example.com", Password: "pw", FullName: "Erin"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Verify(ctx, resp.Token); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	users.mu.Lock()
	users.inactive[resp.User.ID] = true
	users.mu.Unlock()

	if _, err := svc.Verify(ctx, resp.Token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("deactivated user still verified: %v", err)
	}
}

func TestVerifyCachesRejections(t *testing.T) {
	users := &mutableUsers{MemoryStore: store.NewMemory(), inactive: map[string]bool{}}
	svc := NewService(users, NewTokenIssuer("test-secret", time.Hour), logger.NewNop())
	ctx := context.Background()

	token, _, err := NewTokenIssuer("test-secret", time.Hour).Issue("ghost")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.Verify(ctx, token); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("attempt %d: expected ErrUnauthenticated, got %v", i, err)
		}
	}
	if users.lookups != 1 {
		t.Errorf("expected 1 store lookup for a rejected user, got %d", users.lookups)
	}
}
