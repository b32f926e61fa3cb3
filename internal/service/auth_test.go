package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/tasktracker/tasktracker/internal/auth"
	"github.com/tasktracker/tasktracker/internal/model"
	"github.com/tasktracker/tasktracker/internal/repository"
)

// fakeCredentialStore is an in-memory CredentialStore with the same
// uniqueness semantics as the real repository.
type fakeCredentialStore struct {
	mu      sync.Mutex
	byName  map[string]*model.User
	byID    map[string]*model.User
	failAll error
}

func newFakeCredentialStore() *fakeCredentialStore {
	return &fakeCredentialStore{
		byName: make(map[string]*model.User),
		byID:   make(map[string]*model.User),
	}
}

func (s *fakeCredentialStore) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	if _, ok := s.byName[user.Username]; ok {
		return repository.ErrUsernameExists
	}
	u := *user
	s.byName[u.Username] = &u
	s.byID[u.ID] = &u
	return nil
}

func (s *fakeCredentialStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return nil, s.failAll
	}
	u, ok := s.byName[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeCredentialStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return nil, s.failAll
	}
	u, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeCredentialStore) deleteByUsername(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byName[username]; ok {
		delete(s.byID, u.ID)
		delete(s.byName, username)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuthService(t *testing.T, store CredentialStore, ttl time.Duration) *AuthService {
	t.Helper()
	codec := auth.NewTokenCodec([]byte("test-secret-used-only-in-tests"), ttl)
	return NewAuthService(store, codec, nil, discardLogger(), nil)
}

func TestRegisterAndLogin(t *testing.T) {
	store := newFakeCredentialStore()
	svc := newTestAuthService(t, store, 30*time.Minute)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "correct horse battery", nil)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.ID == "" {
		t.Error("expected non-empty user ID")
	}
	if user.PasswordHash == "alice" || user.PasswordHash == "correct horse battery" {
		t.Error("password stored without hashing")
	}

	token, err := svc.Login(ctx, "alice", "correct horse battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	identity, err := svc.ResolveIdentity(ctx, token)
	if err != nil {
		t.Fatalf("ResolveIdentity failed: %v", err)
	}
	if identity.Username != "alice" {
		t.Errorf("expected username alice, got %s", identity.Username)
	}
	if identity.UserID != user.ID {
		t.Errorf("expected user ID %s, got %s", user.ID, identity.UserID)
	}
}

func TestRegisterValidation(t *testing.T) {
	store := newFakeCredentialStore()
	svc := newTestAuthService(t, store, time.Minute)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"empty username", "", "long enough pass", ErrUsernameRequired},
		{"username too long", string(make([]byte, 51)), "long enough pass", ErrUsernameTooLong},
		{"password too short", "bob", "short", ErrPasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, tt.password, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	store := newFakeCredentialStore()
	svc := newTestAuthService(t, store, time.Minute)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "first password", nil); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	_, err := svc.Register(ctx, "alice", "second password", nil)
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken, got %v", err)
	}
}

// raceStore simulates losing the race between the pre-check and the
// insert: the lookup misses but the insert hits the unique constraint.
type raceStore struct {
	*fakeCredentialStore
}

func (s *raceStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return nil, repository.ErrUserNotFound
}

func (s *raceStore) CreateUser(ctx context.Context, user *model.User) error {
	return repository.ErrUsernameExists
}

func TestRegisterLosesInsertRace(t *testing.T) {
	svc := newTestAuthService(t, &raceStore{newFakeCredentialStore()}, time.Minute)

	_, err := svc.Register(context.Background(), "alice", "some password", nil)
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	store := newFakeCredentialStore()
	svc := newTestAuthService(t, store, time.Minute)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "alice password", nil); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, wrongPassErr := svc.Login(ctx, "alice", "not her password")
	_, unknownUserErr := svc.Login(ctx, "nobody", "whatever password")

	if !errors.Is(wrongPassErr, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", wrongPassErr)
	}
	if !errors.Is(unknownUserErr, ErrInvalidCredentials) {
		t.Errorf("unknown user: expected ErrInvalidCredentials, got %v", unknownUserErr)
	}
	if wrongPassErr.Error() != unknownUserErr.Error() {
		t.Errorf("failure messages differ: %q vs %q", wrongPassErr, unknownUserErr)
	}
}

func TestResolveIdentityExpiredToken(t *testing.T) {
	store := newFakeCredentialStore()
	svc := newTestAuthService(t, store, time.Minute)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "alice password", nil); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Issue an already-expired token out of band.
	codec := auth.NewTokenCodec([]byte("test-secret-used-only-in-tests"), time.Minute)
	token, err := codec.IssueWithTTL("alice", -time.Minute)
	if err != nil {
		t.Fatalf("IssueWithTTL failed: %v", err)
	}

	_, err = svc.ResolveIdentity(ctx, token)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestResolveIdentityGarbageToken(t *testing.T) {
	svc := newTestAuthService(t, newFakeCredentialStore(), time.Minute)

	for _, token := range []string{"", "garbage", "a.b.c", "Bearer something"} {
		if _, err := svc.ResolveIdentity(context.Background(), token); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("token %q: expected ErrUnauthenticated, got %v", token, err)
		}
	}
}

func TestResolveIdentityDeletedUser(t *testing.T) {
	store := newFakeCredentialStore()
	svc := newTestAuthService(t, store, time.Minute)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "alice password", nil); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	token, err := svc.Login(ctx, "alice", "alice password")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// The token stays cryptographically valid after the account is gone,
	// but must no longer resolve.
	store.deleteByUsername("alice")

	_, err = svc.ResolveIdentity(ctx, token)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestResolveIdentityStoreError(t *testing.T) {
	store := newFakeCredentialStore()
	svc := newTestAuthService(t, store, time.Minute)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "alice password", nil); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	token, err := svc.Login(ctx, "alice", "alice password")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	store.failAll = errors.New("connection refused")

	_, err = svc.ResolveIdentity(ctx, token)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrUnauthenticated) {
		t.Error("store failure must not masquerade as an auth failure")
	}
}

// memIdentityCache is a map-backed IdentityCache for tests.
type memIdentityCache struct {
	mu   sync.Mutex
	data map[string]*model.Identity
	hits int
	sets int
}

func (c *memIdentityCache) GetIdentity(ctx context.Context, username string) (*model.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.data[username]
	if !ok {
		return nil, nil
	}
	c.hits++
	return id, nil
}

func (c *memIdentityCache) SetIdentity(ctx context.Context, id *model.Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[id.Username] = id
	c.sets++
	return nil
}

func TestResolveIdentityUsesCache(t *testing.T) {
	store := newFakeCredentialStore()
	cache := &memIdentityCache{data: make(map[string]*model.Identity)}
	codec := auth.NewTokenCodec([]byte("test-secret-used-only-in-tests"), time.Minute)
	svc := NewAuthService(store, codec, cache, discardLogger(), nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "alice password", nil); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	token, err := svc.Login(ctx, "alice", "alice password")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := svc.ResolveIdentity(ctx, token); err != nil {
		t.Fatalf("first ResolveIdentity failed: %v", err)
	}
	if cache.sets != 1 {
		t.Errorf("expected 1 cache set, got %d", cache.sets)
	}

	if _, err := svc.ResolveIdentity(ctx, token); err != nil {
		t.Fatalf("second ResolveIdentity failed: %v", err)
	}
	if cache.hits != 1 {
		t.Errorf("expected 1 cache hit, got %d", cache.hits)
	}

	// An expired token must be rejected before the cache is consulted.
	expired, err := codec.IssueWithTTL("alice", -time.Minute)
	if err != nil {
		t.Fatalf("IssueWithTTL failed: %v", err)
	}
	prevHits := cache.hits
	if _, err := svc.ResolveIdentity(ctx, expired); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
	if cache.hits != prevHits {
		t.Error("cache consulted for a token that failed verification")
	}
}

func TestConcurrentLogins(t *testing.T) {
	store := newFakeCredentialStore()
	svc := newTestAuthService(t, store, time.Minute)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "alice password", nil); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := svc.Login(ctx, "alice", "alice password")
			if err != nil {
				errs <- err
				return
			}
			if _, err := svc.ResolveIdentity(ctx, token); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent login failed: %v", err)
	}
}
