package authcore

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/veriden/authcore/event"
	"github.com/veriden/authcore/password"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password = PasswordConfig{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
	return cfg
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*User)}
}

func (s *fakeUserStore) add(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *fakeUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.ToLower(u.Email) == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *fakeUserStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *fakeUserStore) IncrementFailedAttempts(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	u.FailedAttempts++
	return u.FailedAttempts, nil
}

func (s *fakeUserStore) ResetFailedAttempts(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.FailedAttempts = 0
	return nil
}

func (s *fakeUserStore) LockAccount(_ context.Context, userID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.Status = StatusLocked
	u.LockedUntil = &until
	return nil
}

func (s *fakeUserStore) UnlockAccount(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.Status = StatusActive
	u.LockedUntil = nil
	u.FailedAttempts = 0
	return nil
}

// setLockedUntil rewrites the lock timestamp directly, simulating an
// expired lock window.
func (s *fakeUserStore) setLockedUntil(userID string, until time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID].LockedUntil = &until
}

type recordingSender struct {
	mu    sync.Mutex
	codes []string
	fail  bool
}

func (r *recordingSender) Send(_ context.Context, _ string, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return context.DeadlineExceeded
	}
	r.codes = append(r.codes, code)
	return nil
}

func (r *recordingSender) lastCode(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.codes) == 0 {
		t.Fatal("no SMS codes were sent")
	}
	return r.codes[len(r.codes)-1]
}

func (r *recordingSender) sent() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes)
}

func (r *recordingSender) setFail(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = fail
}

type testEnv struct {
	auth   *Authenticator
	redis  *miniredis.Miniredis
	users  *fakeUserStore
	sender *recordingSender
	log    *event.MemoryLog
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	mr, rdb := newTestRedis(t)
	users := newFakeUserStore()
	sender := &recordingSender{}
	log := event.NewMemoryLog()

	auth, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithSMSSender(sender).
		WithEventLog(log).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(auth.Close)

	return &testEnv{auth: auth, redis: mr, users: users, sender: sender, log: log}
}

func (e *testEnv) addUser(t *testing.T, u *User) *User {
	t.Helper()

	hasher, err := password.NewHasher(password.Params{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	hash, err := hasher.Hash("correct-password-123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	u.PasswordHash = hash
	if u.Status == "" {
		u.Status = StatusActive
	}
	e.users.add(u)
	return u
}

func (e *testEnv) eventsOfType(eventType string) []event.Event {
	var out []event.Event
	for _, ev := range e.log.Events() {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func mustSignIn(t *testing.T, env *testEnv, req SignInRequest) *SignInResult {
	t.Helper()
	result, err := env.auth.SignIn(context.Background(), req)
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	return result
}
