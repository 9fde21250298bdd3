package stellarauth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	// Cheap argon2 params keep the suite fast.
	cfg.Password = PasswordConfig{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *fakeStore, *fakeNotifier) {
	t.Helper()
	_, rdb := newTestRedis(t)

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	store := newFakeStore()
	notifier := &fakeNotifier{}
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(store).
		WithNotifier(notifier).
		Build()
	if err != nil {
		t.Fatalf("engine build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, store, notifier
}

// fakeStore is an in-memory AccountStore for engine tests.
type fakeStore struct {
	mu      sync.Mutex
	byID    map[string]*User
	byEmail map[string]string

	failFinds bool // simulate storage outage
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

func (p *fakeStore) FindByEmail(_ context.Context, email string) (*User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFinds {
		return nil, ErrStoreUnavailable
	}
	id, ok := p.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *p.byID[id]
	return &u, nil
}

func (p *fakeStore) FindByID(_ context.Context, id string) (*User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFinds {
		return nil, ErrStoreUnavailable
	}
	u, ok := p.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (p *fakeStore) Create(_ context.Context, input CreateUserInput) (*User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byEmail[input.Email]; exists {
		return nil, ErrAccountExists
	}
	now := time.Now()
	u := &User{
		ID:            uuid.NewString(),
		Email:         input.Email,
		PasswordHash:  input.PasswordHash,
		DisplayName:   input.DisplayName,
		EmailVerified: input.EmailVerified,
		Role:          input.Role,
		Status:        AccountActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	p.byID[u.ID] = u
	p.byEmail[u.Email] = u.ID
	copied := *u
	return &copied, nil
}

func (p *fakeStore) SetVerified(_ context.Context, id string) error {
	return p.update(id, func(u *User) { u.EmailVerified = true })
}

func (p *fakeStore) UpdatePassword(_ context.Context, id, hash string) error {
	return p.update(id, func(u *User) { u.PasswordHash = hash })
}

func (p *fakeStore) UpdateLastSignin(_ context.Context, id string) error {
	return p.update(id, func(u *User) { u.LastSigninAt = time.Now() })
}

func (p *fakeStore) SoftDelete(_ context.Context, id string) error {
	return p.update(id, func(u *User) { u.Status = AccountDeleted })
}

func (p *fakeStore) update(id string, fn func(*User)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return nil
}

func (p *fakeStore) get(t *testing.T, email string) *User {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.byEmail[email]
	if !ok {
		t.Fatalf("no user %q in fake store", email)
	}
	u := *p.byID[id]
	return &u
}

// fakeNotifier captures the most recent tokens handed to it.
type fakeNotifier struct {
	mu                sync.Mutex
	verificationToken string
	resetToken        string
	verifySends       int
	resetSends        int
	fail              bool
}

func (n *fakeNotifier) SendVerificationEmail(_ context.Context, _ string, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return ErrStoreUnavailable
	}
	n.verificationToken = token
	n.verifySends++
	return nil
}

func (n *fakeNotifier) SendPasswordResetEmail(_ context.Context, _ string, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return ErrStoreUnavailable
	}
	n.resetToken = token
	n.resetSends++
	return nil
}

func (n *fakeNotifier) lastVerification() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.verificationToken
}

func (n *fakeNotifier) lastReset() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resetToken
}

func mustSignUp(t *testing.T, engine *Engine, email, password string) *SessionResult {
	t.Helper()
	result, err := engine.SignUp(context.Background(), SignUpRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("signup %s: %v", email, err)
	}
	return result
}
