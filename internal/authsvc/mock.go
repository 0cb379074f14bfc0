package authsvc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"casaro.io/internal/auth"
)

const (
	defaultMockDelay    = 150 * time.Millisecond
	defaultSessionTTL   = 30 * time.Minute
	demoAccountPassword = "demo1234"
)

var _ Service = (*Mock)(nil)

// Mock implements Service against an in-memory user table with an artificial
// network delay. Seeded demo accounts accept any non-empty password so demo
// flows work without shared secrets; accounts created through Register are
// verified against their bcrypt hash.
type Mock struct {
	users   *auth.MemoryStore
	issuer  *auth.Issuer
	delay   time.Duration
	ttl     time.Duration
	now     func() time.Time
	demoSet map[string]struct{}
}

// MockOption configures the mock service.
type MockOption func(*Mock)

// WithDelay overrides the artificial latency (zero disables it).
func WithDelay(d time.Duration) MockOption {
	return func(m *Mock) { m.delay = d }
}

// WithSessionTTL overrides the issued credential lifetime.
func WithSessionTTL(ttl time.Duration) MockOption {
	return func(m *Mock) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithMockClock overrides the time source (useful for tests).
func WithMockClock(fn func() time.Time) MockOption {
	return func(m *Mock) {
		if fn != nil {
			m.now = fn
		}
	}
}

// NewMock builds a mock service with seeded demo accounts and a random
// per-instance signing secret.
func NewMock(opts ...MockOption) (*Mock, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, err
	}
	m := &Mock{
		users:   auth.NewMemoryStore(),
		delay:   defaultMockDelay,
		ttl:     defaultSessionTTL,
		now:     time.Now,
		demoSet: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	issuer, err := auth.NewIssuer(hex.EncodeToString(secretBytes), "casaro-mock", auth.WithClock(m.now))
	if err != nil {
		return nil, err
	}
	m.issuer = issuer

	if err := auth.SeedDemoUsers(context.Background(), m.users, demoAccountPassword); err != nil {
		return nil, err
	}
	for _, email := range []string{"admin@demo.com", "agent@demo.com", "client@demo.com"} {
		m.demoSet[email] = struct{}{}
	}
	return m, nil
}

func (m *Mock) Login(ctx context.Context, email, password string) (Credentials, error) {
	if err := m.sleep(ctx); err != nil {
		return Credentials{}, err
	}
	email = auth.NormalizeEmail(email)
	user, err := m.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return Credentials{}, ErrAccountNotFound
		}
		return Credentials{}, err
	}
	if _, demo := m.demoSet[email]; demo {
		if password == "" {
			return Credentials{}, ErrInvalidCredentials
		}
	} else if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		return Credentials{}, ErrInvalidCredentials
	}
	return m.mint(user.Identity(m.now().UTC()))
}

func (m *Mock) Register(ctx context.Context, reg Registration) (Credentials, error) {
	if err := m.sleep(ctx); err != nil {
		return Credentials{}, err
	}
	if err := reg.Validate(); err != nil {
		return Credentials{}, err
	}
	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return Credentials{}, err
	}
	user := &auth.User{
		Email:        reg.Email,
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		PasswordHash: hash,
		Role:         reg.Role,
	}
	if err := m.users.Create(ctx, user); err != nil {
		if errors.Is(err, auth.ErrAlreadyExists) {
			return Credentials{}, ErrEmailExists
		}
		return Credentials{}, err
	}
	return m.mint(user.Identity(m.now().UTC()))
}

func (m *Mock) ForgotPassword(ctx context.Context, email string) error {
	if err := m.sleep(ctx); err != nil {
		return err
	}
	if _, err := m.users.FindByEmail(ctx, email); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	// The real backend sends a reset email; the mock only acknowledges.
	return nil
}

func (m *Mock) Refresh(ctx context.Context, token string) (Credentials, error) {
	if err := m.sleep(ctx); err != nil {
		return Credentials{}, err
	}
	id, err := m.issuer.Verify(token)
	if err != nil {
		return Credentials{}, auth.ErrInvalidToken
	}
	return m.mint(id)
}

func (m *Mock) VerifyToken(ctx context.Context, token string) (auth.Identity, error) {
	if err := m.sleep(ctx); err != nil {
		return auth.Identity{}, err
	}
	return m.issuer.Verify(token)
}

func (m *Mock) mint(id auth.Identity) (Credentials, error) {
	token, exp, err := m.issuer.Mint(id, m.ttl)
	if err != nil {
		return Credentials{}, err
	}
	id.LastActive = m.now().UTC()
	return Credentials{Token: token, ExpiresAt: exp, Identity: id}, nil
}

func (m *Mock) sleep(ctx context.Context) error {
	if m.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(m.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
