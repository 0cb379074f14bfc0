package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"casaro.io/internal/auth"
	"casaro.io/internal/authsvc"
	"casaro.io/internal/events"
	"casaro.io/internal/guard"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type redirectRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *redirectRecorder) record(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *redirectRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.paths) == 0 {
		return ""
	}
	return r.paths[len(r.paths)-1]
}

func newTestManager(t *testing.T, clk *fakeClock, store Storage, extra ...Option) *Manager {
	t.Helper()
	mock, err := authsvc.NewMock(authsvc.WithDelay(0), authsvc.WithMockClock(clk.Now))
	if err != nil {
		t.Fatalf("NewMock: %v", err)
	}
	opts := append([]Option{WithClock(clk.Now)}, extra...)
	m, err := NewManager(mock, store, opts...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestLoginPersistsAndInstalls(t *testing.T) {
	clk := newFakeClock()
	store := NewMemoryStorage()
	m := newTestManager(t, clk, store)
	m.Initialize(t.Context())

	id, err := m.Login(t.Context(), "admin@demo.com", "whatever")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if id.Role != auth.RoleAdmin {
		t.Fatalf("unexpected role %q", id.Role)
	}
	if !m.CheckSessionValidity() {
		t.Fatal("session should be valid right after login")
	}
	if !m.HasPermission(auth.PermManageUsers) {
		t.Fatal("admin should hold users.manage")
	}

	snap, err := store.Load(t.Context())
	if err != nil {
		t.Fatalf("Load after login: %v", err)
	}
	if snap.Role != auth.RoleAdmin || snap.Token == "" {
		t.Fatalf("incomplete snapshot persisted: %+v", snap)
	}
	if got, want := snap.ExpiresAt, clk.Now().Add(30*time.Minute); !got.Equal(want) {
		t.Fatalf("persisted expiry %v, want %v", got, want)
	}
}

func TestInitializeRestoresPersistedSession(t *testing.T) {
	clk := newFakeClock()
	store := NewMemoryStorage()

	first := newTestManager(t, clk, store)
	first.Initialize(t.Context())
	if _, err := first.Login(t.Context(), "agent@demo.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Simulated reload: a fresh manager over the same storage.
	second := newTestManager(t, clk, store)

	d := second.EnterRoute(guard.RequireRole(auth.RoleAgent), "/agent/dashboard")
	if d.Action != guard.ActionPending {
		t.Fatalf("expected pending before Initialize, got %+v", d)
	}

	second.Initialize(t.Context())
	id, ok := second.Identity()
	if !ok {
		t.Fatal("expected restored identity")
	}
	if id.Role != auth.RoleAgent || id.Email != "agent@demo.com" {
		t.Fatalf("restored wrong identity: %+v", id)
	}
	if !id.HasPermission(auth.PermManageListings) {
		t.Fatal("restored identity should carry the agent permission set")
	}
	if d := second.EnterRoute(guard.RequireRole(auth.RoleAgent), "/agent/dashboard"); d.Action != guard.ActionRender {
		t.Fatalf("expected render after restore, got %+v", d)
	}
}

func TestInitializeClearsExpiredSnapshot(t *testing.T) {
	clk := newFakeClock()
	store := NewMemoryStorage()

	first := newTestManager(t, clk, store)
	first.Initialize(t.Context())
	if _, err := first.Login(t.Context(), "client@demo.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	clk.Advance(31 * time.Minute)

	second := newTestManager(t, clk, store)
	second.Initialize(t.Context())
	if _, ok := second.Identity(); ok {
		t.Fatal("expired snapshot must not restore")
	}
	if _, err := store.Load(t.Context()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expired snapshot should be cleared, got %v", err)
	}
}

func TestInitializeClearsCorruptSnapshot(t *testing.T) {
	clk := newFakeClock()
	store := NewMemoryStorage()
	store.Corrupt(Snapshot{Token: "orphan-token"})

	m := newTestManager(t, clk, store)
	m.Initialize(t.Context())
	if _, ok := m.Identity(); ok {
		t.Fatal("corrupt snapshot must not restore")
	}
	if _, err := store.Load(t.Context()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("corrupt snapshot should be cleared, got %v", err)
	}
	if d := m.EnterRoute(guard.Public(), "/login"); d.Action != guard.ActionRender {
		t.Fatalf("manager should come up ready and unauthenticated, got %+v", d)
	}
}

func TestInitializeRejectsRoleMismatch(t *testing.T) {
	clk := newFakeClock()
	store := NewMemoryStorage()

	first := newTestManager(t, clk, store)
	first.Initialize(t.Context())
	if _, err := first.Login(t.Context(), "client@demo.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	snap, err := store.Load(t.Context())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	snap.Role = auth.RoleAdmin
	if err := store.Save(t.Context(), snap); err != nil {
		t.Fatalf("Save tampered snapshot: %v", err)
	}

	second := newTestManager(t, clk, store)
	second.Initialize(t.Context())
	if _, ok := second.Identity(); ok {
		t.Fatal("tampered role must not restore")
	}
	if _, err := store.Load(t.Context()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("tampered snapshot should be cleared, got %v", err)
	}
}

func TestLogoutClearsEverythingAndIsIdempotent(t *testing.T) {
	clk := newFakeClock()
	store := NewMemoryStorage()
	rec := &redirectRecorder{}
	m := newTestManager(t, clk, store, WithRedirect(rec.record))
	m.Initialize(t.Context())

	if _, err := m.Login(t.Context(), "admin@demo.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	m.Logout(t.Context())

	if m.CheckSessionValidity() {
		t.Fatal("session should be gone after logout")
	}
	if m.HasPermission(auth.PermReadProperties) {
		t.Fatal("permissions should be gone after logout")
	}
	if _, err := store.Load(t.Context()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("storage should be cleared, got %v", err)
	}
	if rec.last() != guard.LandingPath {
		t.Fatalf("logout should land on %q, got %q", guard.LandingPath, rec.last())
	}

	// Second logout with no session: same outcome, no panic.
	m.Logout(t.Context())
	if rec.last() != guard.LandingPath {
		t.Fatalf("repeat logout should still land on %q", guard.LandingPath)
	}
}

func TestLoginReplacesExistingSession(t *testing.T) {
	clk := newFakeClock()
	store := NewMemoryStorage()
	m := newTestManager(t, clk, store)
	m.Initialize(t.Context())

	if _, err := m.Login(t.Context(), "admin@demo.com", "pw"); err != nil {
		t.Fatalf("first login: %v", err)
	}
	id, err := m.Login(t.Context(), "agent@demo.com", "pw")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if id.Role != auth.RoleAgent {
		t.Fatalf("expected agent identity, got %q", id.Role)
	}
	snap, err := store.Load(t.Context())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Role != auth.RoleAgent {
		t.Fatalf("storage should hold the later session, got role %q", snap.Role)
	}
	if m.HasPermission(auth.PermManageUsers) {
		t.Fatal("previous admin permissions must not survive the replacement")
	}
}

func TestSweepExpiresSession(t *testing.T) {
	clk := newFakeClock()
	store := NewMemoryStorage()
	rec := &redirectRecorder{}
	bus := events.NewBus()
	m := newTestManager(t, clk, store, WithRedirect(rec.record), WithBus(bus))
	m.Initialize(t.Context())

	sub := bus.Subscribe(t.Context())
	if _, err := m.Login(t.Context(), "client@demo.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	<-sub // drain the login event

	clk.Advance(31 * time.Minute)
	if m.CheckSessionValidity() {
		t.Fatal("session should read invalid after the lifetime elapses")
	}

	m.Sweep(t.Context())
	if _, ok := m.Identity(); ok {
		t.Fatal("sweep should clear the expired session")
	}
	if _, err := store.Load(t.Context()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("sweep should clear storage, got %v", err)
	}
	if rec.last() != guard.LoginPath {
		t.Fatalf("expiry should send the caller to %q, got %q", guard.LoginPath, rec.last())
	}

	select {
	case evt := <-sub:
		if evt.Type != events.TypeExpired || evt.Email != "client@demo.com" {
			t.Fatalf("unexpected event %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an expiry event")
	}

	// A second sweep has nothing to do.
	m.Sweep(t.Context())
}

func TestRefreshExtendsExpiry(t *testing.T) {
	clk := newFakeClock()
	store := NewMemoryStorage()
	m := newTestManager(t, clk, store)
	m.Initialize(t.Context())

	if _, err := m.Login(t.Context(), "agent@demo.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	before, err := store.Load(t.Context())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	clk.Advance(10 * time.Minute)
	if err := m.RefreshSession(t.Context()); err != nil {
		t.Fatalf("RefreshSession: %v", err)
	}

	after, err := store.Load(t.Context())
	if err != nil {
		t.Fatalf("Load after refresh: %v", err)
	}
	if !after.ExpiresAt.After(before.ExpiresAt) {
		t.Fatalf("refresh should extend expiry: before %v, after %v", before.ExpiresAt, after.ExpiresAt)
	}
	if !m.CheckSessionValidity() {
		t.Fatal("session should remain valid after refresh")
	}
}

func TestRefreshWithoutSessionIsNoop(t *testing.T) {
	clk := newFakeClock()
	m := newTestManager(t, clk, NewMemoryStorage())
	m.Initialize(t.Context())
	if err := m.RefreshSession(t.Context()); err != nil {
		t.Fatalf("refresh without a session should be a no-op, got %v", err)
	}
}

// stubService gives tests full control over the auth boundary.
type stubService struct {
	mu           sync.Mutex
	creds        authsvc.Credentials
	refreshErr   error
	refreshGate  chan struct{}
	refreshCalls int
}

func (s *stubService) Login(ctx context.Context, email, password string) (authsvc.Credentials, error) {
	return s.creds, nil
}

func (s *stubService) Register(ctx context.Context, reg authsvc.Registration) (authsvc.Credentials, error) {
	return s.creds, nil
}

func (s *stubService) ForgotPassword(ctx context.Context, email string) error { return nil }

func (s *stubService) Refresh(ctx context.Context, token string) (authsvc.Credentials, error) {
	s.mu.Lock()
	s.refreshCalls++
	gate := s.refreshGate
	err := s.refreshErr
	creds := s.creds
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return authsvc.Credentials{}, err
	}
	return creds, nil
}

func (s *stubService) VerifyToken(ctx context.Context, token string) (auth.Identity, error) {
	return s.creds.Identity, nil
}

func stubCredentials(clk *fakeClock) authsvc.Credentials {
	return authsvc.Credentials{
		Token:     "stub-token",
		ExpiresAt: clk.Now().Add(30 * time.Minute),
		Identity: auth.Identity{
			ID:          "u-stub",
			Email:       "agent@demo.com",
			Role:        auth.RoleAgent,
			Permissions: auth.PermissionsForRole(auth.RoleAgent),
		},
	}
}

func TestRefreshRejectionEndsSession(t *testing.T) {
	clk := newFakeClock()
	store := NewMemoryStorage()
	rec := &redirectRecorder{}
	svc := &stubService{creds: stubCredentials(clk)}
	m, err := NewManager(svc, store, WithClock(clk.Now), WithRedirect(rec.record))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m.Initialize(t.Context())
	if _, err := m.Login(t.Context(), "agent@demo.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	svc.refreshErr = auth.ErrInvalidToken
	if err := m.RefreshSession(t.Context()); err == nil {
		t.Fatal("expected refresh rejection to surface")
	}
	if _, ok := m.Identity(); ok {
		t.Fatal("rejected refresh should end the session")
	}
	if _, err := store.Load(t.Context()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("rejected refresh should clear storage, got %v", err)
	}
	if rec.last() != guard.LoginPath {
		t.Fatalf("rejected refresh should send the caller to %q, got %q", guard.LoginPath, rec.last())
	}
}

func TestLogoutWinsOverInFlightRefresh(t *testing.T) {
	clk := newFakeClock()
	store := NewMemoryStorage()
	gate := make(chan struct{})
	svc := &stubService{creds: stubCredentials(clk), refreshGate: gate}
	m, err := NewManager(svc, store, WithClock(clk.Now))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m.Initialize(t.Context())
	if _, err := m.Login(t.Context(), "agent@demo.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- m.RefreshSession(context.Background()) }()

	// Wait for the refresh call to reach the service, then log out under it.
	deadline := time.After(2 * time.Second)
	for {
		svc.mu.Lock()
		started := svc.refreshCalls > 0
		svc.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("refresh never reached the service")
		case <-time.After(5 * time.Millisecond):
		}
	}
	m.Logout(t.Context())
	close(gate)

	if err := <-done; err != nil {
		t.Fatalf("stale refresh should be discarded quietly, got %v", err)
	}
	if _, ok := m.Identity(); ok {
		t.Fatal("logout must win over the in-flight refresh")
	}
	if _, err := store.Load(t.Context()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("storage must stay cleared, got %v", err)
	}
}

func TestEnterRouteTriggersProactiveRefresh(t *testing.T) {
	clk := newFakeClock()
	store := NewMemoryStorage()
	svc := &stubService{creds: stubCredentials(clk)}
	m, err := NewManager(svc, store, WithClock(clk.Now))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m.Initialize(t.Context())
	if _, err := m.Login(t.Context(), "agent@demo.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Far from expiry: navigation must not refresh.
	m.EnterRoute(guard.RequireRole(auth.RoleAgent), "/agent/dashboard")
	time.Sleep(20 * time.Millisecond)
	svc.mu.Lock()
	calls := svc.refreshCalls
	svc.mu.Unlock()
	if calls != 0 {
		t.Fatalf("no refresh expected outside the window, got %d calls", calls)
	}

	// Inside the final five minutes the next navigation refreshes. The
	// stub hands back a later expiry so the update is observable.
	clk.Advance(26 * time.Minute)
	svc.mu.Lock()
	svc.creds.ExpiresAt = clk.Now().Add(30 * time.Minute)
	svc.mu.Unlock()

	d := m.EnterRoute(guard.RequireRole(auth.RoleAgent), "/agent/dashboard")
	if d.Action != guard.ActionRender {
		t.Fatalf("navigation itself should still render, got %+v", d)
	}

	deadline := time.After(2 * time.Second)
	for {
		snap, err := store.Load(t.Context())
		if err == nil && snap.ExpiresAt.After(clk.Now().Add(20*time.Minute)) {
			return
		}
		select {
		case <-deadline:
			t.Fatal("background refresh never landed")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
