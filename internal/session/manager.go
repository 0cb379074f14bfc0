package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"casaro.io/internal/auth"
	"casaro.io/internal/authsvc"
	"casaro.io/internal/events"
	"casaro.io/internal/guard"
	"casaro.io/internal/obs"
)

const (
	defaultSweepInterval = time.Minute
	defaultRefreshWindow = 5 * time.Minute
	refreshTimeout       = 10 * time.Second
)

// Manager is the session context. It is the only writer of session state:
// login, logout, expiry and refresh all pass through it, and it keeps the
// in-memory session and durable storage in lockstep.
type Manager struct {
	svc     authsvc.Service
	storage Storage
	bus     *events.Bus

	clock         func() time.Time
	sweepInterval time.Duration
	refreshWindow time.Duration
	redirect      func(path string)

	mu         sync.Mutex
	ready      bool
	sess       *auth.Session
	gen        uint64
	refreshing bool
}

// Option adjusts Manager construction.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.clock = now }
}

// WithSweepInterval overrides how often the background sweep checks for
// expiry.
func WithSweepInterval(d time.Duration) Option {
	return func(m *Manager) { m.sweepInterval = d }
}

// WithRefreshWindow overrides how close to expiry a session must be before
// route activity triggers a proactive refresh.
func WithRefreshWindow(d time.Duration) Option {
	return func(m *Manager) { m.refreshWindow = d }
}

// WithRedirect installs the navigation hook invoked after logout and
// expiry. The default is a no-op for headless use.
func WithRedirect(fn func(path string)) Option {
	return func(m *Manager) { m.redirect = fn }
}

// WithBus attaches an event bus that receives session transitions.
func WithBus(bus *events.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

// NewManager wires a manager over the auth service and snapshot storage.
func NewManager(svc authsvc.Service, storage Storage, opts ...Option) (*Manager, error) {
	if svc == nil {
		return nil, errors.New("session: auth service is required")
	}
	if storage == nil {
		return nil, errors.New("session: storage is required")
	}
	m := &Manager{
		svc:           svc,
		storage:       storage,
		clock:         time.Now,
		sweepInterval: defaultSweepInterval,
		refreshWindow: defaultRefreshWindow,
		redirect:      func(string) {},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.clock == nil || m.redirect == nil {
		return nil, errors.New("session: clock and redirect must be non-nil")
	}
	if m.sweepInterval <= 0 || m.refreshWindow <= 0 {
		return nil, errors.New("session: intervals must be positive")
	}
	return m, nil
}

// Initialize restores a persisted session, if any, and marks the manager
// ready. It never fails: corrupt or expired remnants are cleared and the
// manager comes up unauthenticated. Guards report pending until this has
// run, so call it before serving any route.
func (m *Manager) Initialize(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return
	}
	defer func() { m.ready = true }()

	snap, err := m.storage.Load(ctx)
	if errors.Is(err, ErrNoSession) {
		return
	}
	if err != nil {
		// Corrupt or unreadable. Remnants must not linger for a later
		// restore attempt.
		m.storage.Clear(ctx)
		return
	}

	now := m.clock()
	if !now.Before(snap.ExpiresAt) {
		m.storage.Clear(ctx)
		return
	}
	id, _, err := auth.DecodeIdentity(snap.Token, now)
	if err != nil || id.Role != snap.Role {
		// A token that does not decode, or disagrees with the stored role,
		// is treated the same as a torn write.
		m.storage.Clear(ctx)
		return
	}

	m.sess = &auth.Session{Token: snap.Token, ExpiresAt: snap.ExpiresAt, Identity: id}
	m.gen++
	obs.SessionOpened()
}

// Login exchanges credentials for a session. On success the session is
// persisted and installed before returning; a login over an existing
// session replaces it.
func (m *Manager) Login(ctx context.Context, email, password string) (auth.Identity, error) {
	creds, err := m.svc.Login(ctx, email, password)
	if err != nil {
		obs.CountLogin("error")
		return auth.Identity{}, err
	}
	if err := m.commit(ctx, creds, events.TypeLogin); err != nil {
		obs.CountLogin("error")
		return auth.Identity{}, err
	}
	obs.CountLogin("ok")
	return creds.Identity, nil
}

// Register creates an account and signs the new user straight in.
func (m *Manager) Register(ctx context.Context, reg authsvc.Registration) (auth.Identity, error) {
	creds, err := m.svc.Register(ctx, reg)
	if err != nil {
		return auth.Identity{}, err
	}
	if err := m.commit(ctx, creds, events.TypeRegistered); err != nil {
		return auth.Identity{}, err
	}
	obs.CountLogin("ok")
	return creds.Identity, nil
}

// ForgotPassword relays a reset request; it never creates a session.
func (m *Manager) ForgotPassword(ctx context.Context, email string) error {
	return m.svc.ForgotPassword(ctx, email)
}

// commit persists then installs new credentials. Persist-first ordering
// means a storage failure leaves the previous state fully intact.
func (m *Manager) commit(ctx context.Context, creds authsvc.Credentials, evt events.Type) error {
	m.mu.Lock()
	snap := Snapshot{Token: creds.Token, Role: creds.Identity.Role, ExpiresAt: creds.ExpiresAt}
	if err := m.storage.Save(ctx, snap); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("session: persist credentials: %w", err)
	}
	opened := m.sess == nil
	m.sess = &auth.Session{Token: creds.Token, ExpiresAt: creds.ExpiresAt, Identity: creds.Identity}
	m.gen++
	m.ready = true
	m.mu.Unlock()

	if opened {
		obs.SessionOpened()
	}
	m.publish(evt, creds.Identity)
	return nil
}

// Logout ends the session. It is idempotent: storage is cleared and the
// caller is sent to the landing page whether or not a session existed,
// and any in-flight refresh that resolves afterwards is discarded.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	var id auth.Identity
	had := m.sess != nil
	if had {
		id = m.sess.Identity
	}
	m.sess = nil
	m.gen++
	m.storage.Clear(ctx)
	m.mu.Unlock()

	if had {
		obs.SessionClosed()
		m.publish(events.TypeLogout, id)
	}
	m.redirect(guard.LandingPath)
}

// RefreshSession asks the auth service for extended credentials. Without a
// session it is a no-op. A refresh that loses a race with logout or a new
// login is discarded; a refresh the service rejects ends the session,
// since its token is no longer trusted.
func (m *Manager) RefreshSession(ctx context.Context) error {
	m.mu.Lock()
	if m.sess == nil {
		m.mu.Unlock()
		return nil
	}
	token := m.sess.Token
	gen := m.gen
	m.mu.Unlock()

	creds, err := m.svc.Refresh(ctx, token)

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		id := m.sess.Identity
		m.sess = nil
		m.gen++
		m.storage.Clear(ctx)
		m.mu.Unlock()

		obs.CountRefresh("error")
		obs.SessionClosed()
		m.publish(events.TypeLogout, id)
		m.redirect(guard.LoginPath)
		return fmt.Errorf("session: refresh rejected: %w", err)
	}

	snap := Snapshot{Token: creds.Token, Role: creds.Identity.Role, ExpiresAt: creds.ExpiresAt}
	if err := m.storage.Save(ctx, snap); err != nil {
		// The old session is still valid; keep it rather than failing closed.
		m.mu.Unlock()
		obs.CountRefresh("error")
		return fmt.Errorf("session: persist refreshed credentials: %w", err)
	}
	m.sess = &auth.Session{Token: creds.Token, ExpiresAt: creds.ExpiresAt, Identity: creds.Identity}
	m.gen++
	m.mu.Unlock()

	obs.CountRefresh("ok")
	m.publish(events.TypeRefreshed, creds.Identity)
	return nil
}

// CheckSessionValidity reports whether a live, unexpired session exists.
// It only observes; expiry cleanup belongs to the sweep.
func (m *Manager) CheckSessionValidity() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.ValidAt(m.clock())
}

// HasPermission reports whether the signed-in identity holds the given
// permission. Unauthenticated callers always get false.
func (m *Manager) HasPermission(p auth.Permission) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return false
	}
	return m.sess.Identity.HasPermission(p)
}

// Identity returns the signed-in identity, if any.
func (m *Manager) Identity() (auth.Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return auth.Identity{}, false
	}
	return m.sess.Identity, true
}

// Token returns the current bearer token, if any.
func (m *Manager) Token() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return "", false
	}
	return m.sess.Token, true
}

// GuardState projects the manager into the view the route guards consume.
func (m *Manager) GuardState() guard.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := guard.Session{Ready: m.ready}
	if m.sess.ValidAt(m.clock()) {
		s.Authenticated = true
		s.Role = m.sess.Identity.Role
	}
	return s
}

// EnterRoute evaluates the guard for a navigation and, as a side channel,
// kicks off a proactive refresh when the session is close to expiry. The
// returned decision reflects the state at call time.
func (m *Manager) EnterRoute(p guard.Policy, requestedPath string) guard.Decision {
	d := guard.Evaluate(m.GuardState(), p, requestedPath)
	m.maybeRefresh()
	return d
}

// maybeRefresh starts at most one background refresh when the session is
// inside the refresh window.
func (m *Manager) maybeRefresh() {
	m.mu.Lock()
	now := m.clock()
	due := m.sess.ValidAt(now) && !now.Add(m.refreshWindow).Before(m.sess.ExpiresAt)
	if !due || m.refreshing {
		m.mu.Unlock()
		return
	}
	m.refreshing = true
	m.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		m.RefreshSession(ctx)
		m.mu.Lock()
		m.refreshing = false
		m.mu.Unlock()
	}()
}

// StartSweep runs the periodic expiry check until the context ends or the
// returned stop function is called.
func (m *Manager) StartSweep(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(m.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep(ctx)
				m.maybeRefresh()
			}
		}
	}()
	return cancel
}

// Sweep ends the session if it has expired since the last check. Expiry
// follows the logout path, with the caller sent to login instead of the
// landing page.
func (m *Manager) Sweep(ctx context.Context) {
	m.mu.Lock()
	if m.sess == nil || m.sess.ValidAt(m.clock()) {
		m.mu.Unlock()
		return
	}
	id := m.sess.Identity
	m.sess = nil
	m.gen++
	m.storage.Clear(ctx)
	m.mu.Unlock()

	obs.SessionClosed()
	obs.CountExpiry()
	m.publish(events.TypeExpired, id)
	m.redirect(guard.LoginPath)
}

func (m *Manager) publish(t events.Type, id auth.Identity) {
	obs.LogSession(string(t), id.ID, string(id.Role))
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.Event{Type: t, UserID: id.ID, Email: id.Email, Role: id.Role})
}
