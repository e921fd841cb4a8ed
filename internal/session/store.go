// Package session holds the in-memory belief about who is signed in and
// what their profile looks like, kept in step with the backend's auth-state
// notifications.
//
// Initialize and the auth listener may both write the session and profile
// at about the same time. No ordering is imposed between them: both derive
// from what the backend reports, every setter is idempotent, and the last
// write wins.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gigmarket/gigmarket/internal/metrics"
	"github.com/gigmarket/gigmarket/internal/models"
	"go.uber.org/zap"
)

const (
	// DefaultRetries is the number of extra profile polls after the first miss.
	DefaultRetries = 3
	// DefaultRetryDelay is the fixed pause between profile polls.
	DefaultRetryDelay = 500 * time.Millisecond
)

// Backend is the part of the remote backend the store reads from.
type Backend interface {
	// GetSession returns the persisted session, or nil when signed out.
	GetSession(ctx context.Context) (*models.Session, error)
	// ProfileByID returns models.ErrNotFound while the row does not exist.
	ProfileByID(ctx context.Context, userID string) (*models.Profile, error)
}

// Navigator is the part of the router the store forces navigations through.
type Navigator interface {
	CurrentView() string
	Replace(view string, data any)
}

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-time Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// State is a consistent copy of the store's values.
type State struct {
	Session      *models.Session
	Profile      *models.Profile
	Loading      bool
	ProfileError bool
}

// Store owns the session and profile. Other components only read them.
type Store struct {
	backend Backend
	nav     Navigator
	log     *zap.Logger
	sleep   Sleeper
	retries int
	delay   time.Duration
	exempt  map[string]bool

	mu           sync.RWMutex
	session      *models.Session
	profile      *models.Profile
	loading      bool
	profileError bool

	lmu       sync.Mutex
	listeners map[int]func()
	nextID    int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithSleeper replaces the real-time pause between profile polls.
func WithSleeper(sl Sleeper) Option {
	return func(s *Store) { s.sleep = sl }
}

// WithRetries sets how many extra polls FetchProfile makes by default.
func WithRetries(n int) Option {
	return func(s *Store) { s.retries = n }
}

// WithRetryDelay sets the pause between profile polls.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Store) { s.delay = d }
}

// WithSignOutExemptViews replaces the views a sign-out leaves the user on.
func WithSignOutExemptViews(views ...string) Option {
	return func(s *Store) {
		s.exempt = make(map[string]bool, len(views))
		for _, v := range views {
			s.exempt[v] = true
		}
	}
}

// New returns a Store in the loading state.
func New(b Backend, nav Navigator, opts ...Option) *Store {
	s := &Store{
		backend:   b,
		nav:       nav,
		log:       zap.NewNop(),
		sleep:     Sleep,
		retries:   DefaultRetries,
		delay:     DefaultRetryDelay,
		loading:   true,
		listeners: make(map[int]func()),
	}
	WithSignOutExemptViews(models.ViewResetPassword, models.ViewChangePassword)(s)
	for _, o := range opts {
		o(s)
	}
	return s
}

// Initialize restores an existing session at startup. A restored session
// skips the entry screens. Transport errors are logged and treated as
// signed out; loading is cleared on every path.
func (s *Store) Initialize(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		s.notify()
	}()

	sess, err := s.backend.GetSession(ctx)
	if err != nil {
		s.log.Warn("session bootstrap failed", zap.Error(err))
		return
	}
	if sess == nil {
		return
	}

	s.setSession(sess)
	if models.IsPreAuthEntry(s.nav.CurrentView()) {
		s.nav.Replace(models.ViewHome, nil)
	}
	s.FetchProfile(ctx, sess.UserID, s.retries)
}

// FetchProfile requests the profile of userID, polling up to retries more
// times with a fixed pause while it is missing. On exhaustion the profile
// is cleared and ProfileError is set; nothing is returned.
func (s *Store) FetchProfile(ctx context.Context, userID string, retries int) {
	for {
		p, err := s.backend.ProfileByID(ctx, userID)
		if err == nil {
			metrics.ProfileFetchesTotal.WithLabelValues("ok").Inc()
			s.setProfile(userID, p, false)
			return
		}

		if errors.Is(err, models.ErrNotFound) {
			metrics.ProfileFetchesTotal.WithLabelValues("not_found").Inc()
		} else {
			metrics.ProfileFetchesTotal.WithLabelValues("error").Inc()
		}

		if retries <= 0 {
			s.log.Error("profile unavailable", zap.String("user", userID), zap.Error(err))
			metrics.ProfileErrorsTotal.Inc()
			s.setProfile(userID, nil, true)
			return
		}

		s.log.Debug("profile not ready, retrying",
			zap.String("user", userID),
			zap.Int("retries_left", retries),
			zap.Error(err))
		if err := s.sleep(ctx, s.delay); err != nil {
			s.log.Warn("profile polling interrupted", zap.String("user", userID), zap.Error(err))
			metrics.ProfileErrorsTotal.Inc()
			s.setProfile(userID, nil, true)
			return
		}
		retries--
	}
}

// RefreshProfile refetches the signed-in user's profile.
func (s *Store) RefreshProfile(ctx context.Context) {
	sess := s.Session()
	if sess == nil {
		return
	}
	s.FetchProfile(ctx, sess.UserID, s.retries)
}

// HandleAuthChange applies an auth-state notification. A sign-out sends the
// user back to landing unless the current view is exempt, so a password
// recovery that briefly holds no session is not interrupted.
func (s *Store) HandleAuthChange(ctx context.Context, event models.AuthEvent, sess *models.Session) {
	metrics.AuthEventsTotal.WithLabelValues(string(event)).Inc()
	s.log.Info("auth state changed", zap.String("event", string(event)))

	if sess != nil {
		s.setSession(sess)
		if event == models.EventSignedIn || event == models.EventTokenRefreshed {
			s.FetchProfile(ctx, sess.UserID, s.retries)
		}
		return
	}

	s.mu.Lock()
	s.session = nil
	s.profile = nil
	s.profileError = false
	s.mu.Unlock()
	s.notify()

	if view := s.nav.CurrentView(); !s.exempt[view] {
		s.nav.Replace(models.ViewLanding, nil)
	}
}

// Session returns a copy of the current session, or nil.
func (s *Store) Session() *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	c := *s.session
	return &c
}

// Profile returns a copy of the current profile, or nil.
func (s *Store) Profile() *models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	c := *s.profile
	return &c
}

// Loading reports whether the startup session check is still running.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// ProfileError reports whether the last profile fetch gave up.
func (s *Store) ProfileError() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profileError
}

// Snapshot returns all values under a single lock.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{Loading: s.loading, ProfileError: s.profileError}
	if s.session != nil {
		c := *s.session
		st.Session = &c
	}
	if s.profile != nil {
		c := *s.profile
		st.Profile = &c
	}
	return st
}

// Subscribe registers fn to run after every state change.
func (s *Store) Subscribe(fn func()) (cancel func()) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) setSession(sess *models.Session) {
	c := *sess
	s.mu.Lock()
	s.session = &c
	s.mu.Unlock()
	s.notify()
}

// setProfile stores the outcome of a fetch for userID. A result is dropped
// when nobody is signed in or a different user is, so a fetch that outlives
// its session never leaks into the next one.
func (s *Store) setProfile(userID string, p *models.Profile, failed bool) {
	s.mu.Lock()
	if s.session == nil || s.session.UserID != userID {
		s.mu.Unlock()
		s.log.Debug("dropping stale profile result", zap.String("user", userID))
		return
	}
	if p != nil {
		c := *p
		p = &c
	}
	s.profile = p
	s.profileError = failed
	s.mu.Unlock()
	s.notify()
}

func (s *Store) notify() {
	s.lmu.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
