// Package app is the root controller. It owns the session store, the router
// and the transient UI state, and turns them into the screen to render.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gigmarket/gigmarket/internal/backend"
	"github.com/gigmarket/gigmarket/internal/gate"
	"github.com/gigmarket/gigmarket/internal/models"
	"github.com/gigmarket/gigmarket/internal/navigation"
	"github.com/gigmarket/gigmarket/internal/session"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// DefaultToastTTL is how long a toast stays visible.
const DefaultToastTTL = 3 * time.Second

// Backend is what the root controller needs from the remote backend.
type Backend interface {
	session.Backend
	OnAuthStateChange(fn backend.AuthListener) *backend.Subscription
	UpdateProfile(ctx context.Context, userID string, patch map[string]any) (*models.Profile, error)
	SignOut(ctx context.Context) error
}

// ProfileFeed delivers change notifications for a user's profile row.
type ProfileFeed interface {
	WatchProfile(ctx context.Context, userID string, onChange func()) (stop func(), err error)
}

// Actions are the callbacks handed to every screen.
type Actions struct {
	Navigate       func(view string, data any)
	HandleBack     func(fallback string)
	RefreshProfile func()
	Upgrade        func()
	ShowGuide      func()
	ShowToast      func(message string, kind models.ToastKind)
}

// Frame is everything a shell needs to draw one render.
type Frame struct {
	Screen  gate.Screen
	Profile *models.Profile
	Toasts  []models.Toast
	Guide   bool
}

// App wires the stores together.
type App struct {
	backend  Backend
	router   *navigation.Router
	store    *session.Store
	feed     ProfileFeed
	log      *zap.Logger
	toastTTL time.Duration
	validate *validator.Validate

	ctx    context.Context
	cancel context.CancelFunc
	sub    *backend.Subscription

	mu          sync.Mutex
	toasts      []models.Toast
	toastTimers map[string]*time.Timer
	guide       bool
	watchUser   string
	stopWatch   func()
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the app's logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithToastTTL sets the toast auto-dismiss delay. Zero keeps toasts until dismissed.
func WithToastTTL(d time.Duration) Option {
	return func(a *App) { a.toastTTL = d }
}

// WithProfileFeed enables refreshing the profile when its row changes remotely.
func WithProfileFeed(f ProfileFeed) Option {
	return func(a *App) { a.feed = f }
}

// New returns an App over the given backend, router and store.
func New(b Backend, r *navigation.Router, s *session.Store, opts ...Option) *App {
	a := &App{
		backend:     b,
		router:      r,
		store:       s,
		log:         zap.NewNop(),
		toastTTL:    DefaultToastTTL,
		validate:    validator.New(),
		ctx:         context.Background(),
		toastTimers: make(map[string]*time.Timer),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Start subscribes to auth-state changes and restores any existing session.
// It returns once the startup check is done.
func (a *App) Start(ctx context.Context) {
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.sub = a.backend.OnAuthStateChange(a.onAuthChange)
	a.store.Initialize(a.ctx)
	a.syncFeed()
}

// Stop releases subscriptions, timers and the profile feed.
func (a *App) Stop() {
	if a.sub != nil {
		a.sub.Unsubscribe()
	}
	if a.cancel != nil {
		a.cancel()
	}

	a.mu.Lock()
	for id, t := range a.toastTimers {
		t.Stop()
		delete(a.toastTimers, id)
	}
	stop := a.stopWatch
	a.stopWatch, a.watchUser = nil, ""
	a.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (a *App) onAuthChange(event models.AuthEvent, sess *models.Session) {
	a.store.HandleAuthChange(a.ctx, event, sess)
	if event == models.EventPasswordRecovery && sess != nil {
		// recovery sessions are signed in, so the password form is the post-auth one
		a.router.Replace(models.ViewChangePassword, nil)
		if a.store.Profile() == nil {
			a.store.RefreshProfile(a.ctx)
		}
	}
	a.syncFeed()
}

// syncFeed points the profile feed at the signed-in user, if any.
func (a *App) syncFeed() {
	if a.feed == nil {
		return
	}
	uid := ""
	if s := a.store.Session(); s != nil {
		uid = s.UserID
	}

	a.mu.Lock()
	if uid == a.watchUser {
		a.mu.Unlock()
		return
	}
	stop := a.stopWatch
	a.stopWatch, a.watchUser = nil, ""
	a.mu.Unlock()
	if stop != nil {
		stop()
	}
	if uid == "" {
		return
	}

	stop, err := a.feed.WatchProfile(a.ctx, uid, func() {
		a.log.Debug("profile changed remotely", zap.String("user", uid))
		a.store.RefreshProfile(a.ctx)
	})
	if err != nil {
		a.log.Warn("profile feed unavailable", zap.Error(err))
		return
	}
	a.mu.Lock()
	a.stopWatch, a.watchUser = stop, uid
	a.mu.Unlock()
}

// Render evaluates the gate against the current state. While the startup
// check runs the loading screen is shown.
func (a *App) Render() Frame {
	st := a.store.Snapshot()

	var screen gate.Screen
	if st.Loading {
		screen = gate.Screen{View: models.ViewLoading, Shell: gate.ShellBare}
	} else {
		screen = gate.Decide(gate.Input{
			Session:      st.Session,
			Profile:      st.Profile,
			ProfileError: st.ProfileError,
			Current:      a.router.Current(),
		})
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return Frame{
		Screen:  screen,
		Profile: st.Profile,
		Toasts:  append([]models.Toast(nil), a.toasts...),
		Guide:   a.guide,
	}
}

// Actions returns the callbacks passed to screens.
func (a *App) Actions() Actions {
	return Actions{
		Navigate:       a.router.Navigate,
		HandleBack:     a.router.HandleBack,
		RefreshProfile: func() { a.store.RefreshProfile(a.ctx) },
		Upgrade:        func() { a.router.Navigate(models.ViewSubscription, nil) },
		ShowGuide:      a.ShowGuide,
		ShowToast: func(message string, kind models.ToastKind) {
			a.ShowToast(message, kind)
		},
	}
}

// Router returns the app's router.
func (a *App) Router() *navigation.Router { return a.router }

// Store returns the app's session store.
func (a *App) Store() *session.Store { return a.store }

// ShowGuide opens the onboarding guide.
func (a *App) ShowGuide() {
	a.mu.Lock()
	a.guide = true
	a.mu.Unlock()
}

// HideGuide closes the onboarding guide.
func (a *App) HideGuide() {
	a.mu.Lock()
	a.guide = false
	a.mu.Unlock()
}

type profileForm struct {
	Role     string `validate:"required,oneof=client worker"`
	Phone    string `validate:"required,e164"`
	FullName string `validate:"omitempty,max=120"`
}

// CompleteProfile stores the fields that make a profile complete and
// refetches it, which releases the completion screen.
func (a *App) CompleteProfile(ctx context.Context, role models.Role, phone, fullName string) error {
	sess := a.store.Session()
	if sess == nil {
		return models.ErrNoSession
	}

	form := profileForm{Role: string(role), Phone: phone, FullName: fullName}
	if err := a.validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid %s: %w", verrs[0].Field(), err)
		}
		return err
	}

	patch := map[string]any{"role": form.Role, "phone_number": form.Phone}
	if form.FullName != "" {
		patch["full_name"] = form.FullName
	}
	if _, err := a.backend.UpdateProfile(ctx, sess.UserID, patch); err != nil {
		return fmt.Errorf("complete profile: %w", err)
	}
	a.store.RefreshProfile(ctx)
	return nil
}

// SignOut ends the session. The redirect to landing follows from the
// resulting auth-state change.
func (a *App) SignOut(ctx context.Context) error {
	if err := a.backend.SignOut(ctx); err != nil {
		a.log.Warn("sign out", zap.Error(err))
		return err
	}
	return nil
}

// Navigate moves forward to view.
func (a *App) Navigate(view string, data any) {
	a.router.Navigate(view, data)
}

// RefreshProfile refetches the signed-in user's profile.
func (a *App) RefreshProfile(ctx context.Context) {
	a.store.RefreshProfile(ctx)
}

// HandleBack goes back one entry or shows fallback.
func (a *App) HandleBack(fallback string) {
	a.router.HandleBack(fallback)
}
