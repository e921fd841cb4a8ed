package navigation

import (
	"sync"

	"github.com/gigmarket/gigmarket/internal/metrics"
	"github.com/gigmarket/gigmarket/internal/models"
	"go.uber.org/zap"
)

// Viewport is the surface that forward navigation scrolls back to the top.
type Viewport interface {
	ScrollToTop()
}

// NopViewport ignores scroll requests.
type NopViewport struct{}

// ScrollToTop does nothing.
func (NopViewport) ScrollToTop() {}

// Router maps a view identifier plus payload to the visible screen and
// mirrors every change into a History. Navigate, Replace and HandleBack may
// be called from several goroutines; after each history change the current
// state is read back from the history's top entry under the router lock, so
// the last update always leaves the two in agreement.
type Router struct {
	mu       sync.RWMutex
	current  models.NavigationState
	history  History
	viewport Viewport
	log      *zap.Logger
	cancel   func()
}

// Option configures a Router.
type Option func(*Router)

// WithViewport sets the viewport scrolled on Navigate.
func WithViewport(v Viewport) Option {
	return func(r *Router) { r.viewport = v }
}

// WithLogger sets the router's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) { r.log = l }
}

// NewRouter binds a router to h. If the current entry carries no state the
// router writes (landing, nil) into it, so the restore handler always finds
// a well-formed entry; otherwise the entry's state becomes current.
func NewRouter(h History, opts ...Option) *Router {
	r := &Router{
		history:  h,
		viewport: NopViewport{},
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}

	if top := h.Top(); top != nil {
		r.current = *top
	} else {
		r.current = models.NavigationState{View: models.ViewLanding}
		h.ReplaceTop(r.current)
	}
	r.cancel = h.OnRestore(r.restore)
	return r
}

// Close detaches the router from its history.
func (r *Router) Close() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Navigate moves forward to view. It always pushes, so back has somewhere to return to.
func (r *Router) Navigate(view string, data any) {
	state := models.NavigationState{View: view, Data: data}
	r.history.Push(state)
	r.sync()
	r.viewport.ScrollToTop()
	metrics.NavigationsTotal.WithLabelValues("push").Inc()
	r.log.Debug("navigate", zap.String("view", view))
}

// HandleBack pops one history entry unless the user is on home or landing or
// no previous entry exists; then it shows fallback in place of the current
// entry instead of growing a back stack that leads nowhere.
func (r *Router) HandleBack(fallback string) {
	view := r.CurrentView()
	if r.history.CanGoBack() && view != models.ViewHome && view != models.ViewLanding {
		if r.history.Back() {
			metrics.NavigationsTotal.WithLabelValues("back").Inc()
			return
		}
	}
	r.Replace(fallback, nil)
}

// Replace shows view without adding a history entry.
func (r *Router) Replace(view string, data any) {
	state := models.NavigationState{View: view, Data: data}
	r.history.ReplaceTop(state)
	r.sync()
	metrics.NavigationsTotal.WithLabelValues("replace").Inc()
	r.log.Debug("replace", zap.String("view", view))
}

// Current returns the visible view and its payload.
func (r *Router) Current() models.NavigationState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// CurrentView returns the visible view identifier.
func (r *Router) CurrentView() string {
	return r.Current().View
}

// restore applies the entry the history moved to. The entry is read back
// from the history rather than taken from the notification, which may be
// stale by the time it is delivered.
func (r *Router) restore(*models.NavigationState) {
	r.sync()
	metrics.NavigationsTotal.WithLabelValues("restore").Inc()
}

// sync makes the history's top entry current. An entry without state shows
// landing.
func (r *Router) sync() {
	r.mu.Lock()
	defer r.mu.Unlock()
	top := r.history.Top()
	if top == nil || top.View == "" {
		r.current = models.NavigationState{View: models.ViewLanding}
		return
	}
	r.current = *top
}
