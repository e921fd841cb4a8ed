// Package callback serves the loopback listener that receives deep links
// from the browser: password recovery links and payment provider returns.
package callback

import (
	"context"
	"net/http"

	"github.com/gigmarket/gigmarket/internal/metrics"
	"github.com/gigmarket/gigmarket/internal/models"
	"go.uber.org/zap"
)

// Recoverer installs the session carried by a recovery link.
type Recoverer interface {
	SetRecoverySession(ctx context.Context, accessToken, refreshToken string) (*models.Session, error)
}

// Screens is the part of the app a deep link drives.
type Screens interface {
	Navigate(view string, data any)
	RefreshProfile(ctx context.Context)
	ShowToast(message string, kind models.ToastKind) string
}

// PaymentResult is the payload the subscription screen receives after a
// checkout returns.
type PaymentResult struct {
	Status string `json:"status"`
	Tier   string `json:"tier,omitempty"`
}

// Handler handles deep link requests.
type Handler struct {
	Auth    Recoverer
	Screens Screens
	Log     *zap.Logger
}

const returnPage = "You can close this tab and return to gigmarket.\n"

// AuthCallback accepts a recovery link. The PASSWORD_RECOVERY event the
// backend emits moves the app to the change-password screen.
func (h *Handler) AuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if desc := q.Get("error_description"); desc != "" || q.Get("error") != "" {
		metrics.DeepLinksTotal.WithLabelValues("auth", "rejected").Inc()
		h.Screens.ShowToast("The link is invalid or has expired.", models.ToastAlert)
		http.Error(w, "invalid link", http.StatusBadRequest)
		return
	}

	access, refresh := q.Get("access_token"), q.Get("refresh_token")
	if q.Get("type") != "recovery" || access == "" {
		metrics.DeepLinksTotal.WithLabelValues("auth", "invalid").Inc()
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	if _, err := h.Auth.SetRecoverySession(r.Context(), access, refresh); err != nil {
		h.Log.Warn("recovery link rejected", zap.Error(err))
		metrics.DeepLinksTotal.WithLabelValues("auth", "error").Inc()
		h.Screens.ShowToast("The link is invalid or has expired.", models.ToastAlert)
		http.Error(w, "recovery failed", http.StatusBadGateway)
		return
	}

	metrics.DeepLinksTotal.WithLabelValues("auth", "ok").Inc()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(returnPage))
}

// PaymentReturn accepts the redirect back from checkout.
func (h *Handler) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	res := PaymentResult{Status: r.URL.Query().Get("status"), Tier: r.URL.Query().Get("tier")}

	switch models.Tier(res.Tier) {
	case "", models.TierFree, models.TierBasic, models.TierPro:
	default:
		metrics.DeepLinksTotal.WithLabelValues("payment", "invalid").Inc()
		http.Error(w, "invalid tier", http.StatusBadRequest)
		return
	}

	switch res.Status {
	case "success":
		// the tier changes on the backend before the redirect happens
		h.Screens.RefreshProfile(r.Context())
		h.Screens.Navigate(models.ViewSubscription, res)
		h.Screens.ShowToast("Subscription updated.", models.ToastSuccess)
	case "cancelled":
		h.Screens.Navigate(models.ViewSubscription, res)
		h.Screens.ShowToast("Checkout cancelled.", models.ToastAlert)
	default:
		metrics.DeepLinksTotal.WithLabelValues("payment", "invalid").Inc()
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	metrics.DeepLinksTotal.WithLabelValues("payment", res.Status).Inc()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(returnPage))
}

// Healthz reports that the listener is up.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
