// Package models defines the core data structures for sessions, profiles
// and navigation state.
package models

import "time"

// Session is the authenticated identity returned by the backend's auth subsystem.
type Session struct {
	// AccessToken is the bearer token sent with every authenticated request.
	AccessToken string `json:"access_token"`
	// RefreshToken exchanges for a new access token once it expires.
	RefreshToken string `json:"refresh_token"`
	// UserID is the identifier of the authenticated user.
	UserID string `json:"user_id"`
	// Email is the address the user signed in with.
	Email string `json:"email"`
	// ExpiresAt is the access token expiry.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the access token is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Role is the marketplace role of a user.
type Role string

const (
	// RoleClient posts tasks and books workers.
	RoleClient Role = "client"
	// RoleWorker offers services and accepts bookings.
	RoleWorker Role = "worker"
	// RoleAdmin moderates the marketplace.
	RoleAdmin Role = "admin"
)

// Tier is the subscription level of a profile.
type Tier string

const (
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
)

// Profile is the application-level user record, one per user identifier.
type Profile struct {
	ID               string `json:"id"`
	Role             Role   `json:"role,omitempty"`
	PhoneNumber      string `json:"phone_number,omitempty"`
	FullName         string `json:"full_name,omitempty"`
	SubscriptionTier Tier   `json:"subscription_tier,omitempty"`
	// UsageCount is the number of quota-limited actions consumed in the current period.
	UsageCount     int    `json:"usage_count"`
	IsVerified     bool   `json:"is_verified"`
	Theme          string `json:"theme,omitempty"`
	NotifyMessages bool   `json:"notify_messages"`
	NotifyBookings bool   `json:"notify_bookings"`
}

// Complete reports whether the mandatory fields are set. An incomplete
// profile traps the user on the completion screen.
func (p *Profile) Complete() bool {
	return p != nil && p.Role != "" && p.PhoneNumber != ""
}

// AuthEvent names an auth-state transition reported by the backend.
type AuthEvent string

const (
	EventInitialSession   AuthEvent = "INITIAL_SESSION"
	EventSignedIn         AuthEvent = "SIGNED_IN"
	EventSignedOut        AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed   AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated      AuthEvent = "USER_UPDATED"
	EventPasswordRecovery AuthEvent = "PASSWORD_RECOVERY"
)

// NavigationState is what a single history entry carries.
type NavigationState struct {
	View string `json:"view"`
	Data any    `json:"data"`
}

// ToastKind selects the styling of a transient notification.
type ToastKind string

const (
	ToastInfo    ToastKind = "info"
	ToastSuccess ToastKind = "success"
	ToastAlert   ToastKind = "alert"
)

// Toast is a short-lived notification owned by the root controller.
type Toast struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	Kind    ToastKind `json:"kind"`
}
