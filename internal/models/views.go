package models

// View identifiers understood by the router and the access gate.
const (
	ViewLanding        = "landing"
	ViewLogin          = "login"
	ViewSignup         = "signup"
	ViewResetPassword  = "reset-password"
	ViewLegal          = "legal"
	ViewAbout          = "about"
	ViewHome           = "home"
	ViewActivity       = "activity"
	ViewMessages       = "messages"
	ViewProfile        = "profile"
	ViewSubscription   = "subscription"
	ViewChat           = "chat"
	ViewWorkerDetail   = "worker-detail"
	ViewTaskDetail     = "task-detail"
	ViewSettings       = "settings"
	ViewChangePassword = "change-password"
	ViewPostTask       = "post-task"
	ViewSafety         = "safety"
	ViewAdmin          = "admin"

	// ViewCompleteProfile is rendered by the gate, never navigated to.
	ViewCompleteProfile = "complete-profile"
	// ViewLoading is shown while the profile of a signed-in user is outstanding.
	ViewLoading = "loading"
	// ViewProfileError is shown once profile fetching gave up.
	ViewProfileError = "profile-error"
)

// PreAuthViews are the screens reachable without a session.
var PreAuthViews = []string{
	ViewLanding,
	ViewLogin,
	ViewSignup,
	ViewResetPassword,
	ViewLegal,
	ViewAbout,
}

// PostAuthViews are the screens reachable with a session and a complete profile.
var PostAuthViews = []string{
	ViewHome,
	ViewActivity,
	ViewMessages,
	ViewProfile,
	ViewSubscription,
	ViewChat,
	ViewWorkerDetail,
	ViewTaskDetail,
	ViewSettings,
	ViewChangePassword,
	ViewPostTask,
	ViewLegal,
	ViewSafety,
	ViewAbout,
	ViewAdmin,
}

// IsPreAuthEntry reports whether view is one of the entry screens that a
// restored session should skip past.
func IsPreAuthEntry(view string) bool {
	switch view {
	case ViewLanding, ViewLogin, ViewSignup:
		return true
	}
	return false
}
