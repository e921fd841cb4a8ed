// Package gate decides which screen is actually shown, independent of what
// the router asked for, based on authentication and profile completeness.
package gate

import (
	"slices"

	"github.com/gigmarket/gigmarket/internal/models"
)

// Shell is the chrome a screen is rendered in.
type Shell string

const (
	// ShellBare renders the screen without navigation chrome.
	ShellBare Shell = "bare"
	// ShellMain renders the screen inside the signed-in layout.
	ShellMain Shell = "main"
)

// Screen is the outcome of a gate decision.
type Screen struct {
	View  string
	Data  any
	Shell Shell
}

// Input is everything a decision depends on.
type Input struct {
	Session      *models.Session
	Profile      *models.Profile
	ProfileError bool
	Current      models.NavigationState
}

// Decide is a pure function of its input and is evaluated on every render.
// The router's view is only honoured when the user may see it:
//
//   - without a session only pre-auth views render, anything else is landing;
//   - with a session but no profile yet the loading or profile-error screen
//     renders;
//   - with an incomplete profile the completion screen renders whatever the
//     router says;
//   - otherwise post-auth views render and anything unknown is home.
//
// The admin view renders for admins only.
func Decide(in Input) Screen {
	view := in.Current.View

	if in.Session == nil {
		if slices.Contains(models.PreAuthViews, view) {
			return Screen{View: view, Data: in.Current.Data, Shell: ShellBare}
		}
		return Screen{View: models.ViewLanding, Shell: ShellBare}
	}

	if in.Profile == nil {
		if in.ProfileError {
			return Screen{View: models.ViewProfileError, Shell: ShellBare}
		}
		return Screen{View: models.ViewLoading, Shell: ShellBare}
	}

	if !in.Profile.Complete() {
		return Screen{View: models.ViewCompleteProfile, Shell: ShellBare}
	}

	if view == models.ViewAdmin && in.Profile.Role != models.RoleAdmin {
		return Screen{View: models.ViewHome, Shell: ShellMain}
	}
	if slices.Contains(models.PostAuthViews, view) {
		return Screen{View: view, Data: in.Current.Data, Shell: ShellMain}
	}
	return Screen{View: models.ViewHome, Shell: ShellMain}
}
