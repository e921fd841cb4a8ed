package gate

import (
	"testing"

	"github.com/gigmarket/gigmarket/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	sess := &models.Session{UserID: "u1"}
	complete := &models.Profile{ID: "u1", Role: models.RoleWorker, PhoneNumber: "+15550100"}
	admin := &models.Profile{ID: "u1", Role: models.RoleAdmin, PhoneNumber: "+15550100"}
	noPhone := &models.Profile{ID: "u1", Role: models.RoleClient}

	at := func(view string) models.NavigationState { return models.NavigationState{View: view} }

	tests := []struct {
		name string
		in   Input
		want Screen
	}{
		{
			name: "signed out on login",
			in:   Input{Current: at(models.ViewLogin)},
			want: Screen{View: models.ViewLogin, Shell: ShellBare},
		},
		{
			name: "signed out on legal",
			in:   Input{Current: at(models.ViewLegal)},
			want: Screen{View: models.ViewLegal, Shell: ShellBare},
		},
		{
			name: "signed out on home",
			in:   Input{Current: at(models.ViewHome)},
			want: Screen{View: models.ViewLanding, Shell: ShellBare},
		},
		{
			name: "signed out on unknown view",
			in:   Input{Current: at("nope")},
			want: Screen{View: models.ViewLanding, Shell: ShellBare},
		},
		{
			name: "profile outstanding",
			in:   Input{Session: sess, Current: at(models.ViewHome)},
			want: Screen{View: models.ViewLoading, Shell: ShellBare},
		},
		{
			name: "profile gave up",
			in:   Input{Session: sess, ProfileError: true, Current: at(models.ViewHome)},
			want: Screen{View: models.ViewProfileError, Shell: ShellBare},
		},
		{
			name: "incomplete profile overrides router",
			in:   Input{Session: sess, Profile: noPhone, Current: at(models.ViewMessages)},
			want: Screen{View: models.ViewCompleteProfile, Shell: ShellBare},
		},
		{
			name: "incomplete profile on landing",
			in:   Input{Session: sess, Profile: &models.Profile{ID: "u1"}, Current: at(models.ViewLanding)},
			want: Screen{View: models.ViewCompleteProfile, Shell: ShellBare},
		},
		{
			name: "incomplete profile on home",
			in:   Input{Session: sess, Profile: noPhone, Current: at(models.ViewHome)},
			want: Screen{View: models.ViewCompleteProfile, Shell: ShellBare},
		},
		{
			name: "incomplete profile on settings",
			in:   Input{Session: sess, Profile: noPhone, Current: at(models.ViewSettings)},
			want: Screen{View: models.ViewCompleteProfile, Shell: ShellBare},
		},
		{
			name: "incomplete profile on admin",
			in:   Input{Session: sess, Profile: noPhone, Current: at(models.ViewAdmin)},
			want: Screen{View: models.ViewCompleteProfile, Shell: ShellBare},
		},
		{
			name: "incomplete profile on unknown view",
			in:   Input{Session: sess, Profile: noPhone, Current: at("nope")},
			want: Screen{View: models.ViewCompleteProfile, Shell: ShellBare},
		},
		{
			name: "complete profile on messages",
			in:   Input{Session: sess, Profile: complete, Current: at(models.ViewMessages)},
			want: Screen{View: models.ViewMessages, Shell: ShellMain},
		},
		{
			name: "complete profile on pre-auth view",
			in:   Input{Session: sess, Profile: complete, Current: at(models.ViewLogin)},
			want: Screen{View: models.ViewHome, Shell: ShellMain},
		},
		{
			name: "complete profile on unknown view",
			in:   Input{Session: sess, Profile: complete, Current: at("nope")},
			want: Screen{View: models.ViewHome, Shell: ShellMain},
		},
		{
			name: "admin view for worker",
			in:   Input{Session: sess, Profile: complete, Current: at(models.ViewAdmin)},
			want: Screen{View: models.ViewHome, Shell: ShellMain},
		},
		{
			name: "admin view for admin",
			in:   Input{Session: sess, Profile: admin, Current: at(models.ViewAdmin)},
			want: Screen{View: models.ViewAdmin, Shell: ShellMain},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.in))
		})
	}
}

func TestDecide_PassesData(t *testing.T) {
	sess := &models.Session{UserID: "u1"}
	p := &models.Profile{ID: "u1", Role: models.RoleClient, PhoneNumber: "+15550100"}
	data := map[string]any{"workerId": "w7"}

	got := Decide(Input{
		Session: sess,
		Profile: p,
		Current: models.NavigationState{View: models.ViewWorkerDetail, Data: data},
	})
	assert.Equal(t, data, got.Data)
}
