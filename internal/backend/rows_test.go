package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gigmarket/gigmarket/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileByID(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantAny bool
		want    *models.Profile
	}{
		{
			name:   "found",
			status: http.StatusOK,
			body:   `{"id":"u1","role":"worker","phone_number":"+15550001","subscription_tier":"pro","usage_count":2,"is_verified":true}`,
			want: &models.Profile{
				ID: "u1", Role: models.RoleWorker, PhoneNumber: "+15550001",
				SubscriptionTier: models.TierPro, UsageCount: 2, IsVerified: true,
			},
		},
		{
			name:    "no row yet",
			status:  http.StatusNotAcceptable,
			body:    `{"code":"PGRST116","message":"JSON object requested, multiple (or no) rows returned"}`,
			wantErr: models.ErrNotFound,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `{"message":"boom"}`,
			wantAny: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/rest/v1/profiles", r.URL.Path)
				assert.Equal(t, "eq.u1", r.URL.Query().Get("id"))
				assert.Equal(t, "application/vnd.pgrst.object+json", r.Header.Get("Accept"))
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv, nil, nil)
			c.session = &models.Session{AccessToken: "tok", UserID: "u1"}

			got, err := c.ProfileByID(context.Background(), "u1")
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantAny:
				require.Error(t, err)
				assert.NotErrorIs(t, err, models.ErrNotFound)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestUpdateProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.u1", r.URL.Query().Get("id"))
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

		var patch map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
		assert.Equal(t, "client", patch["role"])

		_, _ = w.Write([]byte(`[{"id":"u1","role":"client","phone_number":"+15550001"}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil, nil)
	c.session = &models.Session{AccessToken: "tok", UserID: "u1"}

	p, err := c.UpdateProfile(context.Background(), "u1", map[string]any{"role": "client", "phone_number": "+15550001"})
	require.NoError(t, err)
	assert.True(t, p.Complete())
}

func TestUpdateProfile_NoSession(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := newTestClient(t, srv, nil, nil)
	_, err := c.UpdateProfile(context.Background(), "u1", map[string]any{})
	assert.ErrorIs(t, err, models.ErrNoSession)
}
