package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gigmarket/gigmarket/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, sub, email string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

// eventRecorder collects auth events delivered by the dispatcher.
type eventRecorder struct {
	mu     sync.Mutex
	events []models.AuthEvent
}

func (e *eventRecorder) listen(ev models.AuthEvent, _ *models.Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *eventRecorder) get() []models.AuthEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.AuthEvent(nil), e.events...)
}

func newTestClient(t *testing.T, srv *httptest.Server, store SessionStore, now func() time.Time) *Client {
	t.Helper()
	c, err := New(Config{URL: srv.URL, APIKey: "anon", Sessions: store, Now: now})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{APIKey: "k"})
	assert.Error(t, err)
	_, err = New(Config{URL: "http://x"})
	assert.Error(t, err)
}

func TestSignIn_StoresSessionAndEmits(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	access := signToken(t, "u1", "a@b.c", exp)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.c", body["email"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  access,
			"refresh_token": "r1",
			"user":          map[string]string{"id": "u1", "email": "a@b.c"},
		})
	}))
	defer srv.Close()

	store := NewFileSessionStore(filepath.Join(t.TempDir(), "session"), mustAEAD(t))
	c := newTestClient(t, srv, store, nil)
	rec := &eventRecorder{}
	sub := c.OnAuthStateChange(rec.listen)
	defer sub.Unsubscribe()

	s, err := c.SignIn(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, "r1", s.RefreshToken)
	assert.True(t, s.ExpiresAt.Equal(exp), "expiry read from token")

	assert.Eventually(t, func() bool {
		return len(rec.get()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []models.AuthEvent{models.EventSignedIn}, rec.get())

	persisted, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, access, persisted.AccessToken)
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil, nil)
	_, err := c.SignIn(context.Background(), "a@b.c", "bad")
	require.Error(t, err)
	assert.True(t, IsClientError(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid_grant", apiErr.Code)
	assert.Equal(t, "Invalid login credentials", apiErr.Message)
}

func TestSignUp_ConfirmationPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"u2","email":"n@b.c"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil, nil)
	s, err := c.SignUp(context.Background(), "n@b.c", "pw")
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrConfirmationPending)
}

func TestGetSession_RefreshesExpiredToken(t *testing.T) {
	now := time.Now()
	fresh := signToken(t, "u1", "a@b.c", now.Add(time.Hour))

	var refreshCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  fresh,
			"refresh_token": "r2",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	store := NewFileSessionStore(filepath.Join(t.TempDir(), "session"), mustAEAD(t))
	require.NoError(t, store.Save(&models.Session{
		AccessToken:  "old",
		RefreshToken: "r1",
		UserID:       "u1",
		ExpiresAt:    now.Add(-time.Minute),
	}))

	c := newTestClient(t, srv, store, func() time.Time { return now })
	rec := &eventRecorder{}
	c.OnAuthStateChange(rec.listen)

	s, err := c.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, fresh, s.AccessToken)
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, 1, refreshCalls)

	assert.Eventually(t, func() bool {
		ev := rec.get()
		return len(ev) == 1 && ev[0] == models.EventTokenRefreshed
	}, time.Second, 5*time.Millisecond)
}

func TestGetSession_RefreshRejectedDiscardsSession(t *testing.T) {
	now := time.Now()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	store := NewFileSessionStore(filepath.Join(t.TempDir(), "session"), mustAEAD(t))
	require.NoError(t, store.Save(&models.Session{
		AccessToken: "old", RefreshToken: "r1", UserID: "u1", ExpiresAt: now.Add(-time.Minute),
	}))

	c := newTestClient(t, srv, store, func() time.Time { return now })
	s, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, persisted)
}

func TestGetSession_TransportError(t *testing.T) {
	now := time.Now()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(Config{URL: url, APIKey: "anon", Now: func() time.Time { return now }})
	require.NoError(t, err)
	defer c.Close()
	c.session = &models.Session{AccessToken: "x", RefreshToken: "r", UserID: "u", ExpiresAt: now.Add(-time.Second)}
	c.loaded = true

	_, err = c.GetSession(context.Background())
	assert.Error(t, err)
}

func TestGetSession_None(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := newTestClient(t, srv, nil, nil)
	s, err := c.GetSession(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, s)
}

func TestSignOut_ClearsEvenOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/logout", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil, nil)
	c.session = &models.Session{AccessToken: "tok", UserID: "u1"}
	c.loaded = true
	rec := &eventRecorder{}
	c.OnAuthStateChange(rec.listen)

	err := c.SignOut(context.Background())
	assert.Error(t, err)

	s, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Eventually(t, func() bool {
		ev := rec.get()
		return len(ev) == 1 && ev[0] == models.EventSignedOut
	}, time.Second, 5*time.Millisecond)
}

func TestSetRecoverySession(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	access := signToken(t, "u3", "r@b.c", exp)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "Bearer "+access, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"u3","email":"r@b.c"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil, nil)
	var mu sync.Mutex
	var got *models.Session
	var gotEvent models.AuthEvent
	c.OnAuthStateChange(func(ev models.AuthEvent, s *models.Session) {
		mu.Lock()
		defer mu.Unlock()
		gotEvent, got = ev, s
	})

	s, err := c.SetRecoverySession(context.Background(), access, "rr")
	require.NoError(t, err)
	assert.Equal(t, "u3", s.UserID)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotEvent == models.EventPasswordRecovery && got != nil && got.UserID == "u3"
	}, time.Second, 5*time.Millisecond)
}

func TestUpdatePassword_RequiresSession(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := newTestClient(t, srv, nil, nil)
	assert.ErrorIs(t, c.UpdatePassword(context.Background(), "new"), models.ErrNoSession)
}

func TestResetPasswordForEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/recover", r.URL.Path)
		assert.Equal(t, "http://127.0.0.1:8765/auth/callback", r.URL.Query().Get("redirect_to"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil, nil)
	require.NoError(t, c.ResetPasswordForEmail(context.Background(), "a@b.c", "http://127.0.0.1:8765/auth/callback"))
}

func TestSubscription_Unsubscribe(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := newTestClient(t, srv, nil, nil)
	sub := c.OnAuthStateChange(func(models.AuthEvent, *models.Session) {})
	assert.Len(t, c.listeners, 1)
	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Len(t, c.listeners, 0)
}
