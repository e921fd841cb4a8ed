package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gigmarket/gigmarket/internal/models"
	"go.uber.org/zap"
)

// ErrConfirmationPending is returned by SignUp when the account exists but
// the email address must be confirmed before a session is issued.
var ErrConfirmationPending = errors.New("email confirmation pending")

// User is the auth subsystem's view of an account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *User  `json:"user"`
}

// Subscription is a registered auth listener.
type Subscription struct {
	once        sync.Once
	unsubscribe func()
}

// Unsubscribe removes the listener. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.unsubscribe)
}

// OnAuthStateChange registers fn for every subsequent auth-state change.
func (c *Client) OnAuthStateChange(fn AuthListener) *Subscription {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return &Subscription{unsubscribe: func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}}
}

// GetSession returns the current session, loading the persisted one on
// first use. An expired access token is exchanged through the refresh
// token; a session the backend refuses to refresh is discarded.
func (c *Client) GetSession(ctx context.Context) (*models.Session, error) {
	c.mu.Lock()
	if !c.loaded {
		c.loaded = true
		if c.sessions != nil {
			s, err := c.sessions.Load()
			if err != nil {
				c.log.Warn("discarding unreadable persisted session", zap.Error(err))
			} else {
				c.session = s
			}
		}
	}
	s := c.session
	c.mu.Unlock()

	if s == nil {
		return nil, nil
	}
	if !s.Expired(c.now()) {
		cp := *s
		return &cp, nil
	}

	refreshed, err := c.RefreshSession(ctx)
	if err != nil {
		if IsClientError(err) {
			c.clearSession()
			c.emit(models.EventSignedOut, nil)
			return nil, nil
		}
		return nil, err
	}
	return refreshed, nil
}

// SignUp creates an account. When the backend confirms addresses by email,
// ErrConfirmationPending is returned and no session is stored.
func (c *Client) SignUp(ctx context.Context, email, password string) (*models.Session, error) {
	tr, err := c.postToken(ctx, "/auth/v1/signup", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	if tr.AccessToken == "" {
		return nil, ErrConfirmationPending
	}
	return c.establish(tr, models.EventSignedIn)
}

// SignIn exchanges email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	tr, err := c.postToken(ctx, "/auth/v1/token?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	return c.establish(tr, models.EventSignedIn)
}

// RefreshSession exchanges the refresh token for a new access token.
func (c *Client) RefreshSession(ctx context.Context) (*models.Session, error) {
	c.mu.RLock()
	s := c.session
	c.mu.RUnlock()
	if s == nil || s.RefreshToken == "" {
		return nil, models.ErrNoSession
	}

	tr, err := c.postToken(ctx, "/auth/v1/token?grant_type=refresh_token", map[string]string{
		"refresh_token": s.RefreshToken,
	})
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	return c.establish(tr, models.EventTokenRefreshed)
}

// SignOut revokes the session. The local session is cleared even when the
// backend cannot be reached.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.accessToken()
	if token == "" {
		return nil
	}

	var callErr error
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/logout", nil)
	if err != nil {
		callErr = err
	} else {
		c.setHeaders(req, token)
		if _, err := c.do(req); err != nil {
			callErr = fmt.Errorf("sign out: %w", err)
		}
	}

	c.clearSession()
	c.emit(models.EventSignedOut, nil)
	return callErr
}

// ResetPasswordForEmail asks the backend to mail a recovery link to email.
// The link lands on redirectTo carrying a recovery session.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	path := "/auth/v1/recover"
	body, _ := json.Marshal(map[string]string{"email": email})
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if redirectTo != "" {
		q := req.URL.Query()
		q.Set("redirect_to", redirectTo)
		req.URL.RawQuery = q.Encode()
	}
	c.setHeaders(req, "")
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}
	return nil
}

// UpdatePassword sets a new password for the signed-in user.
func (c *Client) UpdatePassword(ctx context.Context, password string) error {
	token := c.accessToken()
	if token == "" {
		return models.ErrNoSession
	}
	body, _ := json.Marshal(map[string]string{"password": password})
	req, err := c.newRequest(ctx, http.MethodPut, "/auth/v1/user", bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req, token)
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	c.mu.RLock()
	s := c.session
	c.mu.RUnlock()
	c.emit(models.EventUserUpdated, s)
	return nil
}

// SetRecoverySession installs the session carried by a password recovery
// link and announces it as PASSWORD_RECOVERY.
func (c *Client) SetRecoverySession(ctx context.Context, accessToken, refreshToken string) (*models.Session, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, accessToken)
	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("recovery session: %w", err)
	}
	var u User
	if err := resp.JSON(&u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return c.establish(&tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         &u,
	}, models.EventPasswordRecovery)
}

func (c *Client) postToken(ctx context.Context, path string, payload map[string]string) (*tokenResponse, error) {
	body, _ := json.Marshal(payload)
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, "")
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var tr tokenResponse
	if err := resp.JSON(&tr); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &tr, nil
}

// establish turns a token response into the current session, persists it
// and announces event.
func (c *Client) establish(tr *tokenResponse, event models.AuthEvent) (*models.Session, error) {
	s, err := c.toSession(tr)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.session = s
	c.loaded = true
	c.mu.Unlock()

	if c.sessions != nil {
		if err := c.sessions.Save(s); err != nil {
			c.log.Warn("failed to persist session", zap.Error(err))
		}
	}
	c.emit(event, s)

	cp := *s
	return &cp, nil
}

func (c *Client) toSession(tr *tokenResponse) (*models.Session, error) {
	if tr.AccessToken == "" {
		return nil, errors.New("token response without access token")
	}
	s := &models.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
	}
	if tr.User != nil {
		s.UserID = tr.User.ID
		s.Email = tr.User.Email
	}
	switch {
	case tr.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(tr.ExpiresAt, 0)
	case tr.ExpiresIn > 0:
		s.ExpiresAt = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}

	if s.UserID == "" || s.ExpiresAt.IsZero() {
		claims, err := parseAccessToken(tr.AccessToken)
		if err != nil {
			return nil, err
		}
		if s.UserID == "" {
			s.UserID = claims.Subject
		}
		if s.Email == "" {
			s.Email = claims.Email
		}
		if s.ExpiresAt.IsZero() {
			s.ExpiresAt = claims.ExpiresAt
		}
	}
	if s.UserID == "" {
		return nil, errors.New("session without user id")
	}
	return s, nil
}

func (c *Client) clearSession() {
	c.mu.Lock()
	c.session = nil
	c.loaded = true
	c.mu.Unlock()
	if c.sessions != nil {
		if err := c.sessions.Clear(); err != nil {
			c.log.Warn("failed to clear persisted session", zap.Error(err))
		}
	}
}
