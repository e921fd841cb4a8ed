// Package backend is the client of the hosted backend-as-a-service: auth,
// row storage over PostgREST and the realtime change feed. It speaks the
// Supabase REST dialect.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gigmarket/gigmarket/internal/models"
	"go.uber.org/zap"
)

// Config holds client configuration.
type Config struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
	// Sessions persists the session between runs. Nil keeps it in memory only.
	Sessions SessionStore
	Logger   *zap.Logger
	// Now overrides the clock used for token expiry checks.
	Now func() time.Time
}

// AuthListener is called with every auth-state change, in order, on the
// client's dispatch goroutine.
type AuthListener func(event models.AuthEvent, session *models.Session)

// Client is a backend REST client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	sessions   SessionStore
	log        *zap.Logger
	now        func() time.Time

	mu        sync.RWMutex
	session   *models.Session
	loaded    bool
	listeners map[int]AuthListener
	nextID    int

	events    chan authChange
	done      chan struct{}
	closeOnce sync.Once
}

type authChange struct {
	event   models.AuthEvent
	session *models.Session
}

// New creates a new backend client and starts its event dispatcher.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("APIKey is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		sessions:   cfg.Sessions,
		log:        log,
		now:        now,
		listeners:  make(map[int]AuthListener),
		events:     make(chan authChange, 32),
		done:       make(chan struct{}),
	}
	go c.dispatch()
	return c, nil
}

// Close stops the event dispatcher. Pending events are dropped.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// BaseURL returns the project URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIKey returns the public API key.
func (c *Client) APIKey() string {
	return c.apiKey
}

func (c *Client) dispatch() {
	for {
		select {
		case <-c.done:
			return
		case ch := <-c.events:
			c.mu.RLock()
			listeners := make([]AuthListener, 0, len(c.listeners))
			for _, l := range c.listeners {
				listeners = append(listeners, l)
			}
			c.mu.RUnlock()
			for _, l := range listeners {
				l(ch.event, ch.session)
			}
		}
	}
}

func (c *Client) emit(event models.AuthEvent, s *models.Session) {
	var cp *models.Session
	if s != nil {
		v := *s
		cp = &v
	}
	select {
	case c.events <- authChange{event: event, session: cp}:
	case <-c.done:
	}
}

// =============================================================================
// Response Handling
// =============================================================================

// Response is a raw backend response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("backend error %d: %s", e.Status, e.Message)
}

// IsClientError reports whether err is a 4xx answer from the backend.
func IsClientError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500
}

// errorBody covers both the PostgREST and the auth error shapes.
type errorBody struct {
	Code             any    `json:"code"`
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Message: strings.TrimSpace(string(body))}
	var eb errorBody
	if json.Unmarshal(body, &eb) != nil {
		return apiErr
	}
	switch v := eb.Code.(type) {
	case string:
		apiErr.Code = v
	case float64:
		apiErr.Code = fmt.Sprintf("%d", int(v))
	}
	if eb.ErrorCode != "" {
		apiErr.Code = eb.ErrorCode
	}
	for _, m := range []string{eb.Message, eb.Msg, eb.ErrorDescription, eb.Error} {
		if m != "" {
			apiErr.Message = m
			break
		}
	}
	if apiErr.Code == "" && eb.Error != "" && eb.Error != apiErr.Message {
		apiErr.Code = eb.Error
	}
	return apiErr
}

// =============================================================================
// Helpers
// =============================================================================

// setHeaders applies the API key and, when signed in, the user's bearer token.
func (c *Client) setHeaders(req *http.Request, accessToken string) {
	req.Header.Set("apikey", c.apiKey)
	if accessToken == "" {
		accessToken = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

func (c *Client) do(req *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseAPIError(resp.StatusCode, body)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body, Headers: resp.Header}, nil
}

func (c *Client) accessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

// newRequest builds a request against the project URL.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
