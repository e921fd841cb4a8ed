package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RealtimeClient follows row changes over the backend's websocket feed.
type RealtimeClient struct {
	mu        sync.Mutex
	url       string
	token     string
	conn      *websocket.Conn
	channels  map[string]*Channel
	done      chan struct{}
	ref       int
	heartbeat time.Duration
	log       *zap.Logger
}

// ChangeHandler receives a row change.
type ChangeHandler func(change *RowChange)

// RealtimeEvent is one frame of the channel protocol.
type RealtimeEvent struct {
	Event   string         `json:"event"`
	Topic   string         `json:"topic"`
	Payload map[string]any `json:"payload"`
	Ref     string         `json:"ref"`
	JoinRef string         `json:"join_ref,omitempty"`
}

// RowChange is the decoded postgres change carried by a realtime event.
type RowChange struct {
	Type      string         `json:"type"`
	Table     string         `json:"table"`
	Record    map[string]any `json:"record"`
	OldRecord map[string]any `json:"old_record"`
}

// PostgresChangesConfig selects the row changes to follow.
type PostgresChangesConfig struct {
	Event  string // INSERT, UPDATE, DELETE, *
	Schema string
	Table  string
	Filter string // optional, like "id=eq.1"
}

// Channel is a joined realtime topic.
type Channel struct {
	client  *RealtimeClient
	topic   string
	event   string
	joinRef string
	handler ChangeHandler
}

// Realtime returns a realtime client authenticated with the current session.
func (c *Client) Realtime() *RealtimeClient {
	return NewRealtimeClient(c.baseURL, c.apiKey, c.accessToken(), c.log)
}

// NewRealtimeClient creates a realtime client for the project at baseURL.
func NewRealtimeClient(baseURL, apiKey, accessToken string, log *zap.Logger) *RealtimeClient {
	wsURL := baseURL
	if strings.HasPrefix(wsURL, "https") {
		wsURL = "wss" + wsURL[5:]
	} else if strings.HasPrefix(wsURL, "http") {
		wsURL = "ws" + wsURL[4:]
	}
	q := url.Values{"apikey": {apiKey}, "vsn": {"1.0.0"}}
	wsURL += "/realtime/v1/websocket?" + q.Encode()

	if log == nil {
		log = zap.NewNop()
	}
	if accessToken == "" {
		accessToken = apiKey
	}
	return &RealtimeClient{
		url:       wsURL,
		token:     accessToken,
		channels:  make(map[string]*Channel),
		done:      make(chan struct{}),
		heartbeat: 30 * time.Second,
		log:       log,
	}
}

// Connect establishes the websocket connection.
func (r *RealtimeClient) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	r.conn = conn
	r.done = make(chan struct{})

	go r.readLoop(conn, r.done)
	go r.heartbeatLoop(r.done)
	return nil
}

// Close leaves every channel and closes the connection.
func (r *RealtimeClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}
	close(r.done)

	err := r.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	r.conn.Close()
	r.conn = nil
	r.channels = make(map[string]*Channel)
	if err != nil {
		return fmt.Errorf("close message: %w", err)
	}
	return nil
}

// SubscribePostgresChanges joins the topic for cfg and calls handler for
// every matching change.
func (r *RealtimeClient) SubscribePostgresChanges(ctx context.Context, cfg PostgresChangesConfig, handler ChangeHandler) (*Channel, error) {
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	if cfg.Event == "" {
		cfg.Event = "*"
	}

	topic := fmt.Sprintf("realtime:%s:%s", cfg.Schema, cfg.Table)
	if cfg.Filter != "" {
		topic += ":" + cfg.Filter
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil, fmt.Errorf("realtime: not connected")
	}
	if ch, ok := r.channels[topic]; ok {
		return ch, nil
	}

	change := map[string]any{
		"event":  cfg.Event,
		"schema": cfg.Schema,
		"table":  cfg.Table,
	}
	if cfg.Filter != "" {
		change["filter"] = cfg.Filter
	}

	ref := r.nextRef()
	msg := map[string]any{
		"topic": topic,
		"event": "phx_join",
		"payload": map[string]any{
			"config":       map[string]any{"postgres_changes": []any{change}},
			"access_token": r.token,
		},
		"ref":      ref,
		"join_ref": ref,
	}
	if err := r.conn.WriteJSON(msg); err != nil {
		return nil, fmt.Errorf("send join: %w", err)
	}

	ch := &Channel{client: r, topic: topic, event: cfg.Event, joinRef: ref, handler: handler}
	r.channels[topic] = ch
	return ch, nil
}

// Unsubscribe leaves the channel.
func (ch *Channel) Unsubscribe() error {
	r := ch.client
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.channels[ch.topic]; !ok {
		return nil
	}
	delete(r.channels, ch.topic)
	if r.conn == nil {
		return nil
	}

	msg := map[string]any{
		"topic":    ch.topic,
		"event":    "phx_leave",
		"payload":  map[string]any{},
		"ref":      r.nextRef(),
		"join_ref": ch.joinRef,
	}
	if err := r.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send leave: %w", err)
	}
	return nil
}

// Topic returns the channel's topic.
func (ch *Channel) Topic() string {
	return ch.topic
}

// nextRef must be called with r.mu held.
func (r *RealtimeClient) nextRef() string {
	r.ref++
	return fmt.Sprintf("%d", r.ref)
}

func (r *RealtimeClient) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			r.log.Debug("realtime connection closed", zap.Error(err))
			return
		}

		var event RealtimeEvent
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		r.dispatchEvent(&event)
	}
}

func (r *RealtimeClient) dispatchEvent(event *RealtimeEvent) {
	if event.Event != "postgres_changes" {
		return
	}

	r.mu.Lock()
	ch, ok := r.channels[event.Topic]
	r.mu.Unlock()
	if !ok {
		return
	}

	raw, ok := event.Payload["data"]
	if !ok {
		return
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return
	}
	var change RowChange
	if err := json.Unmarshal(b, &change); err != nil {
		return
	}
	if ch.event != "*" && !strings.EqualFold(ch.event, change.Type) {
		return
	}
	ch.handler(&change)
}

func (r *RealtimeClient) heartbeatLoop(done chan struct{}) {
	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.conn != nil {
				msg := map[string]any{
					"topic":   "phoenix",
					"event":   "heartbeat",
					"payload": map[string]any{},
					"ref":     r.nextRef(),
				}
				if err := r.conn.WriteJSON(msg); err != nil {
					r.log.Warn("realtime heartbeat failed", zap.Error(err))
				}
			}
			r.mu.Unlock()
		}
	}
}

// WatchProfile follows updates of userID's profile row and calls onChange
// for each one until stop is called.
func (c *Client) WatchProfile(ctx context.Context, userID string, onChange func()) (stop func(), err error) {
	rt := c.Realtime()
	if err := rt.Connect(ctx); err != nil {
		return nil, err
	}
	_, err = rt.SubscribePostgresChanges(ctx, PostgresChangesConfig{
		Event:  "UPDATE",
		Table:  ProfilesTable,
		Filter: "id=eq." + userID,
	}, func(*RowChange) { onChange() })
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	return func() {
		if err := rt.Close(); err != nil {
			c.log.Debug("closing profile feed", zap.Error(err))
		}
	}, nil
}
