// Package restream relays messages from the Restream chat aggregation
// service into the script endpoint. It owns the only reconnection logic in
// the system: bounded exponential backoff around the OAuth exchange and the
// WebSocket session.
package restream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bidchat/internal/infrastructure/script"
	"bidchat/pkg/logger"
)

type State int

const (
	Disconnected State = iota
	Authenticating
	Connected
)

const defaultMaxRetries = 3

// Publisher republishes inbound chat frames. Satisfied by script.Client.
type Publisher interface {
	HandleRestreamMessage(ctx context.Context, msg script.RestreamMessage) error
}

// Conn is the slice of a websocket connection the client uses.
type Conn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens a websocket connection. Replaceable in tests.
type Dialer func(ctx context.Context, wsURL string) (Conn, error)

func gorillaDialer(ctx context.Context, wsURL string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	return conn, err
}

type Client struct {
	clientID     string
	clientSecret string
	tokenURL     string
	wsURL        string

	publisher  Publisher
	httpClient *http.Client
	dial       Dialer

	// schedule defers a reconnect attempt. Defaults to time.AfterFunc;
	// tests substitute it to observe the computed delays.
	schedule func(d time.Duration, fn func())

	mu          sync.Mutex
	state       State
	retryCount  int
	maxRetries  int
	accessToken string
	conn        Conn
}

func NewClient(clientID, clientSecret, tokenURL, wsURL string, publisher Publisher) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		wsURL:        wsURL,
		publisher:    publisher,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		dial:         gorillaDialer,
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
		maxRetries: defaultMaxRetries,
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) RetryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retryCount
}

// Connect performs the OAuth exchange, opens the socket, and sends the auth
// frame. Any failure along the way goes through the backoff controller.
func (c *Client) Connect(ctx context.Context) {
	c.setState(Authenticating)

	token, err := c.authenticate(ctx)
	if err != nil {
		logger.Error("Restream authentication error: %v", err)
		c.setState(Disconnected)
		c.Reconnect(ctx)
		return
	}

	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()

	conn, err := c.dial(ctx, c.wsURL)
	if err != nil {
		logger.Error("Restream connection error: %v", err)
		c.setState(Disconnected)
		c.Reconnect(ctx)
		return
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := conn.WriteJSON(outboundFrame{
		Type:    "auth",
		Payload: authPayload{Token: token},
	}); err != nil {
		logger.Error("Failed to send auth frame: %v", err)
		conn.Close()
		c.setState(Disconnected)
		c.Reconnect(ctx)
		return
	}

	go c.readLoop(ctx, conn)
}

// Reconnect schedules another Connect with exponential backoff. After
// maxRetries consecutive failures it gives up silently: no further attempts
// until the process restarts.
func (c *Client) Reconnect(ctx context.Context) {
	c.mu.Lock()
	if c.retryCount >= c.maxRetries {
		c.mu.Unlock()
		logger.Error("Max retry attempts reached")
		return
	}
	c.retryCount++
	attempt := c.retryCount
	c.mu.Unlock()

	delay := time.Duration(1000*(1<<attempt)) * time.Millisecond
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	logger.Info("Attempting reconnect in %v (attempt %d)", delay, attempt)

	c.schedule(delay, func() {
		if ctx.Err() != nil {
			return
		}
		c.Connect(ctx)
	})
}

// Disconnect closes the socket without triggering the backoff controller.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = Disconnected
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"client_credentials"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("auth failed: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", err
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("no access token received")
	}
	return tokenResp.AccessToken, nil
}

type outboundFrame struct {
	Type    string      `json:"type"`
	Payload authPayload `json:"payload"`
}

type authPayload struct {
	Token string `json:"token"`
}

type inboundFrame struct {
	Type    string          `json:"type"`
	Status  string          `json:"status,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type chatPayload struct {
	Author struct {
		Name string `json:"name"`
	} `json:"author"`
	Platform string `json:"platform"`
	Text     string `json:"text"`
}

func (c *Client) readLoop(ctx context.Context, conn Conn) {
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			deliberate := c.conn == nil // Disconnect() already ran
			c.state = Disconnected
			c.mu.Unlock()
			if deliberate || ctx.Err() != nil {
				return
			}
			logger.Warn("Restream socket closed: %v", err)
			c.Reconnect(ctx)
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			logger.Warn("Dropping malformed restream frame: %v", err)
			continue
		}

		switch frame.Type {
		case "auth":
			if frame.Status == "ok" {
				c.mu.Lock()
				c.state = Connected
				c.retryCount = 0
				c.mu.Unlock()
				logger.Info("Connected to Restream chat")
			} else {
				logger.Error("Restream auth rejected: %s", frame.Status)
				c.setState(Disconnected)
				c.Reconnect(ctx)
				return
			}
		case "chat.message":
			c.handleMessage(ctx, frame.Payload)
		}
	}
}

// handleMessage republishes an aggregated chat message to the script
// endpoint. Fire-and-forget: a failed publish is logged, never retried.
func (c *Client) handleMessage(ctx context.Context, payload json.RawMessage) {
	var msg chatPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		logger.Warn("Dropping malformed chat payload: %v", err)
		return
	}

	err := c.publisher.HandleRestreamMessage(ctx, script.RestreamMessage{
		Sender:    msg.Author.Name,
		Platform:  msg.Platform,
		Message:   msg.Text,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		logger.Error("Failed to publish restream message: %v", err)
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
