package connection

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// ConnectionError is returned when the transport fails to establish or
// drops the connection.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error [%s]: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SendError is returned when a control message could not be encoded or
// written.
type SendError struct {
	Action string
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send %s: %v", e.Action, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// LimitExceededError reports that the reconnect budget is spent. The session
// makes no further attempts after it.
type LimitExceededError struct {
	Attempts int
	Limit    int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("reconnect limit exceeded: %d of %d attempts used", e.Attempts, e.Limit)
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Status is the lifecycle state of a Session.
type Status int32

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusAuthenticating
	StatusSubscribed // handshake dispatched
	StatusClosing
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusAuthenticating:
		return "authenticating"
	case StatusSubscribed:
		return "subscribed"
	case StatusClosing:
		return "closing"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., wss://api.itick.org/fws)
	UserAgent        string        // Sent on the upgrade request when set
	HandshakeTimeout time.Duration // Dial handshake limit
	PingInterval     time.Duration // How often to send protocol pings
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// SessionConfig is fixed at construction and never changes afterwards.
type SessionConfig struct {
	URL               string
	Token             string
	Symbol            string
	Types             []string       // data-type set, e.g. ["tick"] or ["depth", "quote"]
	ReconnectLimit    int            // Max connection attempts between successful opens
	ReconnectDelay    time.Duration  // Constant wait before each reconnect
	HeartbeatInterval time.Duration  // Application ping interval (0 = off)
	Location          *time.Location // Zone used to stamp received frames (nil = Asia/Shanghai)
	Client            ClientConfig   // Per-connection transport settings; URL is filled from URL
}

// DefaultSessionConfig returns defaults for the XAUUSD tick subscription.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		URL:            "wss://api.itick.org/fws",
		Symbol:         "XAUUSD",
		Types:          []string{"tick"},
		ReconnectLimit: 100,
		ReconnectDelay: 5 * time.Second,
		Client:         DefaultClientConfig(),
	}
}

func (c SessionConfig) validate() error {
	if c.URL == "" {
		return errors.New("session url is required")
	}
	if c.Token == "" {
		return errors.New("session token is required")
	}
	if c.Symbol == "" {
		return errors.New("session symbol is required")
	}
	if c.ReconnectLimit < 1 {
		return fmt.Errorf("reconnect limit must be >= 1, got %d", c.ReconnectLimit)
	}
	if c.ReconnectDelay < 0 {
		return fmt.Errorf("reconnect delay must be >= 0, got %v", c.ReconnectDelay)
	}
	if c.HeartbeatInterval < 0 {
		return fmt.Errorf("heartbeat interval must be >= 0, got %v", c.HeartbeatInterval)
	}
	return nil
}
