package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a stream subscriber.
type Config struct {
	Stream  StreamConfig  `yaml:"stream"`
	REST    RESTConfig    `yaml:"rest"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StreamConfig holds the WebSocket subscription and reconnection settings.
type StreamConfig struct {
	URL               string        `yaml:"url"`
	Token             string        `yaml:"token"`      // Inline token, usually ${ITICK_API_KEY}
	TokenFile         string        `yaml:"token_file"` // File holding the token, used when token is empty
	Symbol            string        `yaml:"symbol"`
	Types             TypeList      `yaml:"types"`
	ReconnectLimit    int           `yaml:"reconnect_limit"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"` // Application ping, 0 = off
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	PingInterval      time.Duration `yaml:"ping_interval"` // WebSocket protocol ping
	PingTimeout       time.Duration `yaml:"ping_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	BufferSize        int           `yaml:"buffer_size"`
}

// RESTConfig holds iTick REST API settings.
type RESTConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	PollInterval time.Duration `yaml:"poll_interval"` // Snapshot poll period, 0 = off
	Category     string        `yaml:"category"`      // stock, forex, indices, crypto, ...
	Region       string        `yaml:"region"`
	Code         string        `yaml:"code"`
}

// LoggingConfig holds log sink settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`   // text or json
	File     string `yaml:"file"`     // Appended to in addition to stdout, empty = stdout only
	Timezone string `yaml:"timezone"` // IANA zone for timestamps
}

// MetricsConfig holds Prometheus metrics and health endpoint settings.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// IsEnabled reports whether the metrics server should run. Unset means true.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// TypeList is a data-type set. YAML accepts either a sequence
// ([depth, quote]) or the wire form as a scalar ("depth,quote").
type TypeList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *TypeList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*t = splitTypes(s)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		var out TypeList
		for _, item := range items {
			out = append(out, splitTypes(item)...)
		}
		*t = out
		return nil
	default:
		return fmt.Errorf("line %d: types must be a string or a list", node.Line)
	}
}

func splitTypes(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
