package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultStreamURL        = "wss://api.itick.org/fws"
	DefaultSymbol           = "XAUUSD"
	DefaultType             = "tick"
	DefaultReconnectLimit   = 100
	DefaultReconnectDelay   = 5 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultPingInterval     = 30 * time.Second
	DefaultPingTimeout      = 60 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultBufferSize       = 1000
	DefaultRestURL          = "https://api.itick.org"
	DefaultAPITimeout       = 30 * time.Second
	DefaultMaxRetries       = 3
	DefaultCategory         = "stock"
	DefaultRegion           = "HK"
	DefaultCode             = "700"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultTimezone         = "Asia/Shanghai"
	DefaultMetricsPort      = 9090
	DefaultMetricsPath      = "/metrics"
)

// ApplyDefaults fills every unset optional field.
func (c *Config) ApplyDefaults() {
	// Stream defaults
	if c.Stream.URL == "" {
		c.Stream.URL = DefaultStreamURL
	}
	if c.Stream.Symbol == "" {
		c.Stream.Symbol = DefaultSymbol
	}
	if len(c.Stream.Types) == 0 {
		c.Stream.Types = TypeList{DefaultType}
	}
	if c.Stream.ReconnectLimit == 0 {
		c.Stream.ReconnectLimit = DefaultReconnectLimit
	}
	if c.Stream.ReconnectDelay == 0 {
		c.Stream.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Stream.HandshakeTimeout == 0 {
		c.Stream.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.PingTimeout == 0 {
		c.Stream.PingTimeout = DefaultPingTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultBufferSize
	}

	// REST defaults
	if c.REST.BaseURL == "" {
		c.REST.BaseURL = DefaultRestURL
	}
	if c.REST.Timeout == 0 {
		c.REST.Timeout = DefaultAPITimeout
	}
	if c.REST.MaxRetries == 0 {
		c.REST.MaxRetries = DefaultMaxRetries
	}
	if c.REST.Category == "" {
		c.REST.Category = DefaultCategory
	}
	if c.REST.Region == "" {
		c.REST.Region = DefaultRegion
	}
	if c.REST.Code == "" {
		c.REST.Code = DefaultCode
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.Timezone == "" {
		c.Logging.Timezone = DefaultTimezone
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
