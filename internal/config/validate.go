package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // timezone names must resolve on hosts without zoneinfo
)

// Validate checks that all required fields are set and values are valid.
// The stream token is not checked here because it may come from token_file
// or the environment; see auth.LoadCredentials.
func (c *Config) Validate() error {
	if err := c.Stream.validate(); err != nil {
		return err
	}
	if err := c.REST.validate(); err != nil {
		return err
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if _, err := time.LoadLocation(c.Logging.Timezone); err != nil {
		return fmt.Errorf("logging.timezone %q: %w", c.Logging.Timezone, err)
	}

	if c.Metrics.IsEnabled() {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
		}
	}

	return nil
}

func (s *StreamConfig) validate() error {
	if s.URL == "" {
		return errors.New("stream.url is required")
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("stream.url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("stream.url must use ws or wss, got %q", u.Scheme)
	}
	if s.Symbol == "" {
		return errors.New("stream.symbol is required")
	}
	if len(s.Types) == 0 {
		return errors.New("stream.types is required")
	}
	if s.ReconnectLimit < 1 {
		return errors.New("stream.reconnect_limit must be >= 1")
	}
	if s.ReconnectDelay < 0 {
		return fmt.Errorf("stream.reconnect_delay must be >= 0, got %v", s.ReconnectDelay)
	}
	if s.HeartbeatInterval < 0 {
		return fmt.Errorf("stream.heartbeat_interval must be >= 0, got %v", s.HeartbeatInterval)
	}
	if s.BufferSize < 1 {
		return errors.New("stream.buffer_size must be >= 1")
	}
	return nil
}

func (r *RESTConfig) validate() error {
	if r.BaseURL == "" {
		return errors.New("rest.base_url is required")
	}
	if r.MaxRetries < 0 {
		return errors.New("rest.max_retries must be >= 0")
	}
	if r.PollInterval < 0 {
		return fmt.Errorf("rest.poll_interval must be >= 0, got %v", r.PollInterval)
	}
	if r.PollInterval > 0 && r.Code == "" {
		return errors.New("rest.code is required when rest.poll_interval is set")
	}
	return nil
}
