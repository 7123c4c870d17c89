// Package auth loads the iTick API token and applies it to requests.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// EnvToken is the environment variable consulted when no token is configured.
const EnvToken = "ITICK_API_KEY"

// HeaderToken is the request header iTick reads the token from.
const HeaderToken = "token"

// ErrNoToken is returned when no source provides a token.
var ErrNoToken = errors.New("api token is required (set stream.token, stream.token_file or " + EnvToken + ")")

// Credentials holds the API token used for both the WebSocket auth message
// and the REST token header.
type Credentials struct {
	Token  string
	Source string // inline, file or env
}

// LoadCredentials resolves the token. An inline token wins, then the token
// file, then the ITICK_API_KEY environment variable.
func LoadCredentials(token, tokenPath string) (*Credentials, error) {
	if token = strings.TrimSpace(token); token != "" {
		return &Credentials{Token: token, Source: "inline"}, nil
	}

	if tokenPath != "" {
		t, err := LoadTokenFile(tokenPath)
		if err != nil {
			return nil, fmt.Errorf("load token file: %w", err)
		}
		return &Credentials{Token: t, Source: "file"}, nil
	}

	if t := strings.TrimSpace(os.Getenv(EnvToken)); t != "" {
		return &Credentials{Token: t, Source: "env"}, nil
	}

	return nil, ErrNoToken
}

// LoadTokenFile reads a token from a file, ignoring surrounding whitespace.
func LoadTokenFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", path)
	}
	return token, nil
}

// Apply sets the token header on an outgoing REST request.
func (c *Credentials) Apply(req *http.Request) {
	req.Header.Set(HeaderToken, c.Token)
}

// Redacted returns the token with all but the last four characters masked,
// for logging.
func (c *Credentials) Redacted() string {
	return Redact(c.Token)
}

// Redact masks a secret for logging.
func Redact(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}
