package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://api.example.com", "test-token")

		if c.baseURL != "https://api.example.com" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "https://api.example.com")
		}
		if c.token != "test-token" {
			t.Errorf("token = %q, want %q", c.token, "test-token")
		}
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 30*time.Second)
		}
		if c.maxRetries != 3 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 3)
		}
		if c.retryBackoff != time.Second {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, time.Second)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("with multiple options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		c := NewClient("https://api.example.com", "key",
			WithTimeout(15*time.Second),
			WithRetries(10, 500*time.Millisecond),
			WithLogger(logger),
			WithUserAgent("itick-stream/test"),
		)
		if c.httpClient.Timeout != 15*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 15*time.Second)
		}
		if c.maxRetries != 10 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 10)
		}
		if c.retryBackoff != 500*time.Millisecond {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, 500*time.Millisecond)
		}
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
		if c.userAgent != "itick-stream/test" {
			t.Errorf("userAgent = %q", c.userAgent)
		}
	})

	t.Run("nil logger keeps default", func(t *testing.T) {
		c := NewClient("https://api.example.com", "", WithLogger(nil))
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("with custom HTTP client", func(t *testing.T) {
		customClient := &http.Client{Timeout: 10 * time.Second}
		c := NewClient("https://api.example.com", "", WithHTTPClient(customClient))
		if c.httpClient != customClient {
			t.Error("custom HTTP client not set")
		}
	})

	t.Run("nil HTTP client ignored", func(t *testing.T) {
		c := NewClient("https://api.example.com", "", WithHTTPClient(nil))
		if c.httpClient == nil {
			t.Error("httpClient should not be nil")
		}
	})

	t.Run("base URL normalised", func(t *testing.T) {
		if c := NewClient("", "key"); c.baseURL != DefaultBaseURL {
			t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultBaseURL)
		}
		if c := NewClient("https://api.itick.org/", "key"); c.baseURL != "https://api.itick.org" {
			t.Errorf("baseURL = %q, want trailing slash trimmed", c.baseURL)
		}
	})

	t.Run("negative retries disable retrying", func(t *testing.T) {
		c := NewClient("https://api.example.com", "", WithRetries(-2, time.Second))
		if c.maxRetries != 0 {
			t.Errorf("maxRetries = %d, want 0", c.maxRetries)
		}
	})
}

// TestAPIError tests the APIError type.
func TestAPIError(t *testing.T) {
	t.Run("Error method", func(t *testing.T) {
		err := &APIError{StatusCode: 404, Message: "Not Found"}
		expected := "itick api error 404: Not Found"
		if err.Error() != expected {
			t.Errorf("Error() = %q, want %q", err.Error(), expected)
		}
	})

	t.Run("IsRetryable", func(t *testing.T) {
		tests := []struct {
			code     int
			expected bool
		}{
			{500, true},
			{502, true},
			{503, true},
			{429, true},
			{400, false},
			{401, false},
			{404, false},
			{499, false},
		}

		for _, tt := range tests {
			err := &APIError{StatusCode: tt.code}
			if got := err.IsRetryable(); got != tt.expected {
				t.Errorf("IsRetryable() for status %d = %v, want %v", tt.code, got, tt.expected)
			}
		}
	})
}

// TestDoRequest tests the HTTP request functionality.
func TestDoRequest(t *testing.T) {
	t.Run("sends token and accept headers", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("accept") != "application/json" {
				t.Errorf("accept header = %q, want %q", r.Header.Get("accept"), "application/json")
			}
			if r.Header.Get("token") != "test-token" {
				t.Errorf("token header = %q, want %q", r.Header.Get("token"), "test-token")
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"code":0}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "test-token")
		body, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"code":0}` {
			t.Errorf("body = %q, want %q", string(body), `{"code":0}`)
		}
	})

	t.Run("request without token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("token") != "" {
				t.Errorf("token header should be empty, got %q", r.Header.Get("token"))
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		c := NewClient(server.URL, "")
		if _, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("4xx error returns APIError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`invalid token`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "bad")
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.StatusCode != 401 {
			t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, 401)
		}
		if !strings.Contains(string(apiErr.Body), "invalid token") {
			t.Errorf("Body should contain 'invalid token', got %q", string(apiErr.Body))
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		c := NewClient(server.URL, "key")
		ctx, cancel := context.WithCancel(context.Background())
		cancel() // Cancel immediately

		_, err := c.doRequest(ctx, http.MethodGet, "/test", nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "context canceled") {
			t.Errorf("error should contain 'context canceled', got %v", err)
		}
	})
}

// TestDoWithRetry tests the retry logic.
func TestDoWithRetry(t *testing.T) {
	t.Run("retries on 5xx and succeeds", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := atomic.AddInt32(&attempts, 1)
			if n < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"code":0}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "key", WithRetries(3, 10*time.Millisecond))
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := atomic.LoadInt32(&attempts); got != 3 {
			t.Errorf("attempts = %d, want 3", got)
		}
	})

	t.Run("retries on 429 and succeeds", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&attempts, 1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		c := NewClient(server.URL, "key", WithRetries(3, 10*time.Millisecond))
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := atomic.LoadInt32(&attempts); got != 2 {
			t.Errorf("attempts = %d, want 2", got)
		}
	})

	t.Run("does not retry on 4xx (except 429)", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		c := NewClient(server.URL, "key", WithRetries(3, 10*time.Millisecond))
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil); err == nil {
			t.Fatal("expected error, got nil")
		}
		if got := atomic.LoadInt32(&attempts); got != 1 {
			t.Errorf("attempts = %d, want 1", got)
		}
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, "key", WithRetries(2, 10*time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "max retries exceeded") {
			t.Errorf("error should contain 'max retries exceeded', got %v", err)
		}
		// 1 initial + 2 retries = 3 attempts
		if got := atomic.LoadInt32(&attempts); got != 3 {
			t.Errorf("attempts = %d, want 3", got)
		}
	})

	t.Run("zero backoff retries immediately", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		c := NewClient(server.URL, "key", WithRetries(1, 0))
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil); err == nil {
			t.Fatal("expected error, got nil")
		}
		if got := atomic.LoadInt32(&attempts); got != 2 {
			t.Errorf("attempts = %d, want 2", got)
		}
	})
}

func TestGetTick(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stock/tick" {
			t.Errorf("path = %q, want /stock/tick", r.URL.Path)
		}
		if r.URL.Query().Get("region") != "HK" {
			t.Errorf("region = %q, want HK", r.URL.Query().Get("region"))
		}
		if r.URL.Query().Get("code") != "700" {
			t.Errorf("code = %q, want 700", r.URL.Query().Get("code"))
		}
		w.Write([]byte(`{"code":0,"msg":null,"data":{"s":"700","ld":385.4,"t":1700000000000}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "key")
	resp, err := c.GetTick(context.Background(), Instrument{Category: "stock", Region: "HK", Code: "700"})
	if err != nil {
		t.Fatalf("GetTick failed: %v", err)
	}
	if !strings.Contains(string(resp.Data), `"ld":385.4`) {
		t.Errorf("Data = %s, want raw tick payload", resp.Data)
	}
}

func TestGetQuoteAndDepthPaths(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write([]byte(`{"code":0,"data":{}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "key")
	in := Instrument{Category: "forex", Region: "GB", Code: "EURUSD"}
	if _, err := c.GetQuote(context.Background(), in); err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if _, err := c.GetDepth(context.Background(), in); err != nil {
		t.Fatalf("GetDepth failed: %v", err)
	}

	if len(paths) != 2 || paths[0] != "/forex/quote" || paths[1] != "/forex/depth" {
		t.Errorf("paths = %v, want [/forex/quote /forex/depth]", paths)
	}
}

func TestGetKline(t *testing.T) {
	end := time.UnixMilli(1700000000000)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/crypto/kline" {
			t.Errorf("path = %q, want /crypto/kline", r.URL.Path)
		}
		if q.Get("kType") != "8" {
			t.Errorf("kType = %q, want 8", q.Get("kType"))
		}
		if q.Get("et") != "1700000000000" {
			t.Errorf("et = %q, want 1700000000000", q.Get("et"))
		}
		if q.Get("limit") != "50" {
			t.Errorf("limit = %q, want 50", q.Get("limit"))
		}
		w.Write([]byte(`{"code":0,"data":[]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "key")
	_, err := c.GetKline(context.Background(),
		Instrument{Category: "crypto", Region: "BA", Code: "BTCUSDT"},
		GetKlineOptions{KType: KType1Day, End: end, Limit: 50},
	)
	if err != nil {
		t.Fatalf("GetKline failed: %v", err)
	}
}

func TestGetKline_RequiresKType(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "key")
	_, err := c.GetKline(context.Background(), Instrument{Category: "stock", Code: "700"}, GetKlineOptions{})
	if err == nil {
		t.Error("expected error for missing ktype")
	}
}

func TestSnapshot_RequiresInstrument(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "key")
	if _, err := c.GetTick(context.Background(), Instrument{Region: "HK"}); err == nil {
		t.Error("expected error for missing category and code")
	}
}

func TestGet_NonZeroCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":1003,"msg":"invalid token","data":null}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "key")
	_, err := c.GetTick(context.Background(), Instrument{Category: "stock", Region: "HK", Code: "700"})

	var codeErr *CodeError
	if !errors.As(err, &codeErr) {
		t.Fatalf("expected *CodeError, got %v", err)
	}
	if codeErr.Code != 1003 || codeErr.Msg != "invalid token" {
		t.Errorf("CodeError = %+v", codeErr)
	}
}

func TestGet_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "key")
	_, err := c.GetTick(context.Background(), Instrument{Category: "stock", Code: "700"})
	if err == nil || !strings.Contains(err.Error(), "unmarshal response") {
		t.Errorf("expected unmarshal error, got %v", err)
	}
}
