package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/richxcame/scamshield/pkg/resilience"
)

func TestNewClient(t *testing.T) {
	c := NewClient("https://api.example.com")
	if c.baseURL != "https://api.example.com" {
		t.Errorf("baseURL = %q", c.baseURL)
	}
	if c.httpClient.Timeout != defaultTimeout {
		t.Errorf("timeout = %v, want %v", c.httpClient.Timeout, defaultTimeout)
	}

	c = NewClient("", 3*time.Second, time.Minute)
	if c.httpClient.Timeout != 3*time.Second {
		t.Errorf("timeout = %v, want 3s", c.httpClient.Timeout)
	}

	c = NewClient("", 0)
	if c.httpClient.Timeout != defaultTimeout {
		t.Errorf("zero timeout should use default, got %v", c.httpClient.Timeout)
	}
}

func TestWithDefaultRetry(t *testing.T) {
	c := NewClient("https://api.example.com").With(WithDefaultRetry())
	if c.retryConfig == nil {
		t.Fatal("retryConfig is nil after WithDefaultRetry")
	}
	if c.retryConfig.RetryableChecker == nil {
		t.Error("RetryableChecker should be set")
	}
}

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			if r.Header.Get("X-Api-Key") != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"claims":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("not found"))
		}
	}))
	defer server.Close()

	c := NewClient(server.URL)

	body, err := c.Get(context.Background(), "/ok", map[string]string{"X-Api-Key": "secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"claims":[]}` {
		t.Errorf("body = %s", body)
	}

	_, err = c.Get(context.Background(), "/missing", nil)
	if StatusCode(err) != http.StatusNotFound {
		t.Errorf("expected 404 HTTPError, got %v", err)
	}
}

func TestClient_GetAbsoluteURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	c := NewClient("http://unused.invalid")
	if _, err := c.Get(context.Background(), server.URL+"/user/alice", nil); err != nil {
		t.Fatalf("absolute URL should bypass baseURL: %v", err)
	}
}

func TestClient_PostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		json.NewEncoder(w).Encode(map[string]interface{}{"echo": in["text"], "probability": 0.7})
	}))
	defer server.Close()

	var out struct {
		Echo        string  `json:"echo"`
		Probability float64 `json:"probability"`
	}
	err := NewClient(server.URL).PostJSON(context.Background(), "/classify", map[string]string{"text": "hi"}, nil, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Echo != "hi" || out.Probability != 0.7 {
		t.Errorf("unexpected response %+v", out)
	}
}

func TestHTTPError(t *testing.T) {
	err := &HTTPError{StatusCode: 503, Body: ""}
	if err.Error() != "HTTP 503: " {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestIsHTTPRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"500", &HTTPError{StatusCode: 500}, true},
		{"429", &HTTPError{StatusCode: 429}, true},
		{"404", &HTTPError{StatusCode: 404}, false},
		{"400", &HTTPError{StatusCode: 400}, false},
		{"transport", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isHTTPRetryable(tt.err); got != tt.expected {
				t.Errorf("isHTTPRetryable(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(server.URL).Get(ctx, "/slow", nil)
	if err == nil {
		t.Fatal("expected error due to context deadline")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Logf("error: %v", err)
	}
}

func TestClient_Get_WithRetry(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	c := NewClient(server.URL).With(WithRetry(resilience.RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    5 * time.Millisecond,
		MaxBackoff:        20 * time.Millisecond,
		BackoffMultiplier: 2,
		RetryableChecker:  isHTTPRetryable,
	}))

	body, err := c.Get(context.Background(), "/retry", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(body), "success") {
		t.Errorf("body = %s", body)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestClient_BreakerOpensOnRepeatedFailures(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	breaker := resilience.NewCircuitBreaker(resilience.Settings{Name: "httpclient-test", FailureThreshold: 2, Timeout: time.Minute}, nil)
	c := NewClient(server.URL).With(WithBreaker(breaker))

	for i := 0; i < 4; i++ {
		_, _ = c.Get(context.Background(), "/", nil)
	}
	_, err := c.Get(context.Background(), "/", nil)

	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Errorf("server hits = %d, want 2", hits)
	}
}
