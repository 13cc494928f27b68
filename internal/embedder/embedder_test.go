package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func embedHandler(calls *atomic.Int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := embedResponse{}
		resp.Data = append(resp.Data, struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}{Embedding: []float32{0.1, 0.2, 0.3}})
		json.NewEncoder(w).Encode(resp)
	}
}

func newTestClient(t *testing.T, baseURL string, retries int) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:    baseURL,
		Model:      "test-model",
		Timeout:    2 * time.Second,
		MaxRetries: retries,
		CacheSize:  16,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestEmbed_RoundTrip(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(embedHandler(&calls))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	vec, err := c.Embed(context.Background(), "The rating is 3 stars")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Fatalf("unexpected vector %v", vec)
	}
}

func TestEmbed_CacheHitsOnNormalizedText(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(embedHandler(&calls))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	ctx := context.Background()
	if _, err := c.Embed(ctx, "The rating is 3 stars"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	// Case and whitespace variants normalize to the same cache key.
	if _, err := c.Embed(ctx, "  the RATING is   3 stars "); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("API called %d times, want 1", got)
	}
}

func TestEmbed_EmptyText(t *testing.T) {
	c := newTestClient(t, "http://unused", 0)
	if _, err := c.Embed(context.Background(), "   "); err != ErrEmptyText {
		t.Fatalf("got %v, want ErrEmptyText", err)
	}
}

func TestEmbed_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int64
	var ok atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "transient", http.StatusInternalServerError)
			return
		}
		embedHandler(&ok).ServeHTTP(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	if _, err := c.Embed(context.Background(), "retry me"); err != nil {
		t.Fatalf("Embed after retry: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("API called %d times, want 2", calls.Load())
	}
}

func TestEmbed_ExhaustedRetriesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 1)
	if _, err := c.Embed(context.Background(), "always fails"); err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
}

func TestEmbed_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := c.Embed(ctx, "cancel me"); err == nil {
		t.Fatal("expected an error when the context expires mid-retry")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello World", "hello world"},
		{"  spaced   OUT  ", "spaced out"},
		{"already normal", "already normal"},
		{"\tTabs\nand newlines\n", "tabs and newlines"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
