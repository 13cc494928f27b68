// Package embedder wraps the external text-embedding service: an
// OpenAI-compatible HTTP endpoint fronted by a normalized-text LRU
// cache. The embedding call is the engine's only network operation;
// it is bounded, cancellable, and retryable, and callers degrade to
// lexical-only matching on failure.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// #region errors

// ErrEmptyText is returned when the normalized input is empty.
var ErrEmptyText = fmt.Errorf("embed: empty text")

// #endregion errors

// #region config

// Config holds embedding service settings.
type Config struct {
	BaseURL        string        // OpenAI-compatible root, e.g. http://localhost:11434/v1
	APIKey         string        // optional bearer token
	Model          string        // embedding model name
	Timeout        time.Duration // per-request bound
	MaxRetries     int           // attempts beyond the first
	CacheSize      int           // LRU entries; the cache is lossy by design
	MaxInputTokens int           // inputs are truncated to this many tokens
}

// DefaultConfig returns service defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://api.openai.com/v1",
		Model:          "text-embedding-3-small",
		Timeout:        10 * time.Second,
		MaxRetries:     2,
		CacheSize:      10000,
		MaxInputTokens: 8000,
	}
}

// #endregion config

// #region client

// Client is the embedding service adapter. Safe for concurrent use;
// independent engine instances share one client and its cache.
type Client struct {
	config     Config
	httpClient *http.Client
	cache      *lru.Cache[string, []float32]
	encoder    *tiktoken.Tiktoken
	log        *zap.Logger
}

// NewClient creates a Client. Tokenizer setup failure disables
// truncation but is not fatal.
func NewClient(config Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.CacheSize <= 0 {
		config.CacheSize = def.CacheSize
	}
	if config.MaxInputTokens <= 0 {
		config.MaxInputTokens = def.MaxInputTokens
	}

	cache, err := lru.New[string, []float32](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embed cache: %w", err)
	}

	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.Warn("tokenizer unavailable, long inputs are sent untruncated", zap.Error(err))
		encoder = nil
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		cache:      cache,
		encoder:    encoder,
		log:        log,
	}, nil
}

// #endregion client

// #region normalize

// Normalize collapses whitespace and lowercases text. Embeddings are
// deterministic for normalized-identical input, so this is also the
// cache key.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// #endregion normalize

// #region embed

// Embed returns the embedding for text, serving repeats from the cache.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Normalize(text)
	if key == "" {
		return nil, ErrEmptyText
	}
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	input := c.truncate(key)

	var vec []float32
	var err error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		vec, err = c.callAPI(ctx, input)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("embed after %d attempts: %w", c.config.MaxRetries+1, err)
	}

	c.cache.Add(key, vec)
	return vec, nil
}

// truncate trims the input to the configured token limit.
func (c *Client) truncate(text string) string {
	if c.encoder == nil {
		return text
	}
	tokens := c.encoder.Encode(text, nil, nil)
	if len(tokens) <= c.config.MaxInputTokens {
		return text
	}
	c.log.Debug("truncating embed input",
		zap.Int("tokens", len(tokens)),
		zap.Int("limit", c.config.MaxInputTokens))
	return c.encoder.Decode(tokens[:c.config.MaxInputTokens])
}

// #endregion embed

// #region http

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// callAPI performs one embeddings request.
func (c *Client) callAPI(ctx context.Context, input string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Input: []string{input}, Model: c.config.Model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.config.BaseURL, "/")+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("embed status %d: %s", resp.StatusCode, string(msg))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embed response carried no vector")
	}
	return parsed.Data[0].Embedding, nil
}

// #endregion http
