package ancapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/haivivi/ancpanel/pkg/credstore"
)

const (
	// DefaultBaseURL is the backend address used when none is configured.
	DefaultBaseURL = "http://localhost:5000"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// APIKeyName is the credential store entry holding the API key.
	APIKeyName = "api_key"
)

// Client is the ANC REST API client. It is safe for concurrent use.
type Client struct {
	config *clientConfig

	mu     sync.RWMutex
	apiKey string
}

type clientConfig struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	store      credstore.Store
	apiKey     string
}

// Option is a function that configures the client.
type Option func(*clientConfig)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithLogger sets the logger used for request errors.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithCredentialStore persists the API key in store. The stored key is
// loaded by NewClient and replaced by SetAPIKey.
func WithCredentialStore(store credstore.Store) Option {
	return func(c *clientConfig) {
		c.store = store
	}
}

// WithAPIKey sets the initial API key, taking precedence over a stored one.
func WithAPIKey(key string) Option {
	return func(c *clientConfig) {
		c.apiKey = key
	}
}

// NewClient creates a client for the backend at baseURL. An empty baseURL
// selects DefaultBaseURL.
//
// Example:
//
//	client := ancapi.NewClient("http://localhost:5000")
//	client := ancapi.NewClient(url, ancapi.WithTimeout(5*time.Second))
func NewClient(baseURL string, opts ...Option) *Client {
	cfg := &clientConfig{
		baseURL: baseURL,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.baseURL == "" {
		cfg.baseURL = DefaultBaseURL
	}
	cfg.baseURL = strings.TrimSuffix(cfg.baseURL, "/")
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: cfg.timeout}
	}

	c := &Client{config: cfg, apiKey: cfg.apiKey}
	if c.apiKey == "" && cfg.store != nil {
		key, err := cfg.store.Get(context.Background(), APIKeyName)
		switch {
		case err == nil:
			c.apiKey = key
		case !errors.Is(err, credstore.ErrNotFound):
			cfg.logger.Warn("failed to load api key", "error", err)
		}
	}
	return c
}

// SetAPIKey replaces the API key and persists it to the credential store,
// if one is configured. The in-memory key is updated even when persisting
// fails.
func (c *Client) SetAPIKey(ctx context.Context, key string) error {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()

	if c.config.store == nil {
		return nil
	}
	if err := c.config.store.Set(ctx, APIKeyName, key); err != nil {
		c.config.logger.Error("API Error", "error", err)
		return fmt.Errorf("ancapi: persist api key: %w", err)
	}
	return nil
}

// APIKey returns the current API key.
func (c *Client) APIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.config.baseURL
}
