package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

const (
	// DefaultBaseDir is the configuration directory under the home directory.
	DefaultBaseDir = ".ancpanel"
	// DefaultConfigFile is the configuration filename.
	DefaultConfigFile = "config.yaml"
)

// Extra keys understood by the ancpanel command.
const (
	ExtraReconnectDelay  = "reconnect_delay"
	ExtraCredentialStore = "credential_store"
)

// Credential store kinds for ExtraCredentialStore.
const (
	CredentialStoreBadger  = "badger"
	CredentialStoreKeyring = "keyring"
	CredentialStoreNone    = "none"
)

// Config is the on-disk configuration.
type Config struct {
	// CurrentContext is the name of the active context.
	CurrentContext string `yaml:"current_context,omitempty" json:"current_context,omitempty"`

	// Contexts maps context names to backend settings.
	Contexts map[string]*Context `yaml:"contexts,omitempty" json:"contexts,omitempty"`

	configPath string
}

// Context is the connection settings for one ANC backend.
type Context struct {
	Name string `yaml:"name" json:"name"`

	// BaseURL is the REST base URL, e.g. http://localhost:5000.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// WSURL is the realtime server URL, e.g. ws://localhost:5000.
	WSURL string `yaml:"ws_url,omitempty" json:"ws_url,omitempty"`

	// APIKey is sent as X-API-Key. It may be left empty when the key lives
	// in the credential store.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	// Timeout is the REST request timeout in seconds.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// MaxRetries is the number of realtime reconnection attempts.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`

	Extra map[string]string `yaml:"extra,omitempty" json:"extra,omitempty"`
}

// LoadConfig loads ~/.ancpanel/config.yaml, creating it when missing.
func LoadConfig() (*Config, error) {
	return LoadConfigWithPath("")
}

// LoadConfigWithPath loads configuration from path, or from the default
// location when path is empty.
func LoadConfigWithPath(path string) (*Config, error) {
	if path == "" {
		paths, err := NewPaths()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = paths.ConfigFile()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := &Config{
		Contexts:   make(map[string]*Context),
		configPath: path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	for name, c := range cfg.Contexts {
		c.Name = name
	}
	cfg.configPath = path
	return cfg, nil
}

// Save writes the configuration to disk.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.configPath
}

// AddContext adds or replaces a context.
func (c *Config) AddContext(name string, ctx *Context) error {
	ctx.Name = name
	c.Contexts[name] = ctx
	return c.Save()
}

// DeleteContext removes a context. Deleting the current context unsets it.
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext sets the current context.
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// GetContext returns the named context.
func (c *Config) GetContext(name string) (*Context, error) {
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}

// ResolveContext returns the named context, the current context when name
// is empty, or nil without error when neither is set.
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name == "" {
		name = c.CurrentContext
	}
	if name == "" {
		return nil, nil
	}
	return c.GetContext(name)
}

// ListContexts returns context names in sorted order.
func (c *Config) ListContexts() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// GetExtra returns an extra value.
func (ctx *Context) GetExtra(key string) string {
	if ctx.Extra == nil {
		return ""
	}
	return ctx.Extra[key]
}

// SetExtra sets an extra value.
func (ctx *Context) SetExtra(key, value string) {
	if ctx.Extra == nil {
		ctx.Extra = make(map[string]string)
	}
	ctx.Extra[key] = value
}

// TimeoutDuration returns Timeout as a duration, or 0 when unset.
func (ctx *Context) TimeoutDuration() time.Duration {
	return time.Duration(ctx.Timeout) * time.Second
}

// ReconnectDelay parses the reconnect_delay extra, e.g. "500ms". It
// returns 0 when unset.
func (ctx *Context) ReconnectDelay() (time.Duration, error) {
	v := ctx.GetExtra(ExtraReconnectDelay)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", ExtraReconnectDelay, v, err)
	}
	return d, nil
}

// CredentialStore returns the credential_store extra, defaulting to
// CredentialStoreBadger.
func (ctx *Context) CredentialStore() string {
	if v := strings.ToLower(ctx.GetExtra(ExtraCredentialStore)); v != "" {
		return v
	}
	return CredentialStoreBadger
}

// MaskAPIKey masks the API key for display.
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
