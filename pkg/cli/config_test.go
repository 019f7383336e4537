package cli

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func loadTestConfig(t *testing.T) (*Config, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ancpanel", "config.yaml")
	cfg, err := LoadConfigWithPath(path)
	if err != nil {
		t.Fatalf("LoadConfigWithPath error: %v", err)
	}
	return cfg, path
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", ""},
		{"1234", "****"},
		{"12345678", "********"},
		{"123456789", "1234*6789"},
		{"anc-1234567890abcd", "anc-**********abcd"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := MaskAPIKey(tt.key); got != tt.want {
				t.Errorf("MaskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestLoadConfigWithPath_NewConfig(t *testing.T) {
	cfg, path := loadTestConfig(t)

	if cfg.Contexts == nil {
		t.Error("Contexts should be initialized")
	}
	if cfg.Path() != path {
		t.Errorf("Path() = %q, want %q", cfg.Path(), path)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("Config file should be created")
	}
}

func TestConfig_RoundTrip(t *testing.T) {
	cfg, path := loadTestConfig(t)

	err := cfg.AddContext("lab", &Context{
		BaseURL:    "http://lab:5000",
		WSURL:      "ws://lab:5000",
		APIKey:     "lab-key",
		Timeout:    15,
		MaxRetries: 3,
		Extra: map[string]string{
			ExtraReconnectDelay:  "250ms",
			ExtraCredentialStore: "keyring",
		},
	})
	if err != nil {
		t.Fatalf("AddContext error: %v", err)
	}
	if err := cfg.UseContext("lab"); err != nil {
		t.Fatalf("UseContext error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	for _, want := range []string{"current_context: lab", "ws_url: ws://lab:5000", "max_retries: 3"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("config file missing %q:\n%s", want, data)
		}
	}

	loaded, err := LoadConfigWithPath(path)
	if err != nil {
		t.Fatalf("LoadConfigWithPath error: %v", err)
	}
	ctx, err := loaded.ResolveContext("")
	if err != nil {
		t.Fatalf("ResolveContext error: %v", err)
	}
	if ctx.Name != "lab" || ctx.BaseURL != "http://lab:5000" || ctx.APIKey != "lab-key" {
		t.Errorf("context = %+v", ctx)
	}
	if ctx.TimeoutDuration() != 15*time.Second {
		t.Errorf("TimeoutDuration() = %v", ctx.TimeoutDuration())
	}
	if d, err := ctx.ReconnectDelay(); err != nil || d != 250*time.Millisecond {
		t.Errorf("ReconnectDelay() = %v, %v", d, err)
	}
	if ctx.CredentialStore() != CredentialStoreKeyring {
		t.Errorf("CredentialStore() = %q", ctx.CredentialStore())
	}
}

func TestConfig_DeleteContext(t *testing.T) {
	cfg, _ := loadTestConfig(t)
	cfg.AddContext("ctx1", &Context{APIKey: "key1"})
	cfg.AddContext("ctx2", &Context{APIKey: "key2"})
	cfg.UseContext("ctx1")

	if err := cfg.DeleteContext("ctx2"); err != nil {
		t.Fatalf("DeleteContext error: %v", err)
	}
	if _, ok := cfg.Contexts["ctx2"]; ok {
		t.Error("Context should be deleted")
	}

	if err := cfg.DeleteContext("ctx1"); err != nil {
		t.Fatalf("DeleteContext error: %v", err)
	}
	if cfg.CurrentContext != "" {
		t.Errorf("CurrentContext should be cleared, got %q", cfg.CurrentContext)
	}

	if err := cfg.DeleteContext("nonexistent"); err == nil {
		t.Error("DeleteContext should fail for non-existent context")
	}
}

func TestConfig_ResolveContext(t *testing.T) {
	cfg, _ := loadTestConfig(t)

	ctx, err := cfg.ResolveContext("")
	if err != nil || ctx != nil {
		t.Errorf("ResolveContext with nothing set = %v, %v", ctx, err)
	}

	cfg.AddContext("a", &Context{BaseURL: "http://a"})
	cfg.AddContext("b", &Context{BaseURL: "http://b"})
	cfg.UseContext("a")

	if ctx, _ := cfg.ResolveContext(""); ctx == nil || ctx.Name != "a" {
		t.Errorf("ResolveContext(\"\") = %+v", ctx)
	}
	if ctx, _ := cfg.ResolveContext("b"); ctx == nil || ctx.Name != "b" {
		t.Errorf("ResolveContext(b) = %+v", ctx)
	}
	if _, err := cfg.ResolveContext("missing"); err == nil {
		t.Error("ResolveContext should fail for non-existent context")
	}
	if got := cfg.ListContexts(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("ListContexts() = %v", got)
	}
	if err := cfg.UseContext("missing"); err == nil {
		t.Error("UseContext should fail for non-existent context")
	}
}

func TestContext_Extra(t *testing.T) {
	ctx := &Context{Name: "test"}

	if got := ctx.GetExtra("key"); got != "" {
		t.Errorf("GetExtra on nil map = %q, want empty string", got)
	}
	if d, err := ctx.ReconnectDelay(); err != nil || d != 0 {
		t.Errorf("ReconnectDelay() unset = %v, %v", d, err)
	}
	if ctx.CredentialStore() != CredentialStoreBadger {
		t.Errorf("CredentialStore() default = %q", ctx.CredentialStore())
	}

	ctx.SetExtra(ExtraReconnectDelay, "soon")
	if _, err := ctx.ReconnectDelay(); err == nil {
		t.Error("ReconnectDelay should fail for invalid duration")
	}
}

func TestPaths(t *testing.T) {
	p := &Paths{HomeDir: "/home/test"}

	tests := []struct {
		got, want string
	}{
		{p.BaseDir(), "/home/test/.ancpanel"},
		{p.ConfigFile(), "/home/test/.ancpanel/config.yaml"},
		{p.DataDir(), "/home/test/.ancpanel/data"},
		{p.CredentialsDir("lab"), "/home/test/.ancpanel/data/credentials/lab"},
		{p.CredentialsDir(""), "/home/test/.ancpanel/data/credentials/default"},
	}
	for _, tt := range tests {
		if tt.got != filepath.FromSlash(tt.want) {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}

	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir error: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("EnsureDir did not create %s", dir)
	}
}
