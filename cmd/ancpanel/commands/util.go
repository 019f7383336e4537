package commands

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/haivivi/ancpanel/pkg/ancapi"
	"github.com/haivivi/ancpanel/pkg/ancrealtime"
	"github.com/haivivi/ancpanel/pkg/cli"
	"github.com/haivivi/ancpanel/pkg/credstore"
)

// settings is the effective connection configuration after applying, in
// order of precedence: flags, the selected context, environment variables
// and built-in defaults.
type settings struct {
	Context        string
	BaseURL        string
	WSURL          string
	APIKey         string
	Timeout        time.Duration
	Reconnects     int
	ReconnectDelay time.Duration
	Store          string
}

func resolveSettings() (*settings, error) {
	s := &settings{
		BaseURL:        ancapi.DefaultBaseURL,
		WSURL:          ancrealtime.DefaultURL,
		Timeout:        ancapi.DefaultTimeout,
		Reconnects:     ancrealtime.DefaultReconnectAttempts,
		ReconnectDelay: ancrealtime.DefaultReconnectDelay,
		Store:          cli.CredentialStoreBadger,
	}

	var actx *cli.Context
	if cfg, err := getConfig(); err == nil {
		if actx, err = cfg.ResolveContext(contextName); err != nil {
			return nil, err
		}
	} else if contextName != "" {
		return nil, err
	}

	if actx != nil {
		s.Context = actx.Name
		setIf(&s.BaseURL, actx.BaseURL)
		setIf(&s.WSURL, actx.WSURL)
		setIf(&s.APIKey, actx.APIKey)
		if actx.Timeout > 0 {
			s.Timeout = actx.TimeoutDuration()
		}
		if actx.MaxRetries > 0 {
			s.Reconnects = actx.MaxRetries
		}
		d, err := actx.ReconnectDelay()
		if err != nil {
			return nil, err
		}
		if d > 0 {
			s.ReconnectDelay = d
		}
		s.Store = actx.CredentialStore()
	} else {
		setIf(&s.BaseURL, os.Getenv(EnvAPIURL))
		setIf(&s.WSURL, os.Getenv(EnvWSURL))
		setIf(&s.APIKey, os.Getenv(EnvAPIKey))
	}

	setIf(&s.BaseURL, apiURL)
	setIf(&s.WSURL, wsURL)
	setIf(&s.APIKey, apiKeyFlag)
	return s, nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// openStore opens the credential store selected by the settings.
func openStore(s *settings) (credstore.Store, error) {
	switch s.Store {
	case cli.CredentialStoreBadger:
		paths, err := cli.NewPaths()
		if err != nil {
			return nil, err
		}
		dir := paths.CredentialsDir(s.Context)
		if err := cli.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create credentials directory: %w", err)
		}
		return credstore.NewBadger(credstore.BadgerOptions{Dir: dir, Logger: slog.Default()})
	case cli.CredentialStoreKeyring:
		service := credstore.DefaultService
		if s.Context != "" {
			service += "/" + s.Context
		}
		return credstore.NewKeyring(service), nil
	case cli.CredentialStoreNone:
		return credstore.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown credential store %q", s.Store)
}

// newAPIClient creates a REST client. The credential store is opened only
// while the key is read or written, so long-running commands such as watch
// do not hold the badger directory lock.
func newAPIClient() (*ancapi.Client, error) {
	s, err := resolveSettings()
	if err != nil {
		return nil, err
	}
	store := credstore.NewOnDemand(func() (credstore.Store, error) {
		return openStore(s)
	})

	opts := []ancapi.Option{
		ancapi.WithTimeout(s.Timeout),
		ancapi.WithCredentialStore(store),
		ancapi.WithLogger(slog.Default()),
	}
	if s.APIKey != "" {
		opts = append(opts, ancapi.WithAPIKey(s.APIKey))
	}
	client := ancapi.NewClient(s.BaseURL, opts...)
	slog.Debug("api client", "base_url", client.BaseURL(), "context", s.Context, "store", s.Store)
	return client, nil
}

// newRealtimeClient creates a realtime client sharing the REST client's
// API key.
func newRealtimeClient(api *ancapi.Client, opts ...ancrealtime.Option) (*ancrealtime.Client, error) {
	s, err := resolveSettings()
	if err != nil {
		return nil, err
	}
	base := []ancrealtime.Option{
		ancrealtime.WithReconnect(s.Reconnects, s.ReconnectDelay),
		ancrealtime.WithLogger(slog.Default()),
	}
	if key := api.APIKey(); key != "" {
		base = append(base, ancrealtime.WithAPIKey(key))
	}
	return ancrealtime.NewClient(s.WSURL, append(base, opts...)...), nil
}

// outputResult writes result honoring --json, --jq and -o.
func outputResult(result any) error {
	format := cli.FormatYAML
	if outputJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{
		Format: format,
		Query:  jqQuery,
		File:   outputFile,
	})
}

// requestBody loads the request body from -f or the --data flag.
func requestBody(inline string) (map[string]any, error) {
	return cli.RequestBody(inputFile, inline)
}
