package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/haivivi/ancpanel/pkg/cli"
)

// Environment variables consulted when neither a flag nor the context sets
// a value.
const (
	EnvAPIURL = "ANC_API_URL"
	EnvWSURL  = "ANC_WS_URL"
	EnvAPIKey = "ANC_API_KEY"
)

var (
	// Global flags
	cfgFile     string
	envFile     string
	contextName string
	outputFile  string
	inputFile   string
	outputJSON  bool
	jqQuery     string
	verbose     bool
	apiURL      string
	wsURL       string
	apiKeyFlag  string

	globalConfig *cli.Config

	// logOutput is where slog writes; watch swaps it for a frame section.
	logOutput io.Writer = os.Stderr
)

var rootCmd = &cobra.Command{
	Use:   "ancpanel",
	Short: "ANC control panel CLI",
	Long: `ancpanel - a command line control panel for an Active Noise Cancellation backend.

It talks to the backend's REST API for status, settings and notifications and
to its realtime endpoint for streaming audio through a processing session.

Configuration is stored in ~/.ancpanel/ and supports multiple contexts,
similar to kubectl's context management. Without a context, ANC_API_URL,
ANC_WS_URL and ANC_API_KEY are used (a .env file in the working directory
is loaded first).

Examples:
  # Set up a context
  ancpanel config add-context lab --base-url http://lab:5000 --ws-url ws://lab:5000

  # Show status and set intensity to 75%
  ancpanel anc status
  ancpanel anc intensity 75

  # Live panel
  ancpanel watch
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command returns the root cobra command.
func Command() *cobra.Command {
	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.ancpanel/config.yaml)")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file loaded at startup, if present")
	pf.StringVarP(&contextName, "context", "c", "", "context name to use")
	pf.StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	pf.StringVarP(&inputFile, "file", "f", "", "input request file (YAML or JSON, - for stdin)")
	pf.BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	pf.StringVar(&jqQuery, "jq", "", "jq expression applied to the output")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&apiURL, "api-url", "", "REST base URL (overrides context and "+EnvAPIURL+")")
	pf.StringVar(&wsURL, "ws-url", "", "realtime URL (overrides context and "+EnvWSURL+")")
	pf.StringVar(&apiKeyFlag, "api-key", "", "API key (overrides context, store and "+EnvAPIKey+")")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(ancCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(audioCmd)
	rootCmd.AddCommand(systemCmd)
	rootCmd.AddCommand(apikeyCmd)
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(watchCmd)
}

func initConfig() {
	setupLogger(logOutput)

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to load env file", "file", envFile, "error", err)
		}
	}

	var err error
	globalConfig, err = cli.LoadConfigWithPath(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config: %v\n", err)
	}
}

func setupLogger(w io.Writer) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})))
}

// getConfig returns the global configuration.
func getConfig() (*cli.Config, error) {
	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return globalConfig, nil
}
