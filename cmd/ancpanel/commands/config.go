package commands

import (
	"fmt"
	"maps"

	"github.com/spf13/cobra"

	"github.com/haivivi/ancpanel/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage ancpanel configuration.

Configuration is stored in ~/.ancpanel/config.yaml.
Multiple contexts can be defined for different backends.`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context describing one ANC backend.

Examples:
  ancpanel config add-context local
  ancpanel config add-context lab --base-url http://lab:5000 --ws-url ws://lab:5000 --max-retries 10
  ancpanel config add-context lab --credential-store keyring --reconnect-delay 500ms`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		f := cmd.Flags()
		ctx := &cli.Context{}
		ctx.BaseURL, _ = f.GetString("base-url")
		ctx.WSURL, _ = f.GetString("ws-url")
		ctx.APIKey, _ = f.GetString("key")
		ctx.Timeout, _ = f.GetInt("timeout")
		ctx.MaxRetries, _ = f.GetInt("max-retries")

		if v, _ := f.GetString("reconnect-delay"); v != "" {
			ctx.SetExtra(cli.ExtraReconnectDelay, v)
			if _, err := ctx.ReconnectDelay(); err != nil {
				return err
			}
		}
		if v, _ := f.GetString("credential-store"); v != "" {
			switch v {
			case cli.CredentialStoreBadger, cli.CredentialStoreKeyring, cli.CredentialStoreNone:
			default:
				return fmt.Errorf("unknown credential store %q", v)
			}
			ctx.SetExtra(cli.ExtraCredentialStore, v)
		}

		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.AddContext(name, ctx); err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			if err := cfg.UseContext(name); err != nil {
				return err
			}
		}
		cli.PrintSuccess("Context '%s' added successfully", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Context '%s' deleted", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the default context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context '%s'", args[0])
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Show the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			fmt.Println("No current context set")
		} else {
			fmt.Println(cfg.CurrentContext)
		}
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:   "list-contexts",
	Short: "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		names := cfg.ListContexts()
		if len(names) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}
		for _, name := range names {
			marker := "  "
			if name == cfg.CurrentContext {
				marker = "* "
			}
			fmt.Printf("%s%s\t%s\n", marker, name, cfg.Contexts[name].BaseURL)
		}
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View full configuration (API keys masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		view := cli.Config{
			CurrentContext: cfg.CurrentContext,
			Contexts:       make(map[string]*cli.Context, len(cfg.Contexts)),
		}
		for name, c := range cfg.Contexts {
			masked := *c
			masked.APIKey = cli.MaskAPIKey(c.APIKey)
			masked.Extra = maps.Clone(c.Extra)
			view.Contexts[name] = &masked
		}
		return outputResult(view)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective connection settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resolveSettings()
		if err != nil {
			return err
		}
		return outputResult(map[string]any{
			"context":          s.Context,
			"base_url":         s.BaseURL,
			"ws_url":           s.WSURL,
			"api_key":          cli.MaskAPIKey(s.APIKey),
			"timeout":          s.Timeout.String(),
			"reconnects":       s.Reconnects,
			"reconnect_delay":  s.ReconnectDelay.String(),
			"credential_store": s.Store,
		})
	},
}

func init() {
	f := configAddContextCmd.Flags()
	f.StringP("base-url", "u", "", "REST base URL (default: http://localhost:5000)")
	f.String("ws-url", "", "realtime URL (default: ws://localhost:5000)")
	f.StringP("key", "k", "", "API key stored in the config file")
	f.Int("timeout", 0, "request timeout in seconds")
	f.Int("max-retries", 0, "realtime reconnection attempts")
	f.String("reconnect-delay", "", "delay between reconnection attempts, e.g. 1s")
	f.String("credential-store", "", "where the API key is persisted: badger, keyring or none")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configShowCmd)
}
