// Package cli provides the terminal plumbing for the ancpanel command.
//
// It covers:
//   - Configuration contexts in ~/.ancpanel/config.yaml, kubectl style
//   - Output as YAML, JSON or raw text, optionally filtered by a jq query
//   - Request bodies loaded from YAML or JSON files
//   - A bordered status frame for watch mode
//
// Example usage:
//
//	cfg, err := cli.LoadConfig()
//	actx, err := cfg.ResolveContext(name)
//
//	cli.Output(result, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    Query:  ".stats",
//	})
package cli
