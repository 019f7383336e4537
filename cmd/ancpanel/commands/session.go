package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/ancpanel/pkg/ancapi"
	"github.com/haivivi/ancpanel/pkg/cli"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Processing sessions",
	Long: `Create and inspect processing sessions.

Request bodies are read from -f (YAML or JSON) or --data (inline JSON).

Examples:
  ancpanel session create -f session.yaml
  ancpanel session get <id>
  ancpanel session update <id> --data '{"algorithm":"rls"}'
  ancpanel session metrics <id>`,
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, _ := cmd.Flags().GetString("data")
		body, err := requestBody(data)
		if err != nil {
			return err
		}
		api, err := newAPIClient()
		if err != nil {
			return err
		}

		rec, err := api.CreateSession(cmd.Context(), body)
		if err != nil {
			return err
		}
		if id := ancapi.SessionID(rec); id != "" {
			cli.PrintSuccess("Session %s created", id)
		}
		return outputResult(rec)
	},
}

var sessionGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPIClient()
		if err != nil {
			return err
		}

		rec, err := api.GetSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return outputResult(rec)
	},
}

var sessionUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, _ := cmd.Flags().GetString("data")
		body, err := requestBody(data)
		if err != nil {
			return err
		}
		api, err := newAPIClient()
		if err != nil {
			return err
		}

		rec, err := api.UpdateSession(cmd.Context(), args[0], body)
		if err != nil {
			return err
		}
		return outputResult(rec)
	},
}

var sessionMetricsCmd = &cobra.Command{
	Use:   "metrics <id>",
	Short: "Get session metrics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPIClient()
		if err != nil {
			return err
		}

		m, err := api.GetSessionMetrics(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return outputResult(m)
	},
}

func init() {
	sessionCreateCmd.Flags().String("data", "", "inline JSON request body")
	sessionUpdateCmd.Flags().String("data", "", "inline JSON request body")

	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionGetCmd)
	sessionCmd.AddCommand(sessionUpdateCmd)
	sessionCmd.AddCommand(sessionMetricsCmd)
}
