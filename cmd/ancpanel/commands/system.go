package commands

import (
	"github.com/spf13/cobra"
)

var systemCmd = &cobra.Command{
	Use:   "system",
	Short: "Backend health and identity",
}

var systemHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check backend health",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPIClient()
		if err != nil {
			return err
		}

		res, err := api.HealthCheck(cmd.Context())
		if err != nil {
			return err
		}
		return outputResult(res)
	},
}

var systemWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the user the API key belongs to",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPIClient()
		if err != nil {
			return err
		}

		res, err := api.GetCurrentUser(cmd.Context())
		if err != nil {
			return err
		}
		return outputResult(res)
	},
}

func init() {
	systemCmd.AddCommand(systemHealthCmd)
	systemCmd.AddCommand(systemWhoamiCmd)
}
