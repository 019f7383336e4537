package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/ancpanel/pkg/cli"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif"},
	Short:   "List and clear notifications",
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Fetch pending notifications",
	Long: `Fetch pending notifications. The backend removes notifications once
they are fetched, so each one is shown only once.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPIClient()
		if err != nil {
			return err
		}

		ns, err := api.Notifications(cmd.Context())
		if err != nil {
			return err
		}
		if len(ns) == 0 && !outputJSON && jqQuery == "" {
			fmt.Println("No notifications")
			return nil
		}
		return outputResult(ns)
	},
}

var notificationsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPIClient()
		if err != nil {
			return err
		}

		if _, err := api.ClearNotifications(cmd.Context()); err != nil {
			return err
		}
		cli.PrintSuccess("Notifications cleared")
		return nil
	},
}

func init() {
	notificationsCmd.AddCommand(notificationsListCmd)
	notificationsCmd.AddCommand(notificationsClearCmd)
}
