package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/ancpanel/pkg/ancapi"
	"github.com/haivivi/ancpanel/pkg/cli"
	"github.com/haivivi/ancpanel/pkg/credstore"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage the stored API key",
	Long: `Manage the API key persisted in the credential store of the current
context (badger by default, or the OS keyring).

A key given with --api-key, in the context or in ANC_API_KEY takes precedence
over the stored one.`,
}

var apikeySetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Store the API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPIClient()
		if err != nil {
			return err
		}

		if err := api.SetAPIKey(cmd.Context(), args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("API key %s stored", cli.MaskAPIKey(args[0]))
		return nil
	},
}

var apikeyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored API key (masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resolveSettings()
		if err != nil {
			return err
		}
		store, err := openStore(s)
		if err != nil {
			return err
		}
		defer store.Close()

		key, err := store.Get(cmd.Context(), ancapi.APIKeyName)
		if errors.Is(err, credstore.ErrNotFound) {
			fmt.Println("No API key stored")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println(cli.MaskAPIKey(key))
		return nil
	},
}

var apikeyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resolveSettings()
		if err != nil {
			return err
		}
		store, err := openStore(s)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(cmd.Context(), ancapi.APIKeyName); err != nil {
			return err
		}
		cli.PrintSuccess("API key removed")
		return nil
	},
}

func init() {
	apikeyCmd.AddCommand(apikeySetCmd)
	apikeyCmd.AddCommand(apikeyShowCmd)
	apikeyCmd.AddCommand(apikeyClearCmd)
}
