package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/ancpanel/pkg/ancapi"
	"github.com/haivivi/ancpanel/pkg/cli"
	"github.com/haivivi/ancpanel/pkg/panel"
)

var ancCmd = &cobra.Command{
	Use:   "anc",
	Short: "ANC control",
	Long: `Control active noise cancellation.

Examples:
  ancpanel anc status
  ancpanel anc toggle
  ancpanel anc intensity 75
  ancpanel anc prolonged --enabled=false
  ancpanel anc prolonged --threshold 10
  ancpanel anc simulate siren --emergency
  ancpanel anc reset-stats`,
}

// newPanel creates a Panel over a fresh REST client.
func newPanel() (*panel.Panel, error) {
	api, err := newAPIClient()
	if err != nil {
		return nil, err
	}
	return panel.New(api), nil
}

var ancStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current ANC status",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPIClient()
		if err != nil {
			return err
		}

		status, err := api.Status(cmd.Context())
		if err != nil {
			return err
		}
		return outputResult(status)
	},
}

var ancToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle ANC on or off",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPanel()
		if err != nil {
			return err
		}

		// Start from the backend's view so the optimistic flip is meaningful.
		if _, err := p.RefreshStatus(cmd.Context()); err != nil {
			return err
		}
		on, err := p.ToggleANC(cmd.Context())
		if err != nil {
			return err
		}
		cli.PrintSuccess("ANC %s", onOff(on))
		return nil
	},
}

var ancIntensityCmd = &cobra.Command{
	Use:   "intensity <percent>",
	Short: "Set noise cancellation intensity (0-100)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		percent, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("intensity must be an integer percentage: %w", err)
		}
		p, err := newPanel()
		if err != nil {
			return err
		}

		if err := p.SetIntensityPercent(cmd.Context(), percent); err != nil {
			return err
		}
		cli.PrintSuccess("Intensity set to %s", panel.Percent(p.State().NoiseIntensity))
		return nil
	},
}

var ancProlongedCmd = &cobra.Command{
	Use:   "prolonged",
	Short: "Configure prolonged noise detection",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		if !f.Changed("enabled") && !f.Changed("threshold") {
			return fmt.Errorf("set --enabled and/or --threshold")
		}
		p, err := newPanel()
		if err != nil {
			return err
		}

		if f.Changed("enabled") {
			enabled, _ := f.GetBool("enabled")
			if err := p.SetProlongedEnabled(cmd.Context(), enabled); err != nil {
				return err
			}
		}
		if f.Changed("threshold") {
			seconds, _ := f.GetInt("threshold")
			if err := p.SetProlongedThreshold(cmd.Context(), seconds); err != nil {
				return err
			}
		}
		pd := p.State().ProlongedDetection
		cli.PrintSuccess("Prolonged detection %s, threshold %ds", onOff(pd.Enabled), pd.ThresholdSeconds)
		return nil
	},
}

var ancSimulateCmd = &cobra.Command{
	Use:   "simulate <noise-type>",
	Short: "Simulate a noise detection",
	Long: `Ask the backend to inject a detection of the given noise type.

Without --confidence a random confidence between 85% and 100% is used.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		emergency, _ := f.GetBool("emergency")
		var confidence *float64
		if f.Changed("confidence") {
			c, _ := f.GetFloat64("confidence")
			if c < 0 || c > 1 {
				return fmt.Errorf("confidence %v out of range [0, 1]", c)
			}
			confidence = &c
		}

		p, err := newPanel()
		if err != nil {
			return err
		}

		res, err := p.Simulate(cmd.Context(), args[0], emergency, confidence)
		if err != nil {
			return err
		}
		if res.Message != "" {
			cli.PrintSuccess("%s", res.Message)
		} else {
			cli.PrintSuccess("Simulated %s", args[0])
		}
		return nil
	},
}

var ancResetStatsCmd = &cobra.Command{
	Use:   "reset-stats",
	Short: "Reset detection statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPIClient()
		if err != nil {
			return err
		}

		if _, err := api.ResetStats(cmd.Context()); err != nil {
			return err
		}
		cli.PrintSuccess("Statistics reset")
		return nil
	},
}

var ancStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show detection statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPIClient()
		if err != nil {
			return err
		}

		status, err := api.Status(cmd.Context())
		if err != nil {
			return err
		}
		stats := ancapi.Stats{}
		if status.Stats != nil {
			stats = *status.Stats
		}
		return outputResult(map[string]any{
			"total_detections": stats.TotalDetections,
			"emergency_count":  stats.EmergencyCount,
			"uptime":           panel.FormatUptime(stats.ActiveTime()),
		})
	},
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func init() {
	ancProlongedCmd.Flags().Bool("enabled", true, "enable prolonged detection")
	ancProlongedCmd.Flags().Int("threshold", 5, "threshold in seconds")
	ancSimulateCmd.Flags().Bool("emergency", false, "mark the simulated noise as an emergency")
	ancSimulateCmd.Flags().Float64("confidence", 0, "detection confidence in [0, 1]")

	ancCmd.AddCommand(ancStatusCmd)
	ancCmd.AddCommand(ancToggleCmd)
	ancCmd.AddCommand(ancIntensityCmd)
	ancCmd.AddCommand(ancProlongedCmd)
	ancCmd.AddCommand(ancSimulateCmd)
	ancCmd.AddCommand(ancResetStatsCmd)
	ancCmd.AddCommand(ancStatsCmd)
}
