package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/ancpanel/pkg/ancapi"
	"github.com/haivivi/ancpanel/pkg/cli"
	"github.com/haivivi/ancpanel/pkg/panel"
)

const maxAlerts = 5

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live status panel",
	Long: `Poll the backend (status every second, notifications every two seconds)
and redraw a status panel until interrupted.

With --once the panel is fetched and printed a single time.`,
	RunE: runWatch,
}

// watchView is everything the frame shows besides the panel state.
type watchView struct {
	mu      sync.Mutex
	alerts  []string
	lastErr error
	logs    *cli.LogWriter
}

func (v *watchView) addAlert(a panel.Alert) {
	v.mu.Lock()
	defer v.mu.Unlock()
	line := fmt.Sprintf("%s %s", time.Now().Format("15:04:05"), a.Message)
	if a.Title != "" && a.Kind == panel.AlertNotification {
		line = fmt.Sprintf("%s %s: %s", time.Now().Format("15:04:05"), a.Title, a.Message)
	}
	v.alerts = append(v.alerts, line)
	if len(v.alerts) > maxAlerts {
		v.alerts = v.alerts[len(v.alerts)-maxAlerts:]
	}
}

func (v *watchView) setErr(err error) {
	v.mu.Lock()
	v.lastErr = err
	v.mu.Unlock()
}

func runWatch(cmd *cobra.Command, args []string) error {
	width, _ := cmd.Flags().GetInt("width")
	once, _ := cmd.Flags().GetBool("once")

	view := &watchView{logs: cli.NewLogWriter(6)}
	if !once {
		// Keep log lines inside the frame instead of scrolling it away.
		setupLogger(view.logs)
		defer setupLogger(logOutput)
	}

	api, err := newAPIClient()
	if err != nil {
		return err
	}

	p := panel.New(api,
		panel.WithLogger(slog.Default()),
		panel.WithAlertHandler(view.addAlert),
	)

	if once {
		if _, err := p.RefreshStatus(cmd.Context()); err != nil {
			return err
		}
		if _, err := p.CheckNotifications(cmd.Context()); err != nil {
			return err
		}
		fmt.Println(buildFrame(p.State(), p.Notifications(), view, api.BaseURL()).Render(width))
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var drawMu sync.Mutex
	draw := func() {
		drawMu.Lock()
		defer drawMu.Unlock()
		fmt.Print("\033[H\033[2J")
		fmt.Println(buildFrame(p.State(), p.Notifications(), view, api.BaseURL()).Render(width))
	}

	pl := panel.NewPoller(p,
		panel.OnUpdate(func(panel.State) {
			view.setErr(nil)
			draw()
		}),
		panel.OnNotifications(func([]ancapi.Notification) { draw() }),
		panel.OnError(func(err error) {
			view.setErr(err)
			draw()
		}),
	)
	pl.Start(ctx)
	<-ctx.Done()
	pl.Stop()
	cli.PrintInfo("Stopped watching %s", api.BaseURL())
	return nil
}

func buildFrame(st panel.State, notes []ancapi.Notification, view *watchView, baseURL string) cli.Frame {
	styles := cli.NewStyles(cli.DefaultTheme)

	view.mu.Lock()
	alerts := append([]string(nil), view.alerts...)
	lastErr := view.lastErr
	view.mu.Unlock()

	status := "live"
	if lastErr != nil {
		status = "offline"
	}

	anc := styles.OK.Render("ON")
	if !st.ANCEnabled {
		anc = styles.Help.Render("OFF")
	}
	statusLines := []string{
		"ANC        " + anc,
		fmt.Sprintf("Intensity  %s %s", cli.Bar(st.NoiseIntensity, 20), panel.Percent(st.NoiseIntensity)),
		fmt.Sprintf("Noise      %s (%s confidence, %s)",
			panel.Capitalize(st.CurrentNoiseClass), panel.Percent(st.DetectionConfidence), panel.ConfidenceLevel(st.DetectionConfidence)),
	}
	if st.EmergencyDetected {
		statusLines = append(statusLines, styles.Alert.Render("EMERGENCY  ANC bypassed for safety"))
	}
	if lastErr != nil {
		statusLines = append(statusLines, styles.Alert.Render("Error      "+lastErr.Error()))
	}

	pd := st.ProlongedDetection
	prolonged := []string{
		fmt.Sprintf("Enabled    %v (threshold %ds)", pd.Enabled, pd.ThresholdSeconds),
		fmt.Sprintf("Current    %ds, class %s", pd.CurrentDuration, panel.ProlongedClass(pd.DetectedClass)),
	}

	stats := []string{
		fmt.Sprintf("Detections %d", st.Stats.TotalDetections),
		fmt.Sprintf("Emergencies %d", st.Stats.EmergencyCount),
		fmt.Sprintf("ANC uptime %s", panel.FormatUptime(st.Stats.ActiveTime())),
	}

	var noteLines []string
	for _, n := range notes {
		line := fmt.Sprintf("[%s] %s: %s", n.Severity, n.Title, n.Message)
		if n.Severity == ancapi.SeverityHigh {
			line = styles.Alert.Render(line)
		}
		noteLines = append(noteLines, line)
	}

	updated := "never"
	if !st.UpdatedAt.IsZero() {
		updated = st.UpdatedAt.Format("15:04:05")
	}

	return cli.Frame{
		Styles: styles,
		Title:  "ANC Control Panel",
		Status: status + " · " + baseURL,
		Sections: []cli.Section{
			{Label: "Status", Lines: statusLines},
			{Label: "Prolonged detection", Lines: prolonged},
			{Label: "Statistics", Lines: stats},
			{Label: "Notifications", Lines: noteLines},
			{Label: "Alerts", Lines: alerts},
			{Label: "Log", Lines: view.logs.Lines(), MaxLines: 6},
		},
		Help: "updated " + updated + " · ctrl+c to quit",
	}
}

func init() {
	watchCmd.Flags().Int("width", 80, "panel width in columns")
	watchCmd.Flags().Bool("once", false, "print the panel once and exit")
}
