package panel

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/haivivi/ancpanel/pkg/ancapi"
)

// API is the subset of the REST client a Panel drives. *ancapi.Client
// implements it.
type API interface {
	Status(ctx context.Context) (*ancapi.Status, error)
	Notifications(ctx context.Context) ([]ancapi.Notification, error)
	ToggleANC(ctx context.Context) (*ancapi.ToggleResponse, error)
	SetIntensity(ctx context.Context, intensity float64) (*ancapi.IntensityResponse, error)
	SetProlongedDetection(ctx context.Context, update *ancapi.ProlongedDetectionUpdate) (*ancapi.ProlongedDetectionResponse, error)
	ClearNotifications(ctx context.Context) (*ancapi.Result, error)
	ResetStats(ctx context.Context) (*ancapi.Result, error)
	SimulateNoise(ctx context.Context, req *ancapi.SimulateNoiseRequest) (*ancapi.Result, error)
}

var _ API = (*ancapi.Client)(nil)

// AlertKind identifies what raised an Alert.
type AlertKind string

const (
	AlertEmergency    AlertKind = "emergency"
	AlertNotification AlertKind = "notification"
)

// Alert is something the user should see immediately.
type Alert struct {
	Kind    AlertKind
	Title   string
	Message string

	// Notification is set for AlertNotification.
	Notification *ancapi.Notification
}

// Option configures a Panel.
type Option func(*Panel)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Panel) {
		p.logger = logger
	}
}

// WithAlertHandler sets the function called for emergencies and
// high-severity notifications. It runs on the goroutine that observed the
// condition.
func WithAlertHandler(fn func(Alert)) Option {
	return func(p *Panel) {
		p.onAlert = fn
	}
}

// WithNotificationLimit sets how many notifications are kept.
func WithNotificationLimit(n int) Option {
	return func(p *Panel) {
		p.log = NewNotificationLog(n)
	}
}

// WithRand sets the source of random confidences used by Simulate.
func WithRand(fn func() float64) Option {
	return func(p *Panel) {
		p.rand = fn
	}
}

// Panel is the client-side state of the control panel.
type Panel struct {
	api     API
	logger  *slog.Logger
	onAlert func(Alert)
	rand    func() float64
	log     *NotificationLog

	mu    sync.RWMutex
	state State
}

// New creates a Panel in DefaultState.
func New(api API, opts ...Option) *Panel {
	p := &Panel{
		api:    api,
		logger: slog.Default(),
		rand:   rand.Float64,
		log:    NewNotificationLog(DefaultNotificationLimit),
		state:  DefaultState(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns a copy of the current state.
func (p *Panel) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Notifications returns the kept notifications, newest first.
func (p *Panel) Notifications() []ancapi.Notification {
	return p.log.Items()
}

// RefreshStatus fetches the status and merges it into the state. An
// emergency alert is raised when the status turns to emergency_detected.
// On error the state is left unchanged.
func (p *Panel) RefreshStatus(ctx context.Context) (State, error) {
	s, err := p.api.Status(ctx)
	if err != nil {
		return p.State(), err
	}

	p.mu.Lock()
	wasEmergency := p.state.EmergencyDetected
	p.state.Merge(s)
	p.state.UpdatedAt = time.Now()
	st := p.state
	p.mu.Unlock()

	if st.EmergencyDetected && !wasEmergency {
		p.alert(Alert{
			Kind:    AlertEmergency,
			Title:   "Emergency",
			Message: EmergencyMessage(st.CurrentNoiseClass, st.DetectionConfidence),
		})
	}
	return st, nil
}

// EmergencyMessage is the text shown when an emergency sound is detected.
func EmergencyMessage(class string, confidence float64) string {
	return fmt.Sprintf("%s detected! (%s confidence) - ANC bypassed for safety", Capitalize(class), Percent(confidence))
}

// CheckNotifications fetches pending notifications and adds them to the
// log. The backend drops notifications once fetched. High-severity
// notifications raise an alert. It returns the newly received ones.
func (p *Panel) CheckNotifications(ctx context.Context) ([]ancapi.Notification, error) {
	ns, err := p.api.Notifications(ctx)
	if err != nil {
		return nil, err
	}
	p.log.Push(ns...)
	for i := range ns {
		if ns[i].Severity == ancapi.SeverityHigh {
			p.alert(Alert{
				Kind:         AlertNotification,
				Title:        ns[i].Title,
				Message:      ns[i].Message,
				Notification: &ns[i],
			})
		}
	}
	return ns, nil
}

// ToggleANC flips ANC locally before calling the backend, then adopts the
// backend's answer. The previous value is restored if the call fails.
func (p *Panel) ToggleANC(ctx context.Context) (bool, error) {
	p.mu.Lock()
	prev := p.state.ANCEnabled
	p.state.ANCEnabled = !prev
	p.mu.Unlock()

	resp, err := p.api.ToggleANC(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.state.ANCEnabled = prev
		p.logger.Warn("toggle anc failed, reverted", "anc_enabled", prev, "error", err)
		return prev, err
	}
	p.state.ANCEnabled = resp.ANCEnabled
	return resp.ANCEnabled, nil
}

// SetIntensity sets the noise cancellation intensity, in [0, 1].
func (p *Panel) SetIntensity(ctx context.Context, intensity float64) error {
	resp, err := p.api.SetIntensity(ctx, intensity)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.state.NoiseIntensity = resp.Intensity
	p.mu.Unlock()
	return nil
}

// SetIntensityPercent sets the intensity from a slider position in
// [0, 100].
func (p *Panel) SetIntensityPercent(ctx context.Context, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("panel: intensity %d%% out of range [0, 100]", percent)
	}
	return p.SetIntensity(ctx, float64(percent)/100)
}

// SetProlongedEnabled turns prolonged noise detection on or off.
func (p *Panel) SetProlongedEnabled(ctx context.Context, enabled bool) error {
	return p.updateProlonged(ctx, &ancapi.ProlongedDetectionUpdate{Enabled: &enabled})
}

// SetProlongedThreshold sets how many seconds of sustained noise trigger a
// prolonged detection.
func (p *Panel) SetProlongedThreshold(ctx context.Context, seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("panel: negative threshold %d", seconds)
	}
	return p.updateProlonged(ctx, &ancapi.ProlongedDetectionUpdate{ThresholdSeconds: &seconds})
}

func (p *Panel) updateProlonged(ctx context.Context, u *ancapi.ProlongedDetectionUpdate) error {
	resp, err := p.api.SetProlongedDetection(ctx, u)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.state.ProlongedDetection = resp.ProlongedDetection
	p.mu.Unlock()
	return nil
}

// ClearNotifications clears the backend queue and the local log.
func (p *Panel) ClearNotifications(ctx context.Context) error {
	if _, err := p.api.ClearNotifications(ctx); err != nil {
		return err
	}
	p.log.Clear()
	return nil
}

// ResetStats resets the backend counters. The local stats catch up on the
// next status refresh.
func (p *Panel) ResetStats(ctx context.Context) error {
	_, err := p.api.ResetStats(ctx)
	return err
}

// Simulate asks the backend to inject a detection of noiseType. A nil
// confidence is replaced by a random value in [0.85, 1.0).
func (p *Panel) Simulate(ctx context.Context, noiseType string, emergency bool, confidence *float64) (*ancapi.Result, error) {
	if confidence == nil {
		c := 0.85 + p.rand()*0.15
		confidence = &c
	}
	return p.api.SimulateNoise(ctx, &ancapi.SimulateNoiseRequest{
		NoiseType:  noiseType,
		Emergency:  emergency,
		Confidence: confidence,
	})
}

func (p *Panel) alert(a Alert) {
	p.logger.Info("alert", "kind", a.Kind, "title", a.Title, "message", a.Message)
	if p.onAlert == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("alert handler panicked", "panic", r)
		}
	}()
	p.onAlert(a)
}
