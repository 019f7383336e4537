package panel_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/haivivi/ancpanel/pkg/ancapi"
	"github.com/haivivi/ancpanel/pkg/panel"
)

// fakeAPI is an in-memory backend.
type fakeAPI struct {
	mu            sync.Mutex
	status        string // JSON body returned by Status
	notifications []ancapi.Notification
	anc           bool
	failToggle    error
	failStatus    error
	intensities   []float64
	prolonged     ancapi.ProlongedDetection
	updates       []ancapi.ProlongedDetectionUpdate
	simulated     []ancapi.SimulateNoiseRequest
	cleared       int
	resets        int
	statusCalls   int
	notifyCalls   int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		status:    `{}`,
		prolonged: ancapi.ProlongedDetection{Enabled: true, ThresholdSeconds: 5},
	}
}

func (f *fakeAPI) setStatus(body string) {
	f.mu.Lock()
	f.status = body
	f.mu.Unlock()
}

func (f *fakeAPI) queue(ns ...ancapi.Notification) {
	f.mu.Lock()
	f.notifications = append(f.notifications, ns...)
	f.mu.Unlock()
}

func (f *fakeAPI) Status(ctx context.Context) (*ancapi.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.failStatus != nil {
		return nil, f.failStatus
	}
	var s ancapi.Status
	if err := json.Unmarshal([]byte(f.status), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (f *fakeAPI) Notifications(ctx context.Context) ([]ancapi.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifyCalls++
	ns := f.notifications
	f.notifications = nil
	return ns, nil
}

func (f *fakeAPI) ToggleANC(ctx context.Context) (*ancapi.ToggleResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failToggle != nil {
		return nil, f.failToggle
	}
	f.anc = !f.anc
	return &ancapi.ToggleResponse{Success: true, ANCEnabled: f.anc}, nil
}

func (f *fakeAPI) SetIntensity(ctx context.Context, intensity float64) (*ancapi.IntensityResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intensities = append(f.intensities, intensity)
	return &ancapi.IntensityResponse{Success: true, Intensity: intensity}, nil
}

func (f *fakeAPI) SetProlongedDetection(ctx context.Context, u *ancapi.ProlongedDetectionUpdate) (*ancapi.ProlongedDetectionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, *u)
	if u.Enabled != nil {
		f.prolonged.Enabled = *u.Enabled
	}
	if u.ThresholdSeconds != nil {
		f.prolonged.ThresholdSeconds = *u.ThresholdSeconds
	}
	return &ancapi.ProlongedDetectionResponse{Success: true, ProlongedDetection: f.prolonged}, nil
}

func (f *fakeAPI) ClearNotifications(ctx context.Context) (*ancapi.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	return &ancapi.Result{Success: true}, nil
}

func (f *fakeAPI) ResetStats(ctx context.Context) (*ancapi.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return &ancapi.Result{Success: true}, nil
}

func (f *fakeAPI) SimulateNoise(ctx context.Context, req *ancapi.SimulateNoiseRequest) (*ancapi.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.simulated = append(f.simulated, *req)
	return &ancapi.Result{Success: true, Message: "Simulated " + req.NoiseType}, nil
}

func TestDefaultState(t *testing.T) {
	st := panel.New(newFakeAPI()).State()
	if st.ANCEnabled || st.NoiseIntensity != 0.8 || st.CurrentNoiseClass != "unknown" {
		t.Errorf("state = %+v", st)
	}
	if !st.ProlongedDetection.Enabled || st.ProlongedDetection.ThresholdSeconds != 5 {
		t.Errorf("prolonged = %+v", st.ProlongedDetection)
	}
}

func TestRefreshStatusMergesPresentFields(t *testing.T) {
	api := newFakeAPI()
	p := panel.New(api)
	ctx := context.Background()

	api.setStatus(`{
		"anc_enabled": true,
		"noise_intensity": 0.6,
		"current_noise_class": "traffic",
		"detection_confidence": 0.7,
		"stats": {"total_detections": 4, "emergency_count": 1, "anc_active_time": 3720, "peak_db": 91}
	}`)
	if _, err := p.RefreshStatus(ctx); err != nil {
		t.Fatalf("RefreshStatus: %v", err)
	}

	// Partial snapshot: only the class changes; null counts as absent.
	api.setStatus(`{"current_noise_class": "speech", "noise_intensity": null, "unknown": 1}`)
	st, err := p.RefreshStatus(ctx)
	if err != nil {
		t.Fatalf("RefreshStatus: %v", err)
	}
	if !st.ANCEnabled || st.NoiseIntensity != 0.6 || st.CurrentNoiseClass != "speech" || st.DetectionConfidence != 0.7 {
		t.Errorf("state = %+v", st)
	}
	if !st.ProlongedDetection.Enabled || st.ProlongedDetection.ThresholdSeconds != 5 {
		t.Errorf("prolonged changed: %+v", st.ProlongedDetection)
	}
	if st.Stats.TotalDetections != 4 || string(st.Stats.Extra["peak_db"]) != "91" {
		t.Errorf("stats = %+v", st.Stats)
	}
	if got := panel.FormatUptime(st.Stats.ActiveTime()); got != "1h 2m" {
		t.Errorf("uptime = %q, want 1h 2m", got)
	}
	if st.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}

	// Stats are replaced as a whole.
	api.setStatus(`{"stats": {"emergency_count": 2}}`)
	st, _ = p.RefreshStatus(ctx)
	if st.Stats.TotalDetections != 0 || st.Stats.EmergencyCount != 2 || st.Stats.Extra != nil {
		t.Errorf("stats = %+v", st.Stats)
	}
}

func TestRefreshStatusErrorKeepsState(t *testing.T) {
	api := newFakeAPI()
	api.failStatus = &ancapi.Error{Message: "Request failed", HTTPStatus: 500}
	p := panel.New(api)

	st, err := p.RefreshStatus(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	def := panel.DefaultState()
	if st.ANCEnabled != def.ANCEnabled || st.NoiseIntensity != def.NoiseIntensity || !st.UpdatedAt.IsZero() {
		t.Errorf("state changed on error: %+v", st)
	}
}

func TestEmergencyAlert(t *testing.T) {
	api := newFakeAPI()
	var alerts []panel.Alert
	p := panel.New(api, panel.WithAlertHandler(func(a panel.Alert) { alerts = append(alerts, a) }))
	ctx := context.Background()

	api.setStatus(`{"emergency_detected": true, "current_noise_class": "siren", "detection_confidence": 0.934}`)
	p.RefreshStatus(ctx)
	p.RefreshStatus(ctx)

	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	want := "Siren detected! (93% confidence) - ANC bypassed for safety"
	if alerts[0].Kind != panel.AlertEmergency || alerts[0].Message != want {
		t.Errorf("alert = %+v", alerts[0])
	}

	api.setStatus(`{"emergency_detected": false}`)
	p.RefreshStatus(ctx)
	api.setStatus(`{"emergency_detected": true}`)
	p.RefreshStatus(ctx)
	if len(alerts) != 2 {
		t.Errorf("alerts = %d after second emergency, want 2", len(alerts))
	}
}

func TestAlertHandlerPanicIsRecovered(t *testing.T) {
	api := newFakeAPI()
	api.setStatus(`{"emergency_detected": true}`)
	p := panel.New(api, panel.WithAlertHandler(func(panel.Alert) { panic("boom") }))

	if _, err := p.RefreshStatus(context.Background()); err != nil {
		t.Fatalf("RefreshStatus: %v", err)
	}
}

func TestCheckNotifications(t *testing.T) {
	api := newFakeAPI()
	var alerts []panel.Alert
	p := panel.New(api, panel.WithAlertHandler(func(a panel.Alert) { alerts = append(alerts, a) }))
	ctx := context.Background()

	api.queue(
		ancapi.Notification{Title: "n1", Severity: ancapi.SeverityLow},
		ancapi.Notification{Title: "n2", Severity: ancapi.SeverityHigh, Message: "Prolonged noise"},
	)
	got, err := p.CheckNotifications(ctx)
	if err != nil {
		t.Fatalf("CheckNotifications: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("received %d, want 2", len(got))
	}
	if len(alerts) != 1 || alerts[0].Kind != panel.AlertNotification || alerts[0].Title != "n2" {
		t.Errorf("alerts = %+v", alerts)
	}

	// Fetched notifications are not returned again.
	got, _ = p.CheckNotifications(ctx)
	if len(got) != 0 {
		t.Errorf("second poll returned %d", len(got))
	}

	items := p.Notifications()
	if len(items) != 2 || items[0].Title != "n2" || items[1].Title != "n1" {
		t.Errorf("log = %+v", items)
	}
}

func TestNotificationLogLimit(t *testing.T) {
	api := newFakeAPI()
	p := panel.New(api)
	ctx := context.Background()

	for i := range 12 {
		api.queue(ancapi.Notification{Title: string(rune('a' + i))})
	}
	p.CheckNotifications(ctx)

	items := p.Notifications()
	if len(items) != 10 {
		t.Fatalf("len = %d, want 10", len(items))
	}
	var titles []string
	for _, n := range items {
		titles = append(titles, n.Title)
	}
	if got := strings.Join(titles, ""); got != "lkjihgfedc" {
		t.Errorf("order = %q, want lkjihgfedc", got)
	}

	if err := p.ClearNotifications(ctx); err != nil {
		t.Fatalf("ClearNotifications: %v", err)
	}
	if len(p.Notifications()) != 0 || api.cleared != 1 {
		t.Errorf("after clear: %d items, %d calls", len(p.Notifications()), api.cleared)
	}
}

func TestToggleANC(t *testing.T) {
	api := newFakeAPI()
	p := panel.New(api)
	ctx := context.Background()

	on, err := p.ToggleANC(ctx)
	if err != nil {
		t.Fatalf("ToggleANC: %v", err)
	}
	if !on || !p.State().ANCEnabled {
		t.Errorf("ToggleANC = %v, state %v", on, p.State().ANCEnabled)
	}

	api.failToggle = errors.New("network down")
	on, err = p.ToggleANC(ctx)
	if err == nil {
		t.Fatal("expected error")
	}
	if !on || !p.State().ANCEnabled {
		t.Errorf("state not reverted: %v, %v", on, p.State().ANCEnabled)
	}
}

func TestSetIntensityPercent(t *testing.T) {
	api := newFakeAPI()
	p := panel.New(api)

	if err := p.SetIntensityPercent(context.Background(), 75); err != nil {
		t.Fatalf("SetIntensityPercent: %v", err)
	}
	if len(api.intensities) != 1 || api.intensities[0] != 0.75 {
		t.Errorf("sent = %v, want [0.75]", api.intensities)
	}
	if p.State().NoiseIntensity != 0.75 {
		t.Errorf("NoiseIntensity = %v", p.State().NoiseIntensity)
	}

	if err := p.SetIntensityPercent(context.Background(), 101); err == nil {
		t.Error("expected error for 101%")
	}
	if len(api.intensities) != 1 {
		t.Errorf("out of range value was sent: %v", api.intensities)
	}
}

func TestProlongedDetection(t *testing.T) {
	api := newFakeAPI()
	p := panel.New(api)
	ctx := context.Background()

	if err := p.SetProlongedEnabled(ctx, false); err != nil {
		t.Fatalf("SetProlongedEnabled: %v", err)
	}
	if err := p.SetProlongedThreshold(ctx, 12); err != nil {
		t.Fatalf("SetProlongedThreshold: %v", err)
	}
	if err := p.SetProlongedThreshold(ctx, -1); err == nil {
		t.Error("expected error for negative threshold")
	}

	if len(api.updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(api.updates))
	}
	if u := api.updates[0]; u.Enabled == nil || *u.Enabled || u.ThresholdSeconds != nil {
		t.Errorf("first update = %+v", u)
	}
	if u := api.updates[1]; u.Enabled != nil || u.ThresholdSeconds == nil || *u.ThresholdSeconds != 12 {
		t.Errorf("second update = %+v", u)
	}
	pd := p.State().ProlongedDetection
	if pd.Enabled || pd.ThresholdSeconds != 12 {
		t.Errorf("prolonged = %+v", pd)
	}
}

func TestSimulate(t *testing.T) {
	api := newFakeAPI()
	p := panel.New(api, panel.WithRand(func() float64 { return 0.5 }))
	ctx := context.Background()

	if _, err := p.Simulate(ctx, "siren", true, nil); err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	c := 0.6
	if _, err := p.Simulate(ctx, "speech", false, &c); err != nil {
		t.Fatalf("Simulate: %v", err)
	}

	if len(api.simulated) != 2 {
		t.Fatalf("simulated = %d", len(api.simulated))
	}
	first := api.simulated[0]
	if first.NoiseType != "siren" || !first.Emergency || first.Confidence == nil || math.Abs(*first.Confidence-0.925) > 1e-9 {
		t.Errorf("first = %+v", first)
	}
	if got := *api.simulated[1].Confidence; got != 0.6 {
		t.Errorf("confidence = %v, want 0.6", got)
	}

	if err := p.ResetStats(ctx); err != nil || api.resets != 1 {
		t.Errorf("ResetStats: %v, %d calls", err, api.resets)
	}
}
