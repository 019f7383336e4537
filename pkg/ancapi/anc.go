package ancapi

import (
	"context"
	"fmt"
	"net/http"
)

// ToggleANC flips noise cancellation on or off.
func (c *Client) ToggleANC(ctx context.Context) (*ToggleResponse, error) {
	var resp ToggleResponse
	if err := c.do(ctx, http.MethodPost, "/api/toggle_anc", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetIntensity sets the cancellation intensity, a fraction in [0, 1].
// Values outside the range are rejected without a request.
func (c *Client) SetIntensity(ctx context.Context, intensity float64) (*IntensityResponse, error) {
	if intensity < 0 || intensity > 1 {
		err := fmt.Errorf("ancapi: intensity %v out of range [0, 1]", intensity)
		c.config.logger.Error("API Error", "endpoint", "/api/set_intensity", "error", err)
		return nil, err
	}
	body := map[string]float64{"intensity": intensity}
	var resp IntensityResponse
	if err := c.do(ctx, http.MethodPost, "/api/set_intensity", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetProlongedDetection updates prolonged detection settings. Only non-nil
// fields of update are sent.
func (c *Client) SetProlongedDetection(ctx context.Context, update *ProlongedDetectionUpdate) (*ProlongedDetectionResponse, error) {
	if update == nil {
		update = &ProlongedDetectionUpdate{}
	}
	var resp ProlongedDetectionResponse
	if err := c.do(ctx, http.MethodPost, "/api/prolonged_detection", update, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status fetches the current status snapshot.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var s Status
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Notifications fetches notifications not yet delivered to this client.
func (c *Client) Notifications(ctx context.Context) ([]Notification, error) {
	var list NotificationList
	if err := c.do(ctx, http.MethodGet, "/api/notifications", nil, &list); err != nil {
		return nil, err
	}
	return list.Notifications, nil
}

// ClearNotifications clears the backend notification queue.
func (c *Client) ClearNotifications(ctx context.Context) (*Result, error) {
	var resp Result
	if err := c.do(ctx, http.MethodPost, "/api/clear_notifications", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResetStats zeroes the cumulative statistics.
func (c *Client) ResetStats(ctx context.Context) (*Result, error) {
	var resp Result
	if err := c.do(ctx, http.MethodPost, "/api/reset_stats", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SimulateNoise asks the backend to inject a synthetic detection.
func (c *Client) SimulateNoise(ctx context.Context, req *SimulateNoiseRequest) (*Result, error) {
	if req == nil || req.NoiseType == "" {
		err := fmt.Errorf("ancapi: simulate noise requires a noise type")
		c.config.logger.Error("API Error", "endpoint", "/api/simulate_noise", "error", err)
		return nil, err
	}
	var resp Result
	if err := c.do(ctx, http.MethodPost, "/api/simulate_noise", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
