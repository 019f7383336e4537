package ancapi

import (
	"context"
	"encoding/json"
	"net/http"
)

// ProcessAudio submits audio for noise cancellation. The body and response
// shapes are defined by the backend.
func (c *Client) ProcessAudio(ctx context.Context, body any) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodPost, "/api/audio/process", body)
}

// ClassifyNoise asks the backend to classify the noise in body.
func (c *Client) ClassifyNoise(ctx context.Context, body any) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodPost, "/api/audio/classify", body)
}

// DetectEmergency asks the backend whether body contains an emergency sound.
func (c *Client) DetectEmergency(ctx context.Context, body any) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodPost, "/api/audio/emergency-detect", body)
}
