package ancapi

import (
	"context"
	"encoding/json"
	"net/http"
)

// HealthCheck calls the liveness endpoint.
func (c *Client) HealthCheck(ctx context.Context) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodGet, "/health", nil)
}

// GetCurrentUser returns the user owning the API key.
func (c *Client) GetCurrentUser(ctx context.Context) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodGet, "/api/users/me", nil)
}
