package ancapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// CreateSession creates an audio processing session and returns the
// session record.
func (c *Client) CreateSession(ctx context.Context, body any) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodPost, "/api/sessions/", body)
}

// GetSession fetches a session record.
func (c *Client) GetSession(ctx context.Context, sessionID string) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodGet, sessionPath(sessionID), nil)
}

// UpdateSession replaces fields of a session.
func (c *Client) UpdateSession(ctx context.Context, sessionID string, body any) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodPut, sessionPath(sessionID), body)
}

// GetSessionMetrics fetches processing metrics for a session.
func (c *Client) GetSessionMetrics(ctx context.Context, sessionID string) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodGet, sessionPath(sessionID)+"/metrics", nil)
}

// SessionID extracts the id from a session record, checking "session_id"
// then "id". It returns "" when neither is a string.
func SessionID(record json.RawMessage) string {
	var r struct {
		SessionID string `json:"session_id"`
		ID        string `json:"id"`
	}
	if json.Unmarshal(record, &r) != nil {
		return ""
	}
	if r.SessionID != "" {
		return r.SessionID
	}
	return r.ID
}

func sessionPath(id string) string {
	return "/api/sessions/" + url.PathEscape(id)
}
