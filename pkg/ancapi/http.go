package ancapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Request performs an HTTP request against the backend and returns the
// parsed JSON body unchanged.
//
// The URL is the base URL followed by endpoint. Content-Type is always
// application/json; header values supplied by the caller are added on top,
// and X-API-Key is set when a key is configured. body, when non-nil, is
// encoded with encoding/json; a json.RawMessage is sent as is.
//
// A non-2xx response returns *Error. Transport failures and malformed JSON
// return a wrapped error. Every error is logged before it is returned.
func (c *Client) Request(ctx context.Context, method, endpoint string, body any, header http.Header) (json.RawMessage, error) {
	data, err := c.request(ctx, method, endpoint, body, header)
	if err != nil {
		c.config.logger.Error("API Error", "method", method, "endpoint", endpoint, "error", err)
		return nil, err
	}
	return data, nil
}

func (c *Client) request(ctx context.Context, method, endpoint string, body any, header http.Header) (json.RawMessage, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ancapi: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.baseURL+endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("ancapi: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if key := c.APIKey(); key != "" {
		req.Header.Set("X-API-Key", key)
	}

	resp, err := c.config.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ancapi: do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ancapi: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newError(resp.StatusCode, respBody)
	}
	if !json.Valid(respBody) {
		return nil, fmt.Errorf("ancapi: malformed JSON response (http_status=%d)", resp.StatusCode)
	}
	return json.RawMessage(respBody), nil
}

// do performs a request and decodes the response into result.
func (c *Client) do(ctx context.Context, method, endpoint string, body, result any) error {
	data, err := c.Request(ctx, method, endpoint, body, nil)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		err = fmt.Errorf("ancapi: decode %s response: %w", endpoint, err)
		c.config.logger.Error("API Error", "method", method, "endpoint", endpoint, "error", err)
		return err
	}
	return nil
}

// raw performs a request whose response shape is backend-defined.
func (c *Client) raw(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	return c.Request(ctx, method, endpoint, body, nil)
}
