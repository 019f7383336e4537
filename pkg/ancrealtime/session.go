package ancrealtime

import "fmt"

const (
	// DefaultSampleRate is the audio_chunk sample rate when unset.
	DefaultSampleRate = 48000

	// DefaultAlgorithm is the audio_chunk algorithm when unset.
	DefaultAlgorithm = "nlms"

	// DefaultIntensity is the audio_chunk intensity when unset.
	DefaultIntensity = 1.0
)

// AudioChunkOptions overrides audio_chunk defaults. A nil *AudioChunkOptions
// uses every default.
type AudioChunkOptions struct {
	// SampleRate in Hz; 0 selects DefaultSampleRate.
	SampleRate int

	// Algorithm tag; "" selects DefaultAlgorithm.
	Algorithm string

	// Intensity in [0, 1]; nil selects DefaultIntensity.
	Intensity *float64

	// ChunkIndex overrides the per-session counter, which starts at 0 on
	// join and advances with every chunk sent.
	ChunkIndex *int
}

// AudioChunk is the audio_chunk message.
type AudioChunk struct {
	SessionID  string  `json:"session_id"`
	AudioData  []byte  `json:"audio_data"`
	SampleRate int     `json:"sample_rate"`
	Algorithm  string  `json:"algorithm"`
	Intensity  float64 `json:"intensity"`
	ChunkIndex int     `json:"chunk_index"`
}

type sessionRef struct {
	SessionID string `json:"session_id"`
}

// SessionID returns the joined session id, or "".
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// JoinSession makes id the active session and sends join_session without
// waiting for an acknowledgement. If a different session is active, a
// leave_session for it is sent first.
func (c *Client) JoinSession(id string) error {
	if id == "" {
		return fmt.Errorf("ancrealtime: empty session id")
	}
	c.sessMu.Lock()
	defer c.sessMu.Unlock()

	c.mu.Lock()
	conn, prev := c.conn, c.sessionID
	if conn == nil {
		c.mu.Unlock()
		c.config.logger.Error("cannot join session", "session_id", id, "error", ErrNotConnected)
		return ErrNotConnected
	}
	c.sessionID = id
	c.nextChunk = 0
	c.mu.Unlock()

	if prev != "" && prev != id {
		if err := conn.Emit("leave_session", sessionRef{SessionID: prev}); err != nil {
			c.config.logger.Warn("leave previous session failed", "session_id", prev, "error", err)
		}
	}
	if err := conn.Emit("join_session", sessionRef{SessionID: id}); err != nil {
		c.config.logger.Error("join session failed", "session_id", id, "error", err)
		return fmt.Errorf("ancrealtime: join session: %w", err)
	}
	c.config.logger.Debug("joined session", "session_id", id)
	return nil
}

// LeaveSession sends leave_session for the active session and clears it.
// It does nothing when no session is active.
func (c *Client) LeaveSession() error {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()

	c.mu.Lock()
	conn, id := c.conn, c.sessionID
	c.sessionID = ""
	c.mu.Unlock()

	if id == "" || conn == nil {
		return nil
	}
	if err := conn.Emit("leave_session", sessionRef{SessionID: id}); err != nil {
		c.config.logger.Error("leave session failed", "session_id", id, "error", err)
		return fmt.Errorf("ancrealtime: leave session: %w", err)
	}
	return nil
}

// SendAudioChunk streams one chunk of audio into the active session.
// Without a session it returns ErrNoActiveSession and sends nothing.
func (c *Client) SendAudioChunk(data []byte, opts *AudioChunkOptions) error {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()

	c.mu.Lock()
	conn, id := c.conn, c.sessionID
	if id == "" {
		c.mu.Unlock()
		c.config.logger.Error("No active session", "event", "audio_chunk")
		return ErrNoActiveSession
	}
	msg := AudioChunk{
		SessionID:  id,
		AudioData:  data,
		SampleRate: DefaultSampleRate,
		Algorithm:  DefaultAlgorithm,
		Intensity:  DefaultIntensity,
		ChunkIndex: c.nextChunk,
	}
	if opts != nil {
		if opts.SampleRate > 0 {
			msg.SampleRate = opts.SampleRate
		}
		if opts.Algorithm != "" {
			msg.Algorithm = opts.Algorithm
		}
		if opts.Intensity != nil {
			msg.Intensity = *opts.Intensity
		}
		if opts.ChunkIndex != nil {
			msg.ChunkIndex = *opts.ChunkIndex
		}
	}
	c.nextChunk = msg.ChunkIndex + 1
	c.mu.Unlock()

	if err := conn.Emit("audio_chunk", msg); err != nil {
		c.config.logger.Error("send audio chunk failed", "session_id", id, "chunk_index", msg.ChunkIndex, "error", err)
		return fmt.Errorf("ancrealtime: send audio chunk: %w", err)
	}
	return nil
}

// RequestMetrics asks the server to push a metrics_update for the active
// session. Without a session it returns ErrNoActiveSession and sends
// nothing.
func (c *Client) RequestMetrics() error {
	c.mu.Lock()
	conn, id := c.conn, c.sessionID
	c.mu.Unlock()

	if id == "" {
		c.config.logger.Error("No active session", "event", "request_metrics")
		return ErrNoActiveSession
	}
	if err := conn.Emit("request_metrics", sessionRef{SessionID: id}); err != nil {
		c.config.logger.Error("request metrics failed", "session_id", id, "error", err)
		return fmt.Errorf("ancrealtime: request metrics: %w", err)
	}
	return nil
}
