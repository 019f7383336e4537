package ancrealtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/haivivi/ancpanel/pkg/socketio"
)

const (
	// DefaultURL is the realtime endpoint used when none is configured.
	DefaultURL = "ws://localhost:5000"

	// DefaultReconnectAttempts bounds reconnection after the first failure.
	DefaultReconnectAttempts = 5

	// DefaultReconnectDelay is the fixed delay between attempts.
	DefaultReconnectDelay = time.Second

	// DefaultDialTimeout bounds a single connection attempt.
	DefaultDialTimeout = 10 * time.Second
)

var (
	// ErrNoActiveSession is returned by session-scoped sends when no session
	// has been joined. Nothing is sent.
	ErrNoActiveSession = errors.New("ancrealtime: no active session")

	// ErrNotConnected is returned when an operation needs a connection.
	ErrNotConnected = errors.New("ancrealtime: not connected")

	// ErrDisconnected is returned by Connect when Disconnect is called while
	// it is still dialing.
	ErrDisconnected = errors.New("ancrealtime: disconnected while connecting")
)

// Client is a realtime client. It is safe for concurrent use.
type Client struct {
	url    string
	config *clientConfig
	disp   *dispatcher

	// sessMu serializes session operations so a leave/join pair is not
	// interleaved with another join.
	sessMu sync.Mutex

	mu        sync.Mutex
	conn      *socketio.Conn
	sessionID string
	nextChunk int
	cancel    context.CancelFunc
	done      chan struct{}
}

type clientConfig struct {
	attempts    int
	delay       time.Duration
	dialTimeout time.Duration
	transports  []socketio.Transport
	apiKey      string
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*clientConfig)

// WithReconnect sets how many times a failed connection is retried and the
// fixed delay between attempts.
func WithReconnect(attempts int, delay time.Duration) Option {
	return func(c *clientConfig) {
		c.attempts = attempts
		c.delay = delay
	}
}

// WithDialTimeout bounds a single connection attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.dialTimeout = d
	}
}

// WithTransports sets the transports to try, in order. The default is
// websocket, then polling.
func WithTransports(ts ...socketio.Transport) Option {
	return func(c *clientConfig) {
		c.transports = ts
	}
}

// WithAPIKey sends the key as X-API-Key with the connection handshake.
func WithAPIKey(key string) Option {
	return func(c *clientConfig) {
		c.apiKey = key
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// NewClient creates a client for serverURL. No connection is made until
// Connect.
func NewClient(serverURL string, opts ...Option) *Client {
	cfg := &clientConfig{
		attempts:    DefaultReconnectAttempts,
		delay:       DefaultReconnectDelay,
		dialTimeout: DefaultDialTimeout,
		transports:  []socketio.Transport{socketio.TransportWebSocket, socketio.TransportPolling},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if serverURL == "" {
		serverURL = DefaultURL
	}
	return &Client{
		url:    serverURL,
		config: cfg,
		disp:   newDispatcher(cfg.logger),
	}
}

// On registers fn for kind and returns its id. Unknown kinds are ignored
// and yield an empty id.
func (c *Client) On(kind EventKind, fn Listener) ListenerID {
	return c.disp.on(kind, fn)
}

// Off removes the listener registered under id. It reports whether a
// listener was removed.
func (c *Client) Off(id ListenerID) bool {
	return c.disp.off(id)
}

// Connect opens the connection, retrying failed attempts with a fixed
// delay. It returns nil without doing anything when the client is already
// connected or connecting.
//
// After Connect succeeds, a dropped connection is re-established in the
// background with the same policy. When every attempt fails the client
// stays disconnected until Connect is called again.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		c.config.logger.Debug("realtime already connected")
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel, c.done = cancel, done
	c.mu.Unlock()

	dialCtx, stop := context.WithCancel(ctx)
	defer stop()
	unlink := context.AfterFunc(runCtx, stop)
	defer unlink()

	conn, err := c.dial(dialCtx)
	if err != nil {
		c.release(done)
		cancel()
		close(done)
		if runCtx.Err() != nil {
			return ErrDisconnected
		}
		return err
	}

	c.mu.Lock()
	if runCtx.Err() != nil {
		c.mu.Unlock()
		conn.Close()
		close(done)
		return ErrDisconnected
	}
	c.conn = conn
	c.mu.Unlock()

	c.config.logger.Info("realtime connected", "url", c.url, "transport", conn.Transport())
	c.disp.emit(Event{Kind: EventConnected})
	go c.run(runCtx, conn, done)
	return nil
}

// Disconnect closes the connection and forgets the session. It is safe to
// call when not connected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel, conn := c.cancel, c.conn
	c.cancel, c.done, c.conn = nil, nil, nil
	c.sessionID = ""
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		conn.Close()
	}
}

// IsConnected reports whether the connection is currently open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return false
	}
	select {
	case <-conn.Done():
		return false
	default:
		return true
	}
}

// Transport returns the transport of the open connection, or "" when not
// connected.
func (c *Client) Transport() socketio.Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ""
	}
	return c.conn.Transport()
}

// release clears the lifecycle fields if they still belong to done.
func (c *Client) release(done chan struct{}) {
	c.mu.Lock()
	if c.done == done {
		c.cancel, c.done = nil, nil
	}
	c.mu.Unlock()
}

func (c *Client) dial(ctx context.Context) (*socketio.Conn, error) {
	opts := []socketio.Option{
		socketio.WithTransports(c.config.transports...),
		socketio.WithLogger(c.config.logger),
	}
	if c.config.apiKey != "" {
		opts = append(opts, socketio.WithHeader("X-API-Key", c.config.apiKey))
	}

	attempts := c.config.attempts
	if attempts < 0 {
		attempts = 0
	}
	backoff := retry.WithMaxRetries(uint64(attempts), retry.NewConstant(c.config.delay))

	attempt := 0
	return retry.DoValue(ctx, backoff, func(ctx context.Context) (*socketio.Conn, error) {
		attempt++
		dctx, cancel := context.WithTimeout(ctx, c.config.dialTimeout)
		defer cancel()

		conn, err := socketio.Dial(dctx, c.url, opts...)
		if err == nil {
			return conn, nil
		}
		c.config.logger.Warn("realtime connect failed", "attempt", attempt, "error", err)
		if e, ok := socketio.AsError(err); ok && e.Rejected() {
			return nil, fmt.Errorf("ancrealtime: connect rejected: %w", err)
		}
		return nil, retry.RetryableError(fmt.Errorf("ancrealtime: connect: %w", err))
	})
}

// run reads events until the connection drops, then reconnects.
func (c *Client) run(ctx context.Context, conn *socketio.Conn, done chan struct{}) {
	defer close(done)

	for {
		c.pump(conn)

		reason := conn.Err()
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
			c.sessionID = ""
		}
		c.mu.Unlock()

		if reason != nil {
			c.config.logger.Warn("realtime disconnected", "error", reason)
		} else {
			c.config.logger.Info("realtime disconnected")
		}
		c.disp.emit(Event{Kind: EventDisconnected, Err: reason})

		if ctx.Err() != nil {
			return
		}

		next, err := c.dial(ctx)
		if err != nil {
			c.release(done)
			if ctx.Err() != nil {
				return
			}
			c.config.logger.Error("realtime reconnect failed", "error", err)
			c.disp.emit(Event{Kind: EventError, Err: err})
			return
		}

		c.mu.Lock()
		if ctx.Err() != nil {
			c.mu.Unlock()
			next.Close()
			return
		}
		c.conn = next
		c.mu.Unlock()

		c.config.logger.Info("realtime reconnected", "transport", next.Transport())
		c.disp.emit(Event{Kind: EventConnected})
		conn = next
	}
}

// pump dispatches server events in arrival order until conn closes.
func (c *Client) pump(conn *socketio.Conn) {
	for ev, err := range conn.Events() {
		if err != nil {
			return
		}
		kind := EventKind(ev.Name)
		switch kind {
		case EventProcessedAudio, EventMetricsUpdate:
			c.disp.emit(Event{Kind: kind, Data: ev.Data()})
		case EventError:
			c.config.logger.Error("realtime server error", "data", string(ev.Data()))
			c.disp.emit(Event{Kind: kind, Data: ev.Data()})
		default:
			c.config.logger.Debug("realtime event ignored", "event", ev.Name)
		}
	}
}
