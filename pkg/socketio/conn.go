package socketio

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultPath is the Engine.IO endpoint path used by Socket.IO servers.
const DefaultPath = "/socket.io/"

// Option configures Dial.
type Option func(*dialConfig)

type dialConfig struct {
	path       string
	transports []Transport
	header     http.Header
	httpClient *http.Client
	logger     *slog.Logger
}

// WithPath overrides the Engine.IO endpoint path.
func WithPath(path string) Option {
	return func(c *dialConfig) {
		c.path = path
	}
}

// WithTransports sets the transports to try, in order.
func WithTransports(ts ...Transport) Option {
	return func(c *dialConfig) {
		c.transports = ts
	}
}

// WithHeader adds a header sent with every handshake and polling request.
func WithHeader(key, value string) Option {
	return func(c *dialConfig) {
		c.header.Add(key, value)
	}
}

// WithHTTPClient sets the HTTP client used by the polling transport.
func WithHTTPClient(client *http.Client) Option {
	return func(c *dialConfig) {
		c.httpClient = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *dialConfig) {
		c.logger = logger
	}
}

// Event is a server-pushed event.
type Event struct {
	Name string
	Args []json.RawMessage
}

// Data returns the first argument, or nil when the event carried none.
func (e *Event) Data() json.RawMessage {
	if len(e.Args) == 0 {
		return nil
	}
	return e.Args[0]
}

// Conn is a connection to the default namespace of a Socket.IO server.
type Conn struct {
	t      transport
	hs     handshake
	logger *slog.Logger

	sid       string
	connectCh chan error
	pinged    chan struct{}
	eventsCh  chan eventOrError
	done      chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	err error

	partial *binaryEvent
}

type eventOrError struct {
	event *Event
	err   error
}

// binaryEvent collects attachments for a BINARY_EVENT packet.
type binaryEvent struct {
	pkt         socketPacket
	attachments [][]byte
}

// Dial connects to the Socket.IO server at rawURL. Transports are tried in
// order until one completes the Engine.IO handshake; the namespace connect
// is then awaited until ctx expires. A connect_error from the server is
// returned as *Error without trying further transports.
func Dial(ctx context.Context, rawURL string, opts ...Option) (*Conn, error) {
	cfg := &dialConfig{
		path:       DefaultPath,
		transports: []Transport{TransportWebSocket, TransportPolling},
		header:     http.Header{},
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("socketio: parse url: %w", err)
	}
	if len(cfg.transports) == 0 {
		return nil, fmt.Errorf("socketio: no transports configured")
	}

	var lastErr error
	for _, kind := range cfg.transports {
		t := newTransport(kind, base, cfg)
		if t == nil {
			return nil, fmt.Errorf("socketio: unknown transport %q", kind)
		}
		hs, pending, err := t.open(ctx)
		if err != nil {
			cfg.logger.Debug("socketio transport failed", "transport", kind, "error", err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return connect(ctx, t, hs, pending, cfg.logger)
	}
	return nil, lastErr
}

func newTransport(kind Transport, base *url.URL, cfg *dialConfig) transport {
	switch kind {
	case TransportWebSocket:
		return &websocketTransport{
			base:   base,
			path:   cfg.path,
			header: cfg.header,
			dialer: &websocket.Dialer{
				Proxy:            http.ProxyFromEnvironment,
				HandshakeTimeout: 10 * time.Second,
			},
		}
	case TransportPolling:
		return &pollingTransport{
			base:   base,
			path:   cfg.path,
			header: cfg.header,
			client: cfg.httpClient,
		}
	}
	return nil
}

func connect(ctx context.Context, t transport, hs handshake, pending []enginePacket, logger *slog.Logger) (*Conn, error) {
	c := &Conn{
		t:         t,
		hs:        hs,
		logger:    logger.With("transport", t.kind()),
		connectCh: make(chan error, 1),
		pinged:    make(chan struct{}, 1),
		eventsCh:  make(chan eventOrError, 100),
		done:      make(chan struct{}),
	}

	go c.readLoop(pending)
	go c.watchdog()

	if err := t.write(enginePacket{typ: engineMessage, data: string(packetConnect)}); err != nil {
		c.shutdown(err)
		return nil, err
	}

	select {
	case err := <-c.connectCh:
		if err != nil {
			c.shutdown(err)
			return nil, err
		}
	case <-c.done:
		if err := c.Err(); err != nil {
			return nil, err
		}
		return nil, ErrClosed
	case <-ctx.Done():
		c.shutdown(ctx.Err())
		return nil, ctx.Err()
	}

	c.logger.Debug("socketio connected", "sid", c.sid, "engine_sid", hs.SID)
	return c, nil
}

// Emit sends an event with the given arguments. Arguments are encoded with
// encoding/json.
func (c *Conn) Emit(event string, args ...any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	pkt, err := eventPacket(event, args...)
	if err != nil {
		return err
	}
	return c.t.write(enginePacket{typ: engineMessage, data: pkt.encode()})
}

// Events returns an iterator over server events. The iteration ends when the
// connection closes; a non-nil error is yielded first unless Close was
// called.
func (c *Conn) Events() iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		for item := range c.eventsCh {
			if !yield(item.event, item.err) {
				return
			}
			if item.err != nil {
				return
			}
		}
	}
}

// Done is closed when the connection ends.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the connection ended, or nil while it is open or
// after Close.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// ID returns the socket id assigned on namespace connect.
func (c *Conn) ID() string {
	return c.sid
}

// Transport returns the transport in use.
func (c *Conn) Transport() Transport {
	return c.t.kind()
}

// Close disconnects from the namespace and closes the transport.
func (c *Conn) Close() error {
	select {
	case <-c.done:
		return nil
	default:
	}
	c.t.write(enginePacket{typ: engineMessage, data: string(packetDisconnect)})
	c.shutdown(nil)
	return nil
}

func (c *Conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
		c.t.close()
		if err != nil {
			c.logger.Debug("socketio closed", "error", err)
		}
	})
}

func (c *Conn) readLoop(pending []enginePacket) {
	defer close(c.eventsCh)

	for _, p := range pending {
		if !c.handle(p) {
			c.pushErr()
			return
		}
	}
	for {
		pkts, err := c.t.read()
		if err != nil {
			c.shutdown(fmt.Errorf("socketio: read: %w", err))
			c.pushErr()
			return
		}
		for _, p := range pkts {
			if !c.handle(p) {
				c.pushErr()
				return
			}
		}
	}
}

// pushErr delivers the close reason to Events. Nothing is sent after Close.
func (c *Conn) pushErr() {
	if err := c.Err(); err != nil {
		select {
		case c.eventsCh <- eventOrError{err: err}:
		default:
		}
	}
}

// handle processes one engine packet and reports whether reading should
// continue.
func (c *Conn) handle(p enginePacket) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	if p.isBinary() {
		return c.handleAttachment(p.binary)
	}

	switch p.typ {
	case enginePing:
		select {
		case c.pinged <- struct{}{}:
		default:
		}
		if err := c.t.write(enginePacket{typ: enginePong, data: p.data}); err != nil {
			c.shutdown(err)
			return false
		}
	case engineClose:
		c.shutdown(ErrServerDisconnect)
		return false
	case engineMessage:
		return c.handleSocket(p.data)
	}
	return true
}

func (c *Conn) handleSocket(data string) bool {
	pkt, err := parseSocketPacket(data)
	if err != nil {
		c.logger.Warn("socketio: dropping packet", "error", err)
		return true
	}
	if pkt.namespace != "/" {
		return true
	}

	switch pkt.typ {
	case packetConnect:
		var ack struct {
			SID string `json:"sid"`
		}
		if len(pkt.data) > 0 {
			json.Unmarshal(pkt.data, &ack)
		}
		c.sid = ack.SID
		c.signalConnect(nil)

	case packetConnectError:
		var body struct {
			Message string `json:"message"`
		}
		if len(pkt.data) > 0 {
			if err := json.Unmarshal(pkt.data, &body); err != nil {
				body.Message = string(pkt.data)
			}
		}
		cerr := &Error{Transport: c.t.kind(), Message: body.Message, rejected: true}
		c.signalConnect(cerr)
		c.shutdown(cerr)
		return false

	case packetDisconnect:
		c.shutdown(ErrServerDisconnect)
		return false

	case packetEvent:
		return c.deliver(pkt.data)

	case packetBinaryEvent:
		if pkt.attachments == 0 {
			return c.deliver(pkt.data)
		}
		c.partial = &binaryEvent{pkt: pkt}
	}
	return true
}

func (c *Conn) handleAttachment(b []byte) bool {
	if c.partial == nil {
		c.logger.Warn("socketio: unexpected binary attachment")
		return true
	}
	c.partial.attachments = append(c.partial.attachments, b)
	if len(c.partial.attachments) < c.partial.pkt.attachments {
		return true
	}

	be := c.partial
	c.partial = nil
	data, err := fillPlaceholders(be.pkt.data, be.attachments)
	if err != nil {
		c.logger.Warn("socketio: dropping binary event", "error", err)
		return true
	}
	return c.deliver(data)
}

func (c *Conn) deliver(data json.RawMessage) bool {
	name, args, err := splitEvent(data)
	if err != nil {
		c.logger.Warn("socketio: dropping event", "error", err)
		return true
	}
	select {
	case c.eventsCh <- eventOrError{event: &Event{Name: name, Args: args}}:
		return true
	case <-c.done:
		return false
	}
}

func (c *Conn) signalConnect(err error) {
	select {
	case c.connectCh <- err:
	default:
	}
}

// watchdog closes the connection when no ping arrives within
// pingInterval + pingTimeout.
func (c *Conn) watchdog() {
	timeout := time.Duration(c.hs.PingInterval+c.hs.PingTimeout) * time.Millisecond
	if timeout <= 0 {
		return
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-c.pinged:
			timer.Reset(timeout)
		case <-timer.C:
			c.shutdown(ErrPingTimeout)
			return
		}
	}
}
