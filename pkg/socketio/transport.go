package socketio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Transport names an Engine.IO transport.
type Transport string

const (
	// TransportWebSocket carries one engine packet per websocket frame.
	TransportWebSocket Transport = "websocket"

	// TransportPolling carries packet batches over HTTP long-polling.
	TransportPolling Transport = "polling"
)

const (
	// Time allowed to write a frame to the server.
	writeWait = 10 * time.Second

	// Maximum inbound websocket message size.
	maxMessageSize = 4 << 20
)

// transport is one Engine.IO connection. read is only called from the
// connection's read loop; write may be called concurrently.
type transport interface {
	kind() Transport
	open(ctx context.Context) (handshake, []enginePacket, error)
	read() ([]enginePacket, error)
	write(pkts ...enginePacket) error
	close() error
}

// endpoint builds the Engine.IO URL for the given transport.
func endpoint(base *url.URL, path string, t Transport, sid string) string {
	u := *base
	switch {
	case t == TransportWebSocket && u.Scheme == "http":
		u.Scheme = "ws"
	case t == TransportWebSocket && u.Scheme == "https":
		u.Scheme = "wss"
	case t == TransportPolling && u.Scheme == "ws":
		u.Scheme = "http"
	case t == TransportPolling && u.Scheme == "wss":
		u.Scheme = "https"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path

	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", string(t))
	if sid != "" {
		q.Set("sid", sid)
	}
	if t == TransportPolling {
		q.Set("t", uuid.NewString()[:8])
	}
	u.RawQuery = q.Encode()
	return u.String()
}

type websocketTransport struct {
	base   *url.URL
	path   string
	header http.Header
	dialer *websocket.Dialer

	conn *websocket.Conn
	mu   sync.Mutex
}

func (t *websocketTransport) kind() Transport { return TransportWebSocket }

func (t *websocketTransport) open(ctx context.Context) (handshake, []enginePacket, error) {
	target := endpoint(t.base, t.path, TransportWebSocket, "")
	conn, resp, err := t.dialer.DialContext(ctx, target, t.header)
	if err != nil {
		if resp != nil {
			return handshake{}, nil, &Error{
				Transport:  TransportWebSocket,
				Message:    fmt.Sprintf("failed to connect: %v", err),
				HTTPStatus: resp.StatusCode,
			}
		}
		return handshake{}, nil, fmt.Errorf("socketio: websocket dial: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)
	t.conn = conn

	// The open packet must arrive before anything else.
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}
	pkts, err := t.read()
	conn.SetReadDeadline(time.Time{})
	if err != nil {
		conn.Close()
		return handshake{}, nil, err
	}
	hs, err := parseHandshake(pkts[0])
	if err != nil {
		conn.Close()
		return handshake{}, nil, err
	}
	return hs, nil, nil
}

func (t *websocketTransport) read() ([]enginePacket, error) {
	mt, msg, err := t.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if mt == websocket.BinaryMessage {
		return []enginePacket{{bin: true, binary: msg}}, nil
	}
	p, err := parseEnginePacket(string(msg))
	if err != nil {
		return nil, err
	}
	return []enginePacket{p}, nil
}

func (t *websocketTransport) write(pkts ...enginePacket) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, p := range pkts {
		t.conn.SetWriteDeadline(time.Now().Add(writeWait))
		var err error
		if p.isBinary() {
			err = t.conn.WriteMessage(websocket.BinaryMessage, p.binary)
		} else {
			err = t.conn.WriteMessage(websocket.TextMessage, []byte(p.String()))
		}
		if err != nil {
			return fmt.Errorf("socketio: websocket write: %w", err)
		}
	}
	return nil
}

func (t *websocketTransport) close() error {
	if t.conn == nil {
		return nil
	}
	t.mu.Lock()
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.mu.Unlock()
	return t.conn.Close()
}

type pollingTransport struct {
	base   *url.URL
	path   string
	header http.Header
	client *http.Client

	sid    string
	ctx    context.Context
	cancel context.CancelFunc

	// Engine.IO allows one POST in flight per session.
	mu sync.Mutex
}

func (t *pollingTransport) kind() Transport { return TransportPolling }

func (t *pollingTransport) open(ctx context.Context) (handshake, []enginePacket, error) {
	t.ctx, t.cancel = context.WithCancel(context.Background())

	pkts, err := t.get(ctx)
	if err != nil {
		t.cancel()
		return handshake{}, nil, err
	}
	if len(pkts) == 0 {
		t.cancel()
		return handshake{}, nil, &Error{Transport: TransportPolling, Message: "empty handshake"}
	}
	hs, err := parseHandshake(pkts[0])
	if err != nil {
		t.cancel()
		return handshake{}, nil, err
	}
	t.sid = hs.SID
	return hs, pkts[1:], nil
}

func (t *pollingTransport) read() ([]enginePacket, error) {
	return t.get(t.ctx)
}

func (t *pollingTransport) get(ctx context.Context) ([]enginePacket, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint(t.base, t.path, TransportPolling, t.sid), nil)
	if err != nil {
		return nil, fmt.Errorf("socketio: create poll request: %w", err)
	}
	t.setHeaders(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("socketio: poll: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("socketio: read poll body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Transport:  TransportPolling,
			Message:    strings.TrimSpace(string(body)),
			HTTPStatus: resp.StatusCode,
		}
	}
	return decodePayload(string(body))
}

func (t *pollingTransport) write(pkts ...enginePacket) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	body := encodePayload(pkts)
	req, err := http.NewRequestWithContext(t.ctx, http.MethodPost, endpoint(t.base, t.path, TransportPolling, t.sid), strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("socketio: create post request: %w", err)
	}
	t.setHeaders(req)
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("socketio: post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &Error{
			Transport:  TransportPolling,
			Message:    "post rejected",
			HTTPStatus: resp.StatusCode,
		}
	}
	return nil
}

func (t *pollingTransport) setHeaders(req *http.Request) {
	for k, vs := range t.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
}

func (t *pollingTransport) close() error {
	if t.cancel != nil {
		t.cancel()
	}
	return nil
}
