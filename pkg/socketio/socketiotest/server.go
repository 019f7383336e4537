// Package socketiotest provides an in-process Socket.IO server for tests.
//
// The server speaks just enough Engine.IO v4 / Socket.IO v5 over both the
// websocket and polling transports to exercise a client: handshake, ping,
// namespace connect, events in both directions and binary events from the
// server.
package socketiotest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// pollWait bounds how long a polling GET is held open with nothing to send.
const pollWait = 2 * time.Second

// Message is an event received from a client.
type Message struct {
	Name string
	Data json.RawMessage
}

// Option configures a Server.
type Option func(*Server)

// WithPing sets the ping interval and timeout advertised in the handshake.
// A zero interval disables server pings.
func WithPing(interval, timeout time.Duration) Option {
	return func(s *Server) {
		s.pingInterval = interval
		s.pingTimeout = timeout
	}
}

// WithoutWebSocket makes websocket handshakes fail with 400 so clients fall
// back to polling.
func WithoutWebSocket() Option {
	return func(s *Server) {
		s.noWebSocket = true
	}
}

// WithConnectError rejects namespace connects with the given message.
func WithConnectError(msg string) Option {
	return func(s *Server) {
		s.connectErr = msg
	}
}

// WithPostDelay holds every polling POST for d before answering, so
// overlapping POSTs from one client are easy to observe.
func WithPostDelay(d time.Duration) Option {
	return func(s *Server) {
		s.postDelay = d
	}
}

// Server is a fake Socket.IO server backed by httptest.
type Server struct {
	// URL is the base URL of the server (http://127.0.0.1:port).
	URL string

	// Received carries every event emitted by any client.
	Received chan Message

	srv          *httptest.Server
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	pingTimeout  time.Duration
	noWebSocket  bool
	connectErr   string
	postDelay    time.Duration

	connected chan string
	overlaps  atomic.Int32

	mu       sync.Mutex
	sessions map[string]*session
	connects int
	header   http.Header
	reject   bool
}

type frame struct {
	text  string
	bin   []byte
	isBin bool
}

type session struct {
	sid       string
	transport string
	out       chan frame
	done      chan struct{}
	closeOnce sync.Once
	joined    bool
	posting   atomic.Bool
}

func (ss *session) send(f frame) {
	select {
	case ss.out <- f:
	case <-ss.done:
	}
}

func (ss *session) close() {
	ss.closeOnce.Do(func() { close(ss.done) })
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		Received:     make(chan Message, 100),
		connected:    make(chan string, 16),
		sessions:     make(map[string]*session),
		pingInterval: 25 * time.Second,
		pingTimeout:  20 * time.Second,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/socket.io/", s.handle)
	s.srv = httptest.NewServer(mux)
	s.URL = s.srv.URL
	t.Cleanup(s.Close)
	return s
}

// Close drops every client and shuts the server down.
func (s *Server) Close() {
	s.DropAll()
	s.srv.Close()
}

// DropAll closes every open client session without a disconnect packet.
func (s *Server) DropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sid, ss := range s.sessions {
		ss.close()
		delete(s.sessions, sid)
	}
}

// Reject makes new handshakes fail with 503 while set.
func (s *Server) Reject(reject bool) {
	s.mu.Lock()
	s.reject = reject
	s.mu.Unlock()
}

// Connects returns how many namespace connects have been accepted.
func (s *Server) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// Overlaps returns how many polling POSTs arrived while another POST of the
// same session was still being handled. Each one closed its session.
func (s *Server) Overlaps() int {
	return int(s.overlaps.Load())
}

// Header returns the headers of the most recent handshake request.
func (s *Server) Header() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header.Clone()
}

// Emit sends an event to every connected client.
func (s *Server) Emit(name string, data any) {
	payload, err := json.Marshal([]any{name, data})
	if err != nil {
		panic(fmt.Sprintf("socketiotest: marshal %s: %v", name, err))
	}
	for _, ss := range s.joined() {
		ss.send(frame{text: "42" + string(payload)})
	}
}

// EmitBinary sends a binary event. data should reference the attachments
// with Placeholder.
func (s *Server) EmitBinary(name string, data any, attachments ...[]byte) {
	payload, err := json.Marshal([]any{name, data})
	if err != nil {
		panic(fmt.Sprintf("socketiotest: marshal %s: %v", name, err))
	}
	header := "45" + strconv.Itoa(len(attachments)) + "-" + string(payload)
	for _, ss := range s.joined() {
		ss.send(frame{text: header})
		for _, a := range attachments {
			ss.send(frame{bin: a, isBin: true})
		}
	}
}

// Placeholder returns the marker for the n-th binary attachment.
func Placeholder(n int) map[string]any {
	return map[string]any{"_placeholder": true, "num": n}
}

// Next returns the next event emitted by a client, failing the test after
// five seconds.
func (s *Server) Next(t testing.TB) Message {
	t.Helper()
	select {
	case m := <-s.Received:
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("socketiotest: timed out waiting for client event")
		return Message{}
	}
}

// WaitConnect waits for a namespace connect and returns its transport name.
func (s *Server) WaitConnect(t testing.TB) string {
	t.Helper()
	select {
	case tr := <-s.connected:
		return tr
	case <-time.After(5 * time.Second):
		t.Fatal("socketiotest: timed out waiting for client connect")
		return ""
	}
}

func (s *Server) joined() []*session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*session
	for _, ss := range s.sessions {
		if ss.joined {
			out = append(out, ss)
		}
	}
	return out
}

func (s *Server) newSession(transport string) *session {
	ss := &session{
		sid:       uuid.NewString(),
		transport: transport,
		out:       make(chan frame, 256),
		done:      make(chan struct{}),
	}
	s.mu.Lock()
	s.sessions[ss.sid] = ss
	s.mu.Unlock()
	return ss
}

func (s *Server) lookup(sid string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sid]
}

func (s *Server) remove(ss *session) {
	ss.close()
	s.mu.Lock()
	delete(s.sessions, ss.sid)
	s.mu.Unlock()
}

func (s *Server) handshake(sid string) string {
	b, _ := json.Marshal(map[string]any{
		"sid":          sid,
		"upgrades":     []string{},
		"pingInterval": s.pingInterval.Milliseconds(),
		"pingTimeout":  s.pingTimeout.Milliseconds(),
		"maxPayload":   1000000,
	})
	return "0" + string(b)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("EIO") != "4" {
		http.Error(w, `{"code":5,"message":"Unsupported protocol version"}`, http.StatusBadRequest)
		return
	}

	if q.Get("sid") == "" {
		s.mu.Lock()
		s.header = r.Header.Clone()
		reject := s.reject
		s.mu.Unlock()
		if reject {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	switch q.Get("transport") {
	case "websocket":
		if s.noWebSocket {
			http.Error(w, `{"code":3,"message":"Bad request"}`, http.StatusBadRequest)
			return
		}
		s.serveWebSocket(w, r)
	case "polling":
		s.servePolling(w, r)
	default:
		http.Error(w, `{"code":0,"message":"Transport unknown"}`, http.StatusBadRequest)
	}
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ss := s.newSession("websocket")
	defer s.remove(ss)

	ss.send(frame{text: s.handshake(ss.sid)})
	go s.writeWebSocket(conn, ss)

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt == websocket.TextMessage {
			s.handlePacket(ss, string(msg))
		}
	}
}

func (s *Server) writeWebSocket(conn *websocket.Conn, ss *session) {
	defer conn.Close()

	var tick <-chan time.Time
	if s.pingInterval > 0 {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case f := <-ss.out:
			var err error
			if f.isBin {
				err = conn.WriteMessage(websocket.BinaryMessage, f.bin)
			} else {
				err = conn.WriteMessage(websocket.TextMessage, []byte(f.text))
			}
			if err != nil {
				ss.close()
				return
			}
		case <-tick:
			if err := conn.WriteMessage(websocket.TextMessage, []byte("2")); err != nil {
				ss.close()
				return
			}
		case <-ss.done:
			return
		}
	}
}

func (s *Server) servePolling(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("sid")
	if sid == "" {
		if r.Method != http.MethodGet {
			http.Error(w, `{"code":2,"message":"Bad handshake method"}`, http.StatusBadRequest)
			return
		}
		ss := s.newSession("polling")
		if s.pingInterval > 0 {
			go pollingPinger(ss, s.pingInterval)
		}
		io.WriteString(w, s.handshake(ss.sid))
		return
	}

	ss := s.lookup(sid)
	if ss == nil {
		http.Error(w, `{"code":1,"message":"Session ID unknown"}`, http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		var batch []frame
		select {
		case f := <-ss.out:
			batch = append(batch, f)
		drain:
			for {
				select {
				case f := <-ss.out:
					batch = append(batch, f)
				default:
					break drain
				}
			}
		case <-ss.done:
			batch = append(batch, frame{text: "1"})
		case <-r.Context().Done():
			return
		case <-time.After(pollWait):
			batch = append(batch, frame{text: "6"})
		}
		parts := make([]string, len(batch))
		for i, f := range batch {
			if f.isBin {
				parts[i] = "b" + base64.StdEncoding.EncodeToString(f.bin)
			} else {
				parts[i] = f.text
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
		io.WriteString(w, strings.Join(parts, "\x1e"))

	case http.MethodPost:
		// Same as the reference server: a second concurrent POST is a
		// protocol error that ends the session.
		if !ss.posting.CompareAndSwap(false, true) {
			s.overlaps.Add(1)
			s.remove(ss)
			http.Error(w, "data request overlap", http.StatusBadRequest)
			return
		}
		defer ss.posting.Store(false)
		if s.postDelay > 0 {
			time.Sleep(s.postDelay)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, part := range strings.Split(string(body), "\x1e") {
			s.handlePacket(ss, part)
		}
		io.WriteString(w, "ok")

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func pollingPinger(ss *session, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ss.send(frame{text: "2"})
		case <-ss.done:
			return
		}
	}
}

func (s *Server) handlePacket(ss *session, text string) {
	if text == "" {
		return
	}
	switch text[0] {
	case '1':
		s.remove(ss)
	case '4':
		s.handleSocket(ss, text[1:])
	}
}

func (s *Server) handleSocket(ss *session, data string) {
	if data == "" {
		return
	}
	switch data[0] {
	case '0':
		if s.connectErr != "" {
			b, _ := json.Marshal(map[string]string{"message": s.connectErr})
			ss.send(frame{text: "44" + string(b)})
			return
		}
		s.mu.Lock()
		ss.joined = true
		s.connects++
		s.mu.Unlock()
		ss.send(frame{text: `40{"sid":"` + uuid.NewString() + `"}`})
		select {
		case s.connected <- ss.transport:
		default:
		}

	case '1':
		s.mu.Lock()
		ss.joined = false
		s.mu.Unlock()

	case '2':
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(data[1:]), &items); err != nil || len(items) == 0 {
			return
		}
		var m Message
		if err := json.Unmarshal(items[0], &m.Name); err != nil {
			return
		}
		if len(items) > 1 {
			m.Data = items[1]
		}
		s.Received <- m
	}
}
