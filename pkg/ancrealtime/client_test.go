package ancrealtime_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haivivi/ancpanel/pkg/ancrealtime"
	"github.com/haivivi/ancpanel/pkg/socketio/socketiotest"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newClient(t *testing.T, srv *socketiotest.Server, opts ...ancrealtime.Option) *ancrealtime.Client {
	t.Helper()
	opts = append([]ancrealtime.Option{
		ancrealtime.WithLogger(quiet()),
		ancrealtime.WithReconnect(2, 10*time.Millisecond),
		ancrealtime.WithDialTimeout(2 * time.Second),
	}, opts...)
	c := ancrealtime.NewClient(srv.URL, opts...)
	t.Cleanup(c.Disconnect)
	return c
}

func connect(t *testing.T, c *ancrealtime.Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

// events collects listener calls for one kind.
func events(c *ancrealtime.Client, kind ancrealtime.EventKind) <-chan ancrealtime.Event {
	ch := make(chan ancrealtime.Event, 16)
	c.On(kind, func(ev ancrealtime.Event) { ch <- ev })
	return ch
}

func wait(t *testing.T, ch <-chan ancrealtime.Event) ancrealtime.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return ancrealtime.Event{}
	}
}

func expectNoMessage(t *testing.T, srv *socketiotest.Server) {
	t.Helper()
	select {
	case m := <-srv.Received:
		t.Fatalf("unexpected message %s %s", m.Name, m.Data)
	case <-time.After(100 * time.Millisecond):
	}
}

func sessionOf(t *testing.T, m socketiotest.Message) string {
	t.Helper()
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(m.Data, &body); err != nil {
		t.Fatalf("decode %s: %v", m.Data, err)
	}
	return body.SessionID
}

func TestConnectIdempotent(t *testing.T) {
	srv := socketiotest.NewServer(t)
	c := newClient(t, srv)
	connected := events(c, ancrealtime.EventConnected)

	connect(t, c)
	connect(t, c)

	wait(t, connected)
	if !c.IsConnected() {
		t.Fatal("IsConnected() = false")
	}
	if n := srv.Connects(); n != 1 {
		t.Errorf("server connects = %d, want 1", n)
	}
	select {
	case <-connected:
		t.Error("connected fired twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAPIKeyHeader(t *testing.T) {
	srv := socketiotest.NewServer(t)
	c := newClient(t, srv, ancrealtime.WithAPIKey("rt-key"))
	connect(t, c)

	if got := srv.Header().Get("X-API-Key"); got != "rt-key" {
		t.Errorf("X-API-Key = %q, want rt-key", got)
	}
}

func TestJoinThenLeave(t *testing.T) {
	srv := socketiotest.NewServer(t)
	c := newClient(t, srv)
	connect(t, c)

	if err := c.JoinSession("s1"); err != nil {
		t.Fatalf("JoinSession: %v", err)
	}
	if c.SessionID() != "s1" {
		t.Errorf("SessionID = %q", c.SessionID())
	}
	if err := c.LeaveSession(); err != nil {
		t.Fatalf("LeaveSession: %v", err)
	}
	if c.SessionID() != "" {
		t.Errorf("SessionID after leave = %q", c.SessionID())
	}
	if err := c.LeaveSession(); err != nil {
		t.Fatalf("second LeaveSession: %v", err)
	}

	join := srv.Next(t)
	if join.Name != "join_session" || sessionOf(t, join) != "s1" {
		t.Errorf("first message = %s %s", join.Name, join.Data)
	}
	leave := srv.Next(t)
	if leave.Name != "leave_session" || sessionOf(t, leave) != "s1" {
		t.Errorf("second message = %s %s", leave.Name, leave.Data)
	}
	expectNoMessage(t, srv)
}

func TestJoinWhileInSessionLeavesFirst(t *testing.T) {
	srv := socketiotest.NewServer(t)
	c := newClient(t, srv)
	connect(t, c)

	if err := c.JoinSession("old"); err != nil {
		t.Fatalf("JoinSession: %v", err)
	}
	if err := c.JoinSession("new"); err != nil {
		t.Fatalf("JoinSession: %v", err)
	}

	want := []struct{ name, session string }{
		{"join_session", "old"},
		{"leave_session", "old"},
		{"join_session", "new"},
	}
	for _, w := range want {
		m := srv.Next(t)
		if m.Name != w.name || sessionOf(t, m) != w.session {
			t.Errorf("message = %s %s, want %s %s", m.Name, m.Data, w.name, w.session)
		}
	}
	if c.SessionID() != "new" {
		t.Errorf("SessionID = %q, want new", c.SessionID())
	}
}

func TestJoinRequiresConnection(t *testing.T) {
	c := ancrealtime.NewClient("ws://127.0.0.1:1", ancrealtime.WithLogger(quiet()))
	if err := c.JoinSession("s1"); !errors.Is(err, ancrealtime.ErrNotConnected) {
		t.Errorf("JoinSession = %v, want ErrNotConnected", err)
	}
	if c.SessionID() != "" {
		t.Errorf("SessionID = %q", c.SessionID())
	}
}

func TestNoSessionSendsNothing(t *testing.T) {
	srv := socketiotest.NewServer(t)
	var logs bytes.Buffer
	c := newClient(t, srv, ancrealtime.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	connect(t, c)

	if err := c.RequestMetrics(); !errors.Is(err, ancrealtime.ErrNoActiveSession) {
		t.Errorf("RequestMetrics = %v, want ErrNoActiveSession", err)
	}
	if err := c.SendAudioChunk([]byte{1, 2}, nil); !errors.Is(err, ancrealtime.ErrNoActiveSession) {
		t.Errorf("SendAudioChunk = %v, want ErrNoActiveSession", err)
	}
	expectNoMessage(t, srv)

	if n := strings.Count(logs.String(), "No active session"); n != 2 {
		t.Errorf("precondition logged %d times, want 2: %s", n, logs.String())
	}
}

func TestNoSessionWithoutConnection(t *testing.T) {
	c := ancrealtime.NewClient("", ancrealtime.WithLogger(quiet()))
	if err := c.RequestMetrics(); !errors.Is(err, ancrealtime.ErrNoActiveSession) {
		t.Errorf("RequestMetrics = %v, want ErrNoActiveSession", err)
	}
	if err := c.SendAudioChunk(nil, nil); !errors.Is(err, ancrealtime.ErrNoActiveSession) {
		t.Errorf("SendAudioChunk = %v, want ErrNoActiveSession", err)
	}
}

func TestSendAudioChunk(t *testing.T) {
	srv := socketiotest.NewServer(t)
	c := newClient(t, srv)
	connect(t, c)

	if err := c.JoinSession("s1"); err != nil {
		t.Fatalf("JoinSession: %v", err)
	}
	srv.Next(t) // join_session

	zero := 0.0
	idx := 10
	sends := []*ancrealtime.AudioChunkOptions{
		nil,
		nil,
		{SampleRate: 16000, Algorithm: "rls", Intensity: &zero, ChunkIndex: &idx},
		nil,
	}
	for _, opts := range sends {
		if err := c.SendAudioChunk([]byte{0xde, 0xad}, opts); err != nil {
			t.Fatalf("SendAudioChunk: %v", err)
		}
	}

	want := []ancrealtime.AudioChunk{
		{SessionID: "s1", SampleRate: 48000, Algorithm: "nlms", Intensity: 1.0, ChunkIndex: 0},
		{SessionID: "s1", SampleRate: 48000, Algorithm: "nlms", Intensity: 1.0, ChunkIndex: 1},
		{SessionID: "s1", SampleRate: 16000, Algorithm: "rls", Intensity: 0, ChunkIndex: 10},
		{SessionID: "s1", SampleRate: 48000, Algorithm: "nlms", Intensity: 1.0, ChunkIndex: 11},
	}
	for _, w := range want {
		m := srv.Next(t)
		if m.Name != "audio_chunk" {
			t.Fatalf("event = %q, want audio_chunk", m.Name)
		}
		var got ancrealtime.AudioChunk
		if err := json.Unmarshal(m.Data, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if string(got.AudioData) != "\xde\xad" {
			t.Errorf("audio_data = %v", got.AudioData)
		}
		if got.SessionID != w.SessionID || got.SampleRate != w.SampleRate || got.Algorithm != w.Algorithm ||
			got.Intensity != w.Intensity || got.ChunkIndex != w.ChunkIndex {
			t.Errorf("chunk = %+v, want %+v", got, w)
		}
	}

	if err := c.RequestMetrics(); err != nil {
		t.Fatalf("RequestMetrics: %v", err)
	}
	m := srv.Next(t)
	if m.Name != "request_metrics" || sessionOf(t, m) != "s1" {
		t.Errorf("message = %s %s", m.Name, m.Data)
	}
}

func TestInboundEvents(t *testing.T) {
	srv := socketiotest.NewServer(t)
	c := newClient(t, srv)

	var mu sync.Mutex
	var order []string
	done := make(chan struct{}, 4)
	c.On(ancrealtime.EventProcessedAudio, func(ev ancrealtime.Event) {
		mu.Lock()
		order = append(order, "a:"+string(ev.Data))
		mu.Unlock()
		done <- struct{}{}
	})
	c.On(ancrealtime.EventProcessedAudio, func(ev ancrealtime.Event) {
		mu.Lock()
		order = append(order, "b:"+string(ev.Data))
		mu.Unlock()
		done <- struct{}{}
	})
	metrics := events(c, ancrealtime.EventMetricsUpdate)
	serverErrors := events(c, ancrealtime.EventError)
	connect(t, c)
	srv.WaitConnect(t)

	srv.Emit("processed_audio", map[string]int{"chunk_index": 1})
	for range 2 {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for listeners")
		}
	}
	mu.Lock()
	if len(order) != 2 || order[0] != `a:{"chunk_index":1}` || order[1] != `b:{"chunk_index":1}` {
		t.Errorf("order = %v", order)
	}
	mu.Unlock()

	srv.Emit("metrics_update", map[string]float64{"snr_db": 18.5})
	if ev := wait(t, metrics); string(ev.Data) != `{"snr_db":18.5}` {
		t.Errorf("metrics data = %s", ev.Data)
	}

	srv.Emit("error", map[string]string{"message": "bad chunk"})
	if ev := wait(t, serverErrors); !strings.Contains(string(ev.Data), "bad chunk") {
		t.Errorf("error data = %s", ev.Data)
	}
}

func TestBinaryProcessedAudio(t *testing.T) {
	srv := socketiotest.NewServer(t)
	c := newClient(t, srv)
	processed := events(c, ancrealtime.EventProcessedAudio)
	connect(t, c)
	srv.WaitConnect(t)

	srv.EmitBinary("processed_audio", map[string]any{
		"session_id":  "s1",
		"audio_data":  socketiotest.Placeholder(0),
		"chunk_index": 4,
	}, []byte{1, 2, 3, 4})

	var pa ancrealtime.ProcessedAudio
	if err := wait(t, processed).Decode(&pa); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(pa.AudioData) != "\x01\x02\x03\x04" || pa.ChunkIndex != 4 {
		t.Errorf("processed = %+v", pa)
	}
}

func TestDisconnect(t *testing.T) {
	srv := socketiotest.NewServer(t)
	c := newClient(t, srv)
	disconnected := events(c, ancrealtime.EventDisconnected)
	connect(t, c)
	if err := c.JoinSession("s1"); err != nil {
		t.Fatalf("JoinSession: %v", err)
	}

	c.Disconnect()
	c.Disconnect()

	ev := wait(t, disconnected)
	if ev.Err != nil {
		t.Errorf("disconnected Err = %v, want nil", ev.Err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Disconnect")
	}
	if c.SessionID() != "" {
		t.Errorf("SessionID = %q after Disconnect", c.SessionID())
	}
	if err := c.SendAudioChunk([]byte{1}, nil); !errors.Is(err, ancrealtime.ErrNoActiveSession) {
		t.Errorf("SendAudioChunk = %v, want ErrNoActiveSession", err)
	}

	// Connect works again after Disconnect.
	connect(t, c)
	if !c.IsConnected() {
		t.Error("IsConnected() = false after reconnect")
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	srv := socketiotest.NewServer(t)
	c := newClient(t, srv)
	connected := events(c, ancrealtime.EventConnected)
	disconnected := events(c, ancrealtime.EventDisconnected)
	connect(t, c)
	wait(t, connected)
	if err := c.JoinSession("s1"); err != nil {
		t.Fatalf("JoinSession: %v", err)
	}

	srv.DropAll()

	if ev := wait(t, disconnected); ev.Err == nil {
		t.Error("disconnected Err = nil after server drop")
	}
	wait(t, connected)
	if !c.IsConnected() {
		t.Error("IsConnected() = false after automatic reconnect")
	}
	if c.SessionID() != "" {
		t.Errorf("SessionID = %q, session should not survive a disconnect", c.SessionID())
	}
	if n := srv.Connects(); n != 2 {
		t.Errorf("server connects = %d, want 2", n)
	}
}

func TestReconnectExhausted(t *testing.T) {
	srv := socketiotest.NewServer(t)
	c := newClient(t, srv)
	failures := events(c, ancrealtime.EventError)
	connect(t, c)

	srv.Reject(true)
	srv.DropAll()

	ev := wait(t, failures)
	if ev.Err == nil {
		t.Fatal("error event without Err")
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after exhausting reconnects")
	}

	srv.Reject(false)
	connect(t, c)
	if !c.IsConnected() {
		t.Error("Connect did not recover after exhaustion")
	}
}

func TestConnectFails(t *testing.T) {
	srv := socketiotest.NewServer(t)
	srv.Reject(true)
	c := newClient(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err == nil {
		t.Fatal("expected error")
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true")
	}

	srv.Reject(false)
	connect(t, c)
}

func TestConnectRejected(t *testing.T) {
	srv := socketiotest.NewServer(t, socketiotest.WithConnectError("invalid api key"))
	c := newClient(t, srv, ancrealtime.WithReconnect(5, time.Second))

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.Connect(ctx)
	if err == nil || !strings.Contains(err.Error(), "invalid api key") {
		t.Fatalf("Connect = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("a refused connect should not be retried")
	}
}
