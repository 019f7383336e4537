package socketio

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestParseEnginePacket(t *testing.T) {
	tests := []struct {
		in      string
		typ     byte
		data    string
		bin     bool
		wantErr bool
	}{
		{in: "2", typ: enginePing},
		{in: "2hello", typ: enginePing, data: "hello"},
		{in: `42["a",1]`, typ: engineMessage, data: `2["a",1]`},
		{in: "6", typ: engineNoop},
		{in: "bAQID", bin: true},
		{in: "", wantErr: true},
		{in: "9", wantErr: true},
		{in: "b!!", wantErr: true},
	}

	for _, tt := range tests {
		p, err := parseEnginePacket(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseEnginePacket(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseEnginePacket(%q): %v", tt.in, err)
			continue
		}
		if p.isBinary() != tt.bin {
			t.Errorf("parseEnginePacket(%q).isBinary() = %v, want %v", tt.in, p.isBinary(), tt.bin)
		}
		if tt.bin {
			if string(p.binary) != "\x01\x02\x03" {
				t.Errorf("binary = %v", p.binary)
			}
			continue
		}
		if p.typ != tt.typ || p.data != tt.data {
			t.Errorf("parseEnginePacket(%q) = %q %q, want %q %q", tt.in, p.typ, p.data, tt.typ, tt.data)
		}
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	pkts := []enginePacket{
		{typ: engineMessage, data: "0"},
		{typ: enginePong},
		{bin: true, binary: []byte{0xff, 0x00}},
	}
	body := encodePayload(pkts)
	want := "40\x1e3\x1eb/wA="
	if body != want {
		t.Fatalf("encodePayload = %q, want %q", body, want)
	}

	got, err := decodePayload(body)
	if err != nil {
		t.Fatalf("decodePayload: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].String() != "40" || got[1].String() != "3" {
		t.Errorf("text packets = %q %q", got[0].String(), got[1].String())
	}
	if !got[2].isBinary() || string(got[2].binary) != "\xff\x00" {
		t.Errorf("binary packet = %+v", got[2])
	}

	if pkts, err := decodePayload(""); err != nil || pkts != nil {
		t.Errorf("decodePayload(\"\") = %v, %v", pkts, err)
	}
}

func TestParseHandshake(t *testing.T) {
	p := enginePacket{typ: engineOpen, data: `{"sid":"abc","upgrades":["websocket"],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`}
	hs, err := parseHandshake(p)
	if err != nil {
		t.Fatalf("parseHandshake: %v", err)
	}
	if hs.SID != "abc" || hs.PingInterval != 25000 || hs.PingTimeout != 20000 {
		t.Errorf("handshake = %+v", hs)
	}

	if _, err := parseHandshake(enginePacket{typ: engineMessage, data: "{}"}); err == nil {
		t.Error("expected error for non-open packet")
	}
	if _, err := parseHandshake(enginePacket{typ: engineOpen, data: `{}`}); err == nil {
		t.Error("expected error for missing sid")
	}
}

func TestParseSocketPacket(t *testing.T) {
	tests := []struct {
		in          string
		typ         byte
		namespace   string
		id          int
		attachments int
		data        string
	}{
		{in: "0", typ: packetConnect, namespace: "/", id: -1},
		{in: `0{"sid":"x"}`, typ: packetConnect, namespace: "/", id: -1, data: `{"sid":"x"}`},
		{in: `2["hello",1]`, typ: packetEvent, namespace: "/", id: -1, data: `["hello",1]`},
		{in: `2/admin,["hello"]`, typ: packetEvent, namespace: "/admin", id: -1, data: `["hello"]`},
		{in: `212["ack"]`, typ: packetEvent, namespace: "/", id: 12, data: `["ack"]`},
		{in: `51-["bin",{"_placeholder":true,"num":0}]`, typ: packetBinaryEvent, namespace: "/", id: -1, attachments: 1, data: `["bin",{"_placeholder":true,"num":0}]`},
		{in: `4{"message":"nope"}`, typ: packetConnectError, namespace: "/", id: -1, data: `{"message":"nope"}`},
		{in: "1/chat", typ: packetDisconnect, namespace: "/chat", id: -1},
	}

	for _, tt := range tests {
		p, err := parseSocketPacket(tt.in)
		if err != nil {
			t.Errorf("parseSocketPacket(%q): %v", tt.in, err)
			continue
		}
		if p.typ != tt.typ || p.namespace != tt.namespace || p.id != tt.id || p.attachments != tt.attachments || string(p.data) != tt.data {
			t.Errorf("parseSocketPacket(%q) = {%q %q %d %d %s}", tt.in, p.typ, p.namespace, p.id, p.attachments, p.data)
		}
	}

	for _, bad := range []string{"", "9", "5x-[]"} {
		if _, err := parseSocketPacket(bad); err == nil {
			t.Errorf("parseSocketPacket(%q) expected error", bad)
		}
	}
}

func TestEventPacketEncode(t *testing.T) {
	p, err := eventPacket("join_session", map[string]string{"session_id": "s1"})
	if err != nil {
		t.Fatalf("eventPacket: %v", err)
	}
	want := `2["join_session",{"session_id":"s1"}]`
	if got := p.encode(); got != want {
		t.Errorf("encode = %s, want %s", got, want)
	}

	name, args, err := splitEvent(p.data)
	if err != nil {
		t.Fatalf("splitEvent: %v", err)
	}
	if name != "join_session" || len(args) != 1 {
		t.Errorf("splitEvent = %q, %d args", name, len(args))
	}

	if _, _, err := splitEvent(json.RawMessage(`[]`)); err == nil {
		t.Error("expected error for empty event")
	}
	if _, _, err := splitEvent(json.RawMessage(`[1]`)); err == nil {
		t.Error("expected error for non-string name")
	}
}

func TestFillPlaceholders(t *testing.T) {
	data := json.RawMessage(`["processed_audio",{"audio_data":{"_placeholder":true,"num":0},"meta":[{"_placeholder":true,"num":1}],"n":3}]`)
	out, err := fillPlaceholders(data, [][]byte{{1, 2}, {3}})
	if err != nil {
		t.Fatalf("fillPlaceholders: %v", err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(out, &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var body struct {
		AudioData []byte   `json:"audio_data"`
		Meta      [][]byte `json:"meta"`
		N         int      `json:"n"`
	}
	if err := json.Unmarshal(items[1], &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if string(body.AudioData) != "\x01\x02" {
		t.Errorf("audio_data = %v", body.AudioData)
	}
	if len(body.Meta) != 1 || base64.StdEncoding.EncodeToString(body.Meta[0]) != "Aw==" {
		t.Errorf("meta = %v", body.Meta)
	}
	if body.N != 3 {
		t.Errorf("n = %d, want 3", body.N)
	}

	if _, err := fillPlaceholders(json.RawMessage(`[{"_placeholder":true,"num":2}]`), [][]byte{{1}}); err == nil {
		t.Error("expected out of range error")
	}
}
