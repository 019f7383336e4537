package socketio

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Engine.IO v4 packet types.
const (
	engineOpen    byte = '0'
	engineClose   byte = '1'
	enginePing    byte = '2'
	enginePong    byte = '3'
	engineMessage byte = '4'
	engineUpgrade byte = '5'
	engineNoop    byte = '6'
)

// Socket.IO v5 packet types, carried inside engine message packets.
const (
	packetConnect      byte = '0'
	packetDisconnect   byte = '1'
	packetEvent        byte = '2'
	packetAck          byte = '3'
	packetConnectError byte = '4'
	packetBinaryEvent  byte = '5'
	packetBinaryAck    byte = '6'
)

// payloadSeparator joins packets inside one HTTP long-polling payload.
const payloadSeparator = "\x1e"

// enginePacket is a single Engine.IO frame. Binary frames carry no type
// byte on the websocket transport and a 'b' prefix on polling.
type enginePacket struct {
	typ    byte
	data   string
	bin    bool
	binary []byte
}

func (p enginePacket) isBinary() bool {
	return p.bin
}

func (p enginePacket) String() string {
	return string(p.typ) + p.data
}

func parseEnginePacket(s string) (enginePacket, error) {
	if s == "" {
		return enginePacket{}, fmt.Errorf("socketio: empty engine packet")
	}
	if s[0] == 'b' {
		raw, err := base64.StdEncoding.DecodeString(s[1:])
		if err != nil {
			return enginePacket{}, fmt.Errorf("socketio: decode binary packet: %w", err)
		}
		return enginePacket{bin: true, binary: raw}, nil
	}
	if s[0] < engineOpen || s[0] > engineNoop {
		return enginePacket{}, fmt.Errorf("socketio: unknown engine packet type %q", s[0])
	}
	return enginePacket{typ: s[0], data: s[1:]}, nil
}

// encodePayload joins packets for a polling POST body.
func encodePayload(pkts []enginePacket) string {
	parts := make([]string, 0, len(pkts))
	for _, p := range pkts {
		if p.isBinary() {
			parts = append(parts, "b"+base64.StdEncoding.EncodeToString(p.binary))
			continue
		}
		parts = append(parts, p.String())
	}
	return strings.Join(parts, payloadSeparator)
}

// decodePayload splits a polling GET body into packets.
func decodePayload(body string) ([]enginePacket, error) {
	if body == "" {
		return nil, nil
	}
	parts := strings.Split(body, payloadSeparator)
	pkts := make([]enginePacket, 0, len(parts))
	for _, part := range parts {
		p, err := parseEnginePacket(part)
		if err != nil {
			return nil, err
		}
		pkts = append(pkts, p)
	}
	return pkts, nil
}

// handshake is the JSON body of the engine open packet.
type handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

func parseHandshake(p enginePacket) (handshake, error) {
	var hs handshake
	if p.typ != engineOpen {
		return hs, fmt.Errorf("socketio: expected open packet, got %q", p.typ)
	}
	if err := json.Unmarshal([]byte(p.data), &hs); err != nil {
		return hs, fmt.Errorf("socketio: parse handshake: %w", err)
	}
	if hs.SID == "" {
		return hs, fmt.Errorf("socketio: handshake missing sid")
	}
	return hs, nil
}

// socketPacket is a decoded Socket.IO packet.
type socketPacket struct {
	typ         byte
	namespace   string
	id          int // -1 when absent
	attachments int
	data        json.RawMessage
}

func (p socketPacket) encode() string {
	var b strings.Builder
	b.WriteByte(p.typ)
	if p.typ == packetBinaryEvent || p.typ == packetBinaryAck {
		b.WriteString(strconv.Itoa(p.attachments))
		b.WriteByte('-')
	}
	if p.namespace != "" && p.namespace != "/" {
		b.WriteString(p.namespace)
		b.WriteByte(',')
	}
	if p.id >= 0 {
		b.WriteString(strconv.Itoa(p.id))
	}
	b.Write(p.data)
	return b.String()
}

func parseSocketPacket(s string) (socketPacket, error) {
	p := socketPacket{id: -1, namespace: "/"}
	if s == "" {
		return p, fmt.Errorf("socketio: empty socket packet")
	}
	p.typ = s[0]
	if p.typ < packetConnect || p.typ > packetBinaryAck {
		return p, fmt.Errorf("socketio: unknown socket packet type %q", p.typ)
	}
	i := 1

	if p.typ == packetBinaryEvent || p.typ == packetBinaryAck {
		dash := strings.IndexByte(s[i:], '-')
		if dash < 0 {
			return p, fmt.Errorf("socketio: binary packet missing attachment count")
		}
		n, err := strconv.Atoi(s[i : i+dash])
		if err != nil {
			return p, fmt.Errorf("socketio: bad attachment count: %w", err)
		}
		p.attachments = n
		i += dash + 1
	}

	if i < len(s) && s[i] == '/' {
		comma := strings.IndexByte(s[i:], ',')
		if comma < 0 {
			p.namespace = s[i:]
			return p, nil
		}
		p.namespace = s[i : i+comma]
		i += comma + 1
	}

	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > start {
		id, err := strconv.Atoi(s[start:i])
		if err != nil {
			return p, fmt.Errorf("socketio: bad ack id: %w", err)
		}
		p.id = id
	}

	if i < len(s) {
		p.data = json.RawMessage(s[i:])
	}
	return p, nil
}

// eventPacket builds an EVENT packet for name with the given arguments.
func eventPacket(name string, args ...any) (socketPacket, error) {
	items := make([]any, 0, len(args)+1)
	items = append(items, name)
	items = append(items, args...)
	data, err := json.Marshal(items)
	if err != nil {
		return socketPacket{}, fmt.Errorf("socketio: marshal event %q: %w", name, err)
	}
	return socketPacket{typ: packetEvent, id: -1, data: data}, nil
}

// splitEvent splits an EVENT payload into its name and arguments.
func splitEvent(data json.RawMessage) (string, []json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return "", nil, fmt.Errorf("socketio: parse event: %w", err)
	}
	if len(items) == 0 {
		return "", nil, fmt.Errorf("socketio: event without name")
	}
	var name string
	if err := json.Unmarshal(items[0], &name); err != nil {
		return "", nil, fmt.Errorf("socketio: event name: %w", err)
	}
	return name, items[1:], nil
}

// fillPlaceholders replaces {"_placeholder":true,"num":N} markers with the
// base64 form of the N-th attachment so that listeners can decode binary
// fields into []byte with encoding/json.
func fillPlaceholders(data json.RawMessage, attachments [][]byte) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("socketio: parse binary event: %w", err)
	}
	v, err := replacePlaceholders(v, attachments)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func replacePlaceholders(v any, attachments [][]byte) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		if ph, ok := t["_placeholder"].(bool); ok && ph {
			num, ok := t["num"].(json.Number)
			if !ok {
				return nil, fmt.Errorf("socketio: placeholder without num")
			}
			n, err := num.Int64()
			if err != nil || n < 0 || int(n) >= len(attachments) {
				return nil, fmt.Errorf("socketio: placeholder %s out of range", num)
			}
			return base64.StdEncoding.EncodeToString(attachments[n]), nil
		}
		for k, child := range t {
			r, err := replacePlaceholders(child, attachments)
			if err != nil {
				return nil, err
			}
			t[k] = r
		}
		return t, nil
	case []any:
		for i, child := range t {
			r, err := replacePlaceholders(child, attachments)
			if err != nil {
				return nil, err
			}
			t[i] = r
		}
		return t, nil
	default:
		return v, nil
	}
}
