// Package socketio is a small Socket.IO v5 client (Engine.IO v4) covering
// what an event-driven control client needs: connecting to the default
// namespace, emitting events and receiving server-pushed events.
//
// Two transports are supported. WebSocket is tried first; HTTP long-polling
// is the fallback when the WebSocket handshake fails.
//
//	conn, err := socketio.Dial(ctx, "http://localhost:5000")
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	err = conn.Emit("join_session", map[string]any{"session_id": id})
//
//	for ev, err := range conn.Events() {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(ev.Name, string(ev.Data()))
//	}
//
// Binary attachments sent by the server are reassembled; each placeholder
// is replaced by the base64 text of its attachment, so listeners decode
// binary fields into []byte with encoding/json.
//
// Acknowledgement callbacks, custom namespaces and transport upgrades are
// not implemented.
package socketio
