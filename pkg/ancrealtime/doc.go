// Package ancrealtime is the realtime client of the ANC backend. It keeps a
// Socket.IO connection open, joins at most one processing session at a time,
// streams audio chunks into it and dispatches server-pushed events to
// registered listeners.
//
//	rt := ancrealtime.NewClient("ws://localhost:5000")
//	rt.On(ancrealtime.EventProcessedAudio, func(ev ancrealtime.Event) {
//	    var out ancrealtime.ProcessedAudio
//	    if err := ev.Decode(&out); err == nil {
//	        play(out.AudioData)
//	    }
//	})
//	if err := rt.Connect(ctx); err != nil {
//	    return err
//	}
//	defer rt.Disconnect()
//
//	rt.JoinSession(sessionID)
//	err := rt.SendAudioChunk(pcm, nil)
//
// Session-scoped sends return ErrNoActiveSession without touching the
// network when no session is joined.
package ancrealtime
