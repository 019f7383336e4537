package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/ancpanel/pkg/ancapi"
	"github.com/haivivi/ancpanel/pkg/ancrealtime"
	"github.com/haivivi/ancpanel/pkg/cli"
	"github.com/haivivi/ancpanel/pkg/socketio"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Stream audio through a realtime session",
	Long: `Connect to the realtime endpoint, join a session and stream audio chunks.

Without --session a session is created over REST first, using the body from
-f or --data. Processed audio can be written to a file with --save. Without
--audio the command only listens and requests metrics until interrupted.

Examples:
  ancpanel stream --audio mic.raw --save clean.raw
  ancpanel stream --session 1234 --metrics-every 2s
  ancpanel stream --audio mic.raw --intensity 0.6 --algorithm rls --transport polling`,
	RunE: runStream,
}

type streamOptions struct {
	session      string
	data         string
	audio        string
	save         string
	chunkSize    int
	interval     time.Duration
	metricsEvery time.Duration
	linger       time.Duration
	transport    string
	chunk        ancrealtime.AudioChunkOptions
}

func runStream(cmd *cobra.Command, args []string) error {
	o, err := streamFlags(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api, err := newAPIClient()
	if err != nil {
		return err
	}

	sessionID := o.session
	if sessionID == "" {
		if sessionID, err = createSession(ctx, api, o.data); err != nil {
			return err
		}
	}

	var rtOpts []ancrealtime.Option
	if o.transport != "" {
		rtOpts = append(rtOpts, ancrealtime.WithTransports(socketio.Transport(o.transport)))
	}
	rt, err := newRealtimeClient(api, rtOpts...)
	if err != nil {
		return err
	}

	var save io.Writer
	if o.save != "" {
		f, err := os.Create(o.save)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		save = f
	}

	var processed, processedBytes atomic.Int64
	failed := make(chan error, 1)

	rt.On(ancrealtime.EventConnected, func(ancrealtime.Event) {
		slog.Info("connected", "transport", rt.Transport())
	})
	rt.On(ancrealtime.EventDisconnected, func(ev ancrealtime.Event) {
		if ev.Err != nil {
			cli.PrintWarning("Disconnected: %v", ev.Err)
		}
	})
	armRejoin := keepSession(rt, sessionID)
	rt.On(ancrealtime.EventProcessedAudio, func(ev ancrealtime.Event) {
		var pa ancrealtime.ProcessedAudio
		if err := ev.Decode(&pa); err != nil {
			slog.Warn("bad processed_audio", "error", err)
			return
		}
		processed.Add(1)
		processedBytes.Add(int64(len(pa.AudioData)))
		slog.Debug("processed audio", "chunk", pa.ChunkIndex, "size", cli.FormatBytes(len(pa.AudioData)))
		if save != nil {
			if _, err := save.Write(pa.AudioData); err != nil {
				slog.Error("failed to save audio", "error", err)
			}
		}
	})
	rt.On(ancrealtime.EventMetricsUpdate, func(ev ancrealtime.Event) {
		if err := outputResult(ev.Data); err != nil {
			slog.Warn("failed to print metrics", "error", err)
		}
	})
	rt.On(ancrealtime.EventError, func(ev ancrealtime.Event) {
		if ev.Err != nil {
			select {
			case failed <- ev.Err:
			default:
			}
			return
		}
		cli.PrintError("server: %s", ev.Data)
	})

	start := time.Now()
	if err := rt.Connect(ctx); err != nil {
		return err
	}
	defer rt.Disconnect()

	if err := rt.JoinSession(sessionID); err != nil {
		return err
	}
	slog.Info("joined session", "session_id", sessionID)
	armRejoin()

	if o.audio != "" {
		sent, err := sendAudio(ctx, rt, sessionID, o, failed)
		if err != nil {
			return err
		}
		slog.Info("audio sent", "chunks", sent, "elapsed", cli.FormatDuration(time.Since(start)))
		if err := rt.RequestMetrics(); err != nil {
			slog.Warn("metrics request failed", "error", err)
		}
		select {
		case <-time.After(o.linger):
		case <-ctx.Done():
		case err := <-failed:
			return err
		}
	} else {
		if err := listen(ctx, rt, o.metricsEvery, failed); err != nil {
			return err
		}
	}

	if err := rt.LeaveSession(); err != nil && !errors.Is(err, ancrealtime.ErrNotConnected) {
		slog.Warn("leave failed", "error", err)
	}
	cli.PrintSuccess("Session %s: %d chunks processed (%s)", sessionID, processed.Load(), cli.FormatBytes(int(processedBytes.Load())))
	return nil
}

func streamFlags(cmd *cobra.Command) (*streamOptions, error) {
	f := cmd.Flags()
	o := &streamOptions{}
	o.session, _ = f.GetString("session")
	o.data, _ = f.GetString("data")
	o.audio, _ = f.GetString("audio")
	o.save, _ = f.GetString("save")
	o.chunkSize, _ = f.GetInt("chunk-size")
	o.interval, _ = f.GetDuration("interval")
	o.metricsEvery, _ = f.GetDuration("metrics-every")
	o.linger, _ = f.GetDuration("linger")
	o.transport, _ = f.GetString("transport")
	o.chunk.SampleRate, _ = f.GetInt("sample-rate")
	o.chunk.Algorithm, _ = f.GetString("algorithm")
	if f.Changed("intensity") {
		v, _ := f.GetFloat64("intensity")
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("intensity %v out of range [0, 1]", v)
		}
		o.chunk.Intensity = &v
	}

	if o.chunkSize <= 0 {
		return nil, fmt.Errorf("chunk-size must be positive")
	}
	switch socketio.Transport(o.transport) {
	case "", socketio.TransportWebSocket, socketio.TransportPolling:
	default:
		return nil, fmt.Errorf("unknown transport %q", o.transport)
	}
	return o, nil
}

func createSession(ctx context.Context, api *ancapi.Client, data string) (string, error) {
	body, err := requestBody(data)
	if err != nil {
		return "", err
	}
	rec, err := api.CreateSession(ctx, body)
	if err != nil {
		return "", err
	}
	id := ancapi.SessionID(rec)
	if id == "" {
		return "", fmt.Errorf("session response has no id: %s", rec)
	}
	slog.Info("session created", "session_id", id)
	return id, nil
}

// sendAudio streams the audio file in fixed-size chunks. A session lost to a
// reconnect is joined again before the next chunk.
func sendAudio(ctx context.Context, rt *ancrealtime.Client, sessionID string, o *streamOptions, failed <-chan error) (int, error) {
	f, err := os.Open(o.audio)
	if err != nil {
		return 0, fmt.Errorf("failed to open audio: %w", err)
	}
	defer f.Close()

	var tick <-chan time.Time
	if o.interval > 0 {
		t := time.NewTicker(o.interval)
		defer t.Stop()
		tick = t.C
	}

	buf := make([]byte, o.chunkSize)
	sent := 0
	for {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			if err := sendChunk(rt, sessionID, buf[:n], &o.chunk); err != nil {
				return sent, err
			}
			sent++
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return sent, nil
		}
		if err != nil {
			return sent, fmt.Errorf("failed to read audio: %w", err)
		}

		if tick == nil {
			select {
			case <-ctx.Done():
				return sent, nil
			case err := <-failed:
				return sent, err
			default:
			}
			continue
		}
		select {
		case <-ctx.Done():
			return sent, nil
		case err := <-failed:
			return sent, err
		case <-tick:
		}
	}
}

// keepSession joins sessionID again whenever rt reconnects without a
// session. It does nothing until the returned function has been called.
func keepSession(rt *ancrealtime.Client, sessionID string) (arm func()) {
	var armed atomic.Bool
	rt.On(ancrealtime.EventConnected, func(ancrealtime.Event) {
		if !armed.Load() || rt.SessionID() != "" {
			return
		}
		if err := rt.JoinSession(sessionID); err != nil {
			cli.PrintWarning("Failed to rejoin session %s: %v", sessionID, err)
			return
		}
		cli.PrintInfo("Rejoined session %s", sessionID)
	})
	return func() { armed.Store(true) }
}

func sendChunk(rt *ancrealtime.Client, sessionID string, chunk []byte, opts *ancrealtime.AudioChunkOptions) error {
	err := rt.SendAudioChunk(chunk, opts)
	if !errors.Is(err, ancrealtime.ErrNoActiveSession) || !rt.IsConnected() {
		return err
	}
	if err := rt.JoinSession(sessionID); err != nil {
		return err
	}
	slog.Info("rejoined session", "session_id", sessionID)
	return rt.SendAudioChunk(chunk, opts)
}

func listen(ctx context.Context, rt *ancrealtime.Client, every time.Duration, failed <-chan error) error {
	if every <= 0 {
		select {
		case <-ctx.Done():
			return nil
		case err := <-failed:
			return err
		}
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-failed:
			return err
		case <-t.C:
			if err := rt.RequestMetrics(); err != nil {
				slog.Debug("metrics request skipped", "error", err)
			}
		}
	}
}

func init() {
	f := streamCmd.Flags()
	f.String("session", "", "existing session id (default: create one)")
	f.String("data", "", "inline JSON body for session creation")
	f.String("audio", "", "raw audio file to stream")
	f.String("save", "", "file receiving processed audio")
	f.Int("chunk-size", 4096, "bytes per audio chunk")
	f.Duration("interval", 100*time.Millisecond, "delay between chunks")
	f.Duration("metrics-every", 0, "request metrics at this interval while listening")
	f.Duration("linger", 2*time.Second, "time to wait for processed audio after the last chunk")
	f.String("transport", "", "force a transport: websocket or polling")
	f.Int("sample-rate", ancrealtime.DefaultSampleRate, "sample rate in Hz")
	f.String("algorithm", ancrealtime.DefaultAlgorithm, "noise cancellation algorithm")
	f.Float64("intensity", ancrealtime.DefaultIntensity, "intensity in [0, 1]")
}
