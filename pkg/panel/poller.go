package panel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/haivivi/ancpanel/pkg/ancapi"
	"github.com/robfig/cron/v3"
)

const (
	DefaultStatusInterval       = time.Second
	DefaultNotificationInterval = 2 * time.Second
)

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithIntervals sets the status and notification polling intervals. The
// scheduler works in whole seconds; shorter intervals run every second.
func WithIntervals(status, notifications time.Duration) PollerOption {
	return func(p *Poller) {
		p.statusEvery = status
		p.notifyEvery = notifications
	}
}

// OnUpdate sets the function called with the merged state after every
// successful status refresh.
func OnUpdate(fn func(State)) PollerOption {
	return func(p *Poller) {
		p.onUpdate = fn
	}
}

// OnNotifications sets the function called with newly received
// notifications. It is not called for empty polls.
func OnNotifications(fn func([]ancapi.Notification)) PollerOption {
	return func(p *Poller) {
		p.onNotifications = fn
	}
}

// OnError sets the function called when a poll fails.
func OnError(fn func(error)) PollerOption {
	return func(p *Poller) {
		p.onError = fn
	}
}

// Poller refreshes a Panel on a fixed cadence. A poll that is still running
// when its next tick arrives is skipped.
type Poller struct {
	panel           *Panel
	logger          *slog.Logger
	statusEvery     time.Duration
	notifyEvery     time.Duration
	onUpdate        func(State)
	onNotifications func([]ancapi.Notification)
	onError         func(error)

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewPoller creates a Poller for p. It does nothing until Start.
func NewPoller(p *Panel, opts ...PollerOption) *Poller {
	pl := &Poller{
		panel:       p,
		logger:      p.logger,
		statusEvery: DefaultStatusInterval,
		notifyEvery: DefaultNotificationInterval,
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Start polls once immediately, then on schedule until Stop or ctx is
// done. Calling Start on a running Poller does nothing.
func (pl *Poller) Start(ctx context.Context) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.cron != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	l := cronLogger{pl.logger}
	c := cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	c.Schedule(cron.Every(pl.statusEvery), cron.FuncJob(func() { pl.pollStatus(ctx) }))
	c.Schedule(cron.Every(pl.notifyEvery), cron.FuncJob(func() { pl.pollNotifications(ctx) }))

	pl.pollStatus(ctx)
	pl.pollNotifications(ctx)

	c.Start()
	pl.cron = c
	pl.cancel = cancel
	context.AfterFunc(ctx, func() { pl.Stop() })
}

// Stop halts the schedule and waits for running polls to return.
func (pl *Poller) Stop() {
	pl.mu.Lock()
	c, cancel := pl.cron, pl.cancel
	pl.cron, pl.cancel = nil, nil
	pl.mu.Unlock()
	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
}

func (pl *Poller) pollStatus(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	st, err := pl.panel.RefreshStatus(ctx)
	if err != nil {
		pl.fail(ctx, "status", err)
		return
	}
	if pl.onUpdate != nil {
		pl.onUpdate(st)
	}
}

func (pl *Poller) pollNotifications(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ns, err := pl.panel.CheckNotifications(ctx)
	if err != nil {
		pl.fail(ctx, "notifications", err)
		return
	}
	if len(ns) > 0 && pl.onNotifications != nil {
		pl.onNotifications(ns)
	}
}

func (pl *Poller) fail(ctx context.Context, what string, err error) {
	if ctx.Err() != nil {
		return
	}
	pl.logger.Warn("poll failed", "poll", what, "error", err)
	if pl.onError != nil {
		pl.onError(err)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug("cron: "+msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error("cron: "+msg, append(kv, "error", err)...)
}
