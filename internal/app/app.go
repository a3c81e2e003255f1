// Package app orchestrates the streaming inspection pipeline: the cadence
// scheduler that captures, encodes and transmits frames, and the supervisor
// that reconnects the channel after failures.
package app

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/verdantlabs/weedwatch/internal/capture"
	"github.com/verdantlabs/weedwatch/internal/encode"
	"github.com/verdantlabs/weedwatch/internal/state"
)

// DefaultPeriod is the capture cadence.
const DefaultPeriod = 2 * time.Second

// Channel is the duplex connection surface the pipeline drives. Satisfied by
// channel.Manager.
type Channel interface {
	Connect(ctx context.Context, endpoint string) error
	Send(payload []byte) error
	Close() error
}

// Recorder journals operational events. Detection results are never
// journaled, only connection transitions and capture outcomes.
type Recorder interface {
	Record(kind, detail string) error
}

// Config holds the pipeline configuration.
type Config struct {
	Endpoint string
	Period   time.Duration
	Source   capture.Source
	Encoder  *encode.Encoder
	Channel  Channel
	States   *state.Store
	Journal  Recorder // optional
	Logger   *slog.Logger
}

// App runs the streaming pipeline.
type App struct {
	cfg     Config
	source  capture.Source
	encoder *encode.Encoder
	channel Channel
	states  *state.Store
	logger  *slog.Logger

	inFlight atomic.Bool
	stopped  atomic.Bool
	stopCh   chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// New creates an App. Period defaults to DefaultPeriod.
func New(cfg Config) *App {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &App{
		cfg:     cfg,
		source:  cfg.Source,
		encoder: cfg.Encoder,
		channel: cfg.Channel,
		states:  cfg.States,
		logger:  cfg.Logger,
	}
}

// Start opens the frame source, starts the reconnect supervisor and the
// cadence ticker, and makes the initial connection attempt. A failed initial
// dial is not fatal: the supervisor keeps retrying with backoff.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return nil
	}

	if err := a.source.Open(); err != nil {
		return err
	}

	a.stopped.Store(false)
	a.stopCh = make(chan struct{})

	// Subscribe before the first dial so no transition is missed.
	transitions, cancelSub := a.states.Subscribe()

	a.wg.Add(1)
	go a.supervise(transitions, cancelSub)

	if err := a.channel.Connect(ctx, a.cfg.Endpoint); err != nil {
		a.logger.Warn("initial connect failed, supervisor will retry", "error", err)
	}

	a.wg.Add(1)
	go a.run()

	a.running = true
	a.logger.Info("pipeline started", "endpoint", a.cfg.Endpoint, "period", a.cfg.Period)
	return nil
}

// Stop halts the ticker, closes the channel (releasing the receive loop),
// closes the frame source and waits for in-flight work to drain. No capture
// remains observable as in progress afterwards.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}

	a.stopped.Store(true)
	close(a.stopCh)

	if err := a.channel.Close(); err != nil {
		a.logger.Warn("error closing channel", "error", err)
	}
	if err := a.source.Close(); err != nil {
		a.logger.Warn("error closing frame source", "error", err)
	}

	a.wg.Wait()
	a.running = false
	a.logger.Info("pipeline stopped")
}

// record journals an event if a journal is configured.
func (a *App) record(kind, detail string) {
	if a.cfg.Journal == nil {
		return
	}
	if err := a.cfg.Journal.Record(kind, detail); err != nil {
		a.logger.Warn("journal write failed", "kind", kind, "error", err)
	}
}
