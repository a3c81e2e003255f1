package app

import (
	"fmt"
	"time"

	"github.com/verdantlabs/weedwatch/internal/detection"
	"github.com/verdantlabs/weedwatch/internal/state"
)

// Journal event kinds for capture outcomes.
const (
	EventCaptureSent   = "capture_sent"
	EventCaptureFailed = "capture_failed"
)

// run drives the scheduler at the configured cadence until Stop.
func (a *App) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.tick()
		}
	}
}

// tick attempts to start one capture cycle. The tick is dropped silently
// when the pipeline is stopped, the channel is not connected, or a cycle is
// already in flight; missed ticks are never queued or coalesced.
func (a *App) tick() {
	if a.stopped.Load() {
		return
	}
	if a.states.Connection() != state.Connected {
		return
	}
	if !a.inFlight.CompareAndSwap(false, true) {
		return
	}

	a.states.SetCapturing(true)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			a.states.SetCapturing(false)
			a.inFlight.Store(false)
		}()

		if err := a.captureCycle(); err != nil {
			a.logger.Warn("capture cycle failed", "error", err)
			a.record(EventCaptureFailed, err.Error())
			return
		}
		a.record(EventCaptureSent, "")
	}()
}

// CaptureNow triggers an out-of-band capture cycle, e.g. from a UI button.
// It follows the identical guard as a scheduled tick: ignored while a cycle
// is in flight or the channel is disconnected.
func (a *App) CaptureNow() {
	a.tick()
}

// InFlight reports whether a capture cycle is currently in progress.
func (a *App) InFlight() bool {
	return a.inFlight.Load()
}

// captureCycle runs one acquire→encode→transmit attempt. Every error aborts
// only this cycle; the caller releases the single-flight flag regardless.
func (a *App) captureCycle() error {
	raw, err := a.source.Capture()
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	payload, err := a.encoder.Encode(raw)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	msg := detection.NewFrameMessage(payload.Data, payload.MIMEType, time.Now())
	data, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	if err := a.channel.Send(data); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	a.logger.Debug("frame transmitted",
		"bytes", len(payload.Data), "width", payload.Width, "height", payload.Height)
	return nil
}
