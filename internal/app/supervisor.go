package app

import (
	"context"
	"time"

	"github.com/verdantlabs/weedwatch/internal/state"
)

// Reconnect backoff policy. Vars so tests can tighten the schedule.
var (
	backoffBase = time.Second
	backoffMax  = 30 * time.Second
	dialTimeout = 10 * time.Second
)

// Journal event kinds for connection transitions.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

// supervise watches connection-state snapshots and re-dials with exponential
// backoff while the channel stays disconnected. The channel manager itself
// never retries; this is the only reconnect policy in the pipeline.
//
// A failed dial publishes its own Disconnected snapshot, which feeds back
// into the subscription and schedules the next attempt. Connect is a no-op
// on an already-connected manager, so a stray extra snapshot costs nothing.
func (a *App) supervise(transitions <-chan state.Snapshot, cancelSub func()) {
	defer a.wg.Done()
	defer cancelSub()

	backoff := backoffBase
	prev := a.states.Connection()

	for {
		var snap state.Snapshot
		select {
		case <-a.stopCh:
			return
		case snap = <-transitions:
		}

		switch snap.Connection {
		case state.Connected:
			if prev != state.Connected {
				backoff = backoffBase
				a.record(EventConnect, a.cfg.Endpoint)
			}
			prev = state.Connected

		case state.Disconnected:
			if prev == state.Connected {
				a.record(EventDisconnect, "")
			}
			prev = state.Disconnected

			select {
			case <-a.stopCh:
				return
			case <-time.After(backoff):
			}
			if a.stopped.Load() {
				return
			}

			a.logger.Info("reconnecting", "endpoint", a.cfg.Endpoint, "backoff", backoff)
			ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
			err := a.channel.Connect(ctx, a.cfg.Endpoint)
			cancel()
			if err != nil {
				a.logger.Warn("reconnect failed", "error", err)
				backoff *= 2
				if backoff > backoffMax {
					backoff = backoffMax
				}
			}

		case state.Connecting:
			prev = state.Connecting
		}
	}
}
