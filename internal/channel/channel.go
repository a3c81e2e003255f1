// Package channel manages the persistent duplex websocket connection to the
// detection service: connect, send, receive loop, and teardown.
//
// The manager owns the ConnectionState field of the shared state store.
// Transport failures never cross the pipeline boundary as panics or stray
// errors; they surface as a transition to Disconnected that a supervisor can
// observe and act on.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/verdantlabs/weedwatch/internal/detection"
	"github.com/verdantlabs/weedwatch/internal/state"
)

// ErrNotConnected is returned by Send when no connection is established.
// The caller abandons the cycle and leaves reconnecting to the supervisor.
var ErrNotConnected = errors.New("channel is not connected")

// Sink consumes decoded detection batches from the receive loop.
type Sink interface {
	ApplyDetections(detection.Batch)
}

// Manager owns the lifecycle of the duplex connection.
type Manager struct {
	states *state.Store
	sink   Sink
	labels detection.LabelTable
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a Manager publishing state transitions to states and decoded
// batches to sink.
func New(states *state.Store, sink Sink, labels detection.LabelTable, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		states: states,
		sink:   sink,
		labels: labels,
		logger: logger,
	}
}

// Connect dials the websocket endpoint. On success the state becomes
// Connected and a receive loop starts; on failure the state becomes
// Disconnected and the error is returned. Connect never retries by itself.
func (m *Manager) Connect(ctx context.Context, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return nil
	}

	m.states.SetConnection(state.Connecting)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		m.states.SetConnection(state.Disconnected)
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}

	m.conn = conn
	m.states.SetConnection(state.Connected)
	m.logger.Info("channel connected", "endpoint", endpoint)

	go m.receiveLoop(conn)

	return nil
}

// Send transmits one outbound message. It returns once the write is accepted
// by the transport and never waits for a reply. A write failure tears the
// connection down and surfaces as a Disconnected transition.
func (m *Manager) Send(payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return ErrNotConnected
	}

	if err := m.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		m.dropLocked(m.conn)
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// IsConnected reports whether a connection is currently established.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// Close tears the connection down. It is idempotent and guarantees the
// transport is released and the state is Disconnected on every exit path.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		m.dropLocked(m.conn)
	} else {
		m.states.SetConnection(state.Disconnected)
	}
	return nil
}

// receiveLoop consumes inbound messages for the lifetime of conn. It exits
// on any transport error or closure, dropping the connection it was started
// for (and only that one, so a reconnect is never clobbered).
func (m *Manager) receiveLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			if m.conn == conn {
				m.dropLocked(conn)
				m.logger.Warn("channel receive failed", "error", err)
			}
			m.mu.Unlock()
			return
		}
		m.handleMessage(data)
	}
}

// handleMessage parses one inbound envelope. Malformed messages are logged
// and skipped; unknown envelope types are ignored. The loop always keeps
// consuming.
func (m *Manager) handleMessage(data []byte) {
	env, err := detection.ParseEnvelope(data)
	if err != nil {
		m.logger.Warn("discarding malformed message", "error", err)
		return
	}

	switch env.Type {
	case detection.TypeDetectionResult:
		batch := env.Batch(m.labels)
		m.sink.ApplyDetections(batch)
		m.logger.Debug("applied detection result", "detections", len(batch))
	default:
		m.logger.Debug("ignoring message", "type", env.Type)
	}
}

// dropLocked closes conn and, if it is the active connection, clears it and
// publishes Disconnected. Callers hold m.mu.
func (m *Manager) dropLocked(conn *websocket.Conn) {
	conn.Close()
	if m.conn == conn {
		m.conn = nil
		m.states.SetConnection(state.Disconnected)
	}
}
