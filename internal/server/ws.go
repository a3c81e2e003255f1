package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/verdantlabs/weedwatch/internal/state"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// DetectionsHandler pushes pipeline state snapshots to renderers over a
// WebSocket whenever the state changes.
type DetectionsHandler struct {
	states *state.Store
}

// NewDetectionsHandler creates a DetectionsHandler reading from states.
func NewDetectionsHandler(states *state.Store) *DetectionsHandler {
	return &DetectionsHandler{states: states}
}

// ServeHTTP handles WebSocket upgrade requests and streams snapshots until
// the client disconnects.
func (h *DetectionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.states.Subscribe()
	defer cancel()

	// Detect client disconnect by draining reads.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Current state first, then deltas.
	if err := writeSnapshot(conn, h.states.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case snap := <-updates:
			if err := writeSnapshot(conn, snap); err != nil {
				return
			}
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap state.Snapshot) error {
	msg, err := json.Marshal(snapshotJSON(snap))
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, msg)
}
