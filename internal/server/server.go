// Package server exposes pipeline state to external renderers over a local
// HTTP surface: a health endpoint, a JSON state snapshot, and a websocket
// push of detection updates. It only ever reads the shared state.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/verdantlabs/weedwatch/internal/detection"
	"github.com/verdantlabs/weedwatch/internal/state"
)

// Config holds the server configuration.
type Config struct {
	States *state.Store
}

// Server is the observer HTTP server.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.States != nil {
		s.mux.HandleFunc("/api/state", s.handleState)
		s.mux.Handle("/api/detections", NewDetectionsHandler(s.config.States))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshotJSON(s.config.States.Snapshot())); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

type detectionJSON struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
}

type snapshotPayload struct {
	Connection string          `json:"connection"`
	Capturing  bool            `json:"capturing"`
	Detections []detectionJSON `json:"detections"`
	UpdatedAt  int64           `json:"updated_at"`
}

func snapshotJSON(snap state.Snapshot) snapshotPayload {
	return snapshotPayload{
		Connection: snap.Connection.String(),
		Capturing:  snap.Capturing,
		Detections: toJSON(snap.Detections),
		UpdatedAt:  snap.UpdatedAt.UnixMilli(),
	}
}

func toJSON(batch detection.Batch) []detectionJSON {
	out := make([]detectionJSON, len(batch))
	for i, d := range batch {
		out[i] = detectionJSON{
			X1:         d.X1,
			Y1:         d.Y1,
			X2:         d.X2,
			Y2:         d.Y2,
			Confidence: d.Confidence,
			ClassID:    d.ClassID,
			ClassName:  d.ClassName,
		}
	}
	return out
}
