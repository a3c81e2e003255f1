package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/verdantlabs/weedwatch/internal/detection"
	"github.com/verdantlabs/weedwatch/internal/state"
)

func TestServer_Health(t *testing.T) {
	srv := httptest.NewServer(New(Config{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf(`status field = %v, want "ok"`, body["status"])
	}
}

func TestServer_State(t *testing.T) {
	states := state.NewStore()
	states.SetConnection(state.Connected)
	states.ApplyDetections(detection.Batch{
		{X1: 10, Y1: 10, X2: 50, Y2: 50, Confidence: 0.92, ClassID: 1, ClassName: "Crabgrass"},
	})

	srv := httptest.NewServer(New(Config{States: states}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/state")
	if err != nil {
		t.Fatalf("GET /api/state error = %v", err)
	}
	defer resp.Body.Close()

	var snap snapshotPayload
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if snap.Connection != "connected" {
		t.Errorf("connection = %q, want %q", snap.Connection, "connected")
	}
	if len(snap.Detections) != 1 {
		t.Fatalf("len(detections) = %d, want 1", len(snap.Detections))
	}
	if snap.Detections[0].ClassName != "Crabgrass" {
		t.Errorf("class_name = %q, want %q", snap.Detections[0].ClassName, "Crabgrass")
	}
}

func TestServer_StateMethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(New(Config{States: state.NewStore()}))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/state", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/state error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestDetectionsHandler_PushesUpdates(t *testing.T) {
	states := state.NewStore()
	srv := httptest.NewServer(New(Config{States: states}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/detections"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// First frame is the current snapshot.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var initial snapshotPayload
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if initial.Connection != "disconnected" {
		t.Errorf("initial connection = %q, want %q", initial.Connection, "disconnected")
	}

	states.ApplyDetections(detection.Batch{
		{X1: 1, Y1: 2, X2: 3, Y2: 4, Confidence: 0.5, ClassID: 0, ClassName: "Clover"},
	})

	// The update is pushed without polling.
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var snap snapshotPayload
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("read pushed snapshot: %v", err)
		}
		if len(snap.Detections) == 1 {
			if snap.Detections[0].ClassName != "Clover" {
				t.Errorf("class_name = %q, want %q", snap.Detections[0].ClassName, "Clover")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("detection update never pushed")
		}
	}
}
