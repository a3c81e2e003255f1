package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/verdantlabs/weedwatch/internal/detection"
	"github.com/verdantlabs/weedwatch/internal/state"
)

// newWSServer starts a websocket test server and returns its ws:// URL.
// handler runs once per accepted connection and owns closing it.
func newWSServer(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newManager(t *testing.T) (*Manager, *state.Store) {
	t.Helper()
	states := state.NewStore()
	m := New(states, states, detection.DefaultLabels, nil)
	t.Cleanup(func() { m.Close() })
	return m, states
}

func TestManager_ConnectTransitionsConnected(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.ReadMessage()
	})

	m, states := newManager(t)
	if err := m.Connect(context.Background(), url); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if states.Connection() != state.Connected {
		t.Errorf("Connection() = %v, want Connected", states.Connection())
	}
	if !m.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
}

func TestManager_ConnectFailureTransitionsDisconnected(t *testing.T) {
	m, states := newManager(t)

	err := m.Connect(context.Background(), "ws://127.0.0.1:1/nope")
	if err == nil {
		t.Fatal("expected dial error")
	}
	if states.Connection() != state.Disconnected {
		t.Errorf("Connection() = %v, want Disconnected", states.Connection())
	}
}

func TestManager_SendNotConnected(t *testing.T) {
	m, _ := newManager(t)

	if err := m.Send([]byte("frame")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send() error = %v, want ErrNotConnected", err)
	}
}

func TestManager_SendDeliversPayload(t *testing.T) {
	received := make(chan []byte, 1)
	url := newWSServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- data
	})

	m, _ := newManager(t)
	if err := m.Connect(context.Background(), url); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	msg := detection.NewFrameMessage([]byte{1, 2, 3}, "image/jpeg", time.Now())
	data, err := msg.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if err := m.Send(data); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case got := <-received:
		if string(got) != string(data) {
			t.Errorf("server received %q, want %q", got, data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the payload")
	}
}

func TestManager_ReceiveAppliesDetectionResult(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(
			`{"type":"detection_result","detections":[{"x1":10,"y1":10,"x2":50,"y2":50,"confidence":0.92,"class_id":1,"class_name":"Crabgrass"}]}`))
		conn.ReadMessage()
	})

	m, states := newManager(t)
	if err := m.Connect(context.Background(), url); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	waitFor(t, func() bool { return len(states.Detections()) == 1 }, "detection result never applied")

	d := states.Detections()[0]
	if d.ClassID != 1 || d.ClassName != "Crabgrass" || d.Confidence != 0.92 {
		t.Errorf("applied detection = %+v", d)
	}
}

func TestManager_UnknownTypeIgnored(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"telemetry","load":0.5}`))
		conn.WriteMessage(websocket.TextMessage, []byte(
			`{"type":"detection_result","detections":[{"x1":0,"y1":0,"x2":1,"y2":1,"confidence":0.5,"class_id":0}]}`))
		conn.ReadMessage()
	})

	m, states := newManager(t)
	if err := m.Connect(context.Background(), url); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// The loop must survive the unknown type and process the next message.
	waitFor(t, func() bool { return len(states.Detections()) == 1 }, "receive loop stalled on unknown type")
}

func TestManager_MalformedMessageIgnored(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{{{garbage`))
		conn.WriteMessage(websocket.TextMessage, []byte(
			`{"type":"detection_result","detections":[{"x1":0,"y1":0,"x2":1,"y2":1,"confidence":0.5,"class_id":0}]}`))
		conn.ReadMessage()
	})

	m, states := newManager(t)
	if err := m.Connect(context.Background(), url); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	waitFor(t, func() bool { return len(states.Detections()) == 1 }, "receive loop stalled on malformed message")
}

func TestManager_ServerCloseTransitionsDisconnected(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn) {
		conn.Close()
	})

	m, states := newManager(t)
	if err := m.Connect(context.Background(), url); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	waitFor(t, func() bool { return states.Connection() == state.Disconnected },
		"state never transitioned to Disconnected after server close")
	if m.IsConnected() {
		t.Error("IsConnected() = true after transport closure")
	}
}

func TestManager_CloseIdempotent(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.ReadMessage()
	})

	m, states := newManager(t)
	if err := m.Connect(context.Background(), url); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if states.Connection() != state.Disconnected {
		t.Errorf("Connection() = %v, want Disconnected", states.Connection())
	}
}

func TestManager_ReconnectAfterClose(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.ReadMessage()
	})

	m, states := newManager(t)
	if err := m.Connect(context.Background(), url); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	m.Close()

	if err := m.Connect(context.Background(), url); err != nil {
		t.Fatalf("reconnect error = %v", err)
	}
	if states.Connection() != state.Connected {
		t.Errorf("Connection() = %v, want Connected after reconnect", states.Connection())
	}
}
