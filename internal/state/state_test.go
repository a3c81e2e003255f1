package state

import (
	"testing"
	"time"

	"github.com/verdantlabs/weedwatch/internal/detection"
)

func TestStore_ApplyDetections_Replaces(t *testing.T) {
	s := NewStore()

	s.ApplyDetections(detection.Batch{})
	if got := s.Detections(); len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}

	d1 := detection.Detection{X1: 1, Y1: 2, X2: 3, Y2: 4, Confidence: 0.9, ClassID: 1, ClassName: "Crabgrass"}
	s.ApplyDetections(detection.Batch{d1})

	got := s.Detections()
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 (replace, not merge)", len(got))
	}
	if got[0] != d1 {
		t.Errorf("published detection = %+v, want %+v", got[0], d1)
	}
}

func TestStore_ApplyDetections_CopiesBatch(t *testing.T) {
	s := NewStore()

	batch := detection.Batch{{ClassName: "Clover"}}
	s.ApplyDetections(batch)
	batch[0].ClassName = "mutated"

	if got := s.Detections()[0].ClassName; got != "Clover" {
		t.Errorf("published batch aliased caller memory: ClassName = %q", got)
	}
}

func TestStore_ConnectionDefaultsDisconnected(t *testing.T) {
	s := NewStore()
	if s.Connection() != Disconnected {
		t.Errorf("Connection() = %v, want Disconnected", s.Connection())
	}
}

func TestStore_SetConnection(t *testing.T) {
	s := NewStore()
	s.SetConnection(Connected)
	if s.Connection() != Connected {
		t.Errorf("Connection() = %v, want Connected", s.Connection())
	}
}

func TestStore_Subscribe_ReceivesLatest(t *testing.T) {
	s := NewStore()
	updates, cancel := s.Subscribe()
	defer cancel()

	s.SetConnection(Connected)

	select {
	case snap := <-updates:
		if snap.Connection != Connected {
			t.Errorf("snapshot connection = %v, want Connected", snap.Connection)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestStore_Subscribe_SlowReaderGetsNewest(t *testing.T) {
	s := NewStore()
	updates, cancel := s.Subscribe()
	defer cancel()

	// Nobody reading: intermediate snapshots must be dropped, never block.
	s.ApplyDetections(detection.Batch{{ClassName: "old"}})
	s.ApplyDetections(detection.Batch{{ClassName: "new"}})

	select {
	case snap := <-updates:
		if len(snap.Detections) != 1 || snap.Detections[0].ClassName != "new" {
			t.Errorf("snapshot = %+v, want the newest batch", snap.Detections)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestStore_SubscribeCancel(t *testing.T) {
	s := NewStore()
	updates, cancel := s.Subscribe()
	cancel()

	s.SetConnection(Connected)

	select {
	case _, ok := <-updates:
		if ok {
			t.Error("canceled subscription still received a snapshot")
		}
	default:
	}
}

func TestConnectionState_String(t *testing.T) {
	tests := []struct {
		state ConnectionState
		want  string
	}{
		{Disconnected, "disconnected"},
		{Connecting, "connecting"},
		{Connected, "connected"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
