// Package state holds the shared observable pipeline state: connection
// status, capture activity, and the latest published detection batch.
//
// Each field has a single writer (the channel manager for connection state,
// the scheduler for the capture flag, the result sink path for detections);
// readers take a consistent snapshot. Renderers and supervisors observe
// changes through subscriptions that never block a writer.
package state

import (
	"sync"
	"time"

	"github.com/verdantlabs/weedwatch/internal/detection"
)

// ConnectionState is the lifecycle state of the duplex channel. It is the
// only source of truth for whether the scheduler may fire.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

// String returns a lowercase name for logs and the status API.
func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Snapshot is a consistent point-in-time view of the pipeline state.
type Snapshot struct {
	Connection ConnectionState
	Capturing  bool
	Detections detection.Batch
	UpdatedAt  time.Time
}

// Store is the shared state container.
type Store struct {
	mu         sync.RWMutex
	connection ConnectionState
	capturing  bool
	detections detection.Batch
	updatedAt  time.Time

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

// NewStore creates a Store in the Disconnected state with an empty batch.
func NewStore() *Store {
	return &Store{
		connection: Disconnected,
		detections: detection.Batch{},
		subs:       make(map[int]chan Snapshot),
	}
}

// SetConnection records a connection state transition and notifies observers.
func (s *Store) SetConnection(c ConnectionState) {
	s.mu.Lock()
	s.connection = c
	s.updatedAt = time.Now()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Connection returns the current connection state.
func (s *Store) Connection() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connection
}

// SetCapturing records whether a capture cycle is in flight.
func (s *Store) SetCapturing(capturing bool) {
	s.mu.Lock()
	s.capturing = capturing
	s.updatedAt = time.Now()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Capturing reports whether a capture cycle is in flight.
func (s *Store) Capturing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capturing
}

// ApplyDetections atomically replaces the published batch. There is no
// merging and no correlation with the frame that produced the reply: the
// last applied batch wins.
func (s *Store) ApplyDetections(batch detection.Batch) {
	copied := make(detection.Batch, len(batch))
	copy(copied, batch)

	s.mu.Lock()
	s.detections = copied
	s.updatedAt = time.Now()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Detections returns the currently published batch.
func (s *Store) Detections() detection.Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detections
}

// Snapshot returns a consistent view of all fields.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Connection: s.connection,
		Capturing:  s.capturing,
		Detections: s.detections,
		UpdatedAt:  s.updatedAt,
	}
}

// Subscribe registers an observer. The returned channel carries a snapshot
// after every mutation; a slow receiver only ever misses intermediate
// snapshots, never the latest. The cancel func releases the subscription.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
	return ch, cancel
}

// notify delivers snap to every subscriber without blocking: if a channel is
// full the stale snapshot is dropped in favor of the new one.
func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
