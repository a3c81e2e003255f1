package capture

import "sync"

// MockSource plays back pre-encoded frames for testing.
type MockSource struct {
	frames  [][]byte
	index   int
	loop    bool
	err     error
	mu      sync.Mutex
	running bool
	reads   int
}

func NewMockSource(frames [][]byte, loop bool) *MockSource {
	return &MockSource{
		frames: frames,
		loop:   loop,
	}
}

func (s *MockSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.index = 0
	return nil
}

func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

func (s *MockSource) Capture() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads++

	if !s.running {
		return nil, ErrCameraNotOpen
	}
	if s.err != nil {
		return nil, s.err
	}
	if len(s.frames) == 0 {
		return nil, ErrCameraNotOpen
	}

	if s.index >= len(s.frames) {
		if !s.loop {
			return nil, ErrCameraNotOpen
		}
		s.index = 0
	}

	// Copy so callers can't mutate the backing frame.
	frame := make([]byte, len(s.frames[s.index]))
	copy(frame, s.frames[s.index])
	s.index++

	return frame, nil
}

func (s *MockSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetFrames replaces the frame sequence.
func (s *MockSource) SetFrames(frames [][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = frames
	s.index = 0
}

// FailWith makes every subsequent Capture return err (nil to clear).
func (s *MockSource) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Captures reports how many times Capture has been called.
func (s *MockSource) Captures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}
