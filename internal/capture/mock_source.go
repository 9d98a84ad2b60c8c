package capture

import (
	"io"
	"sync"

	"gocv.io/x/gocv"
)

// MockSource plays back pre-built frames for testing.
type MockSource struct {
	frames     []*gocv.Mat
	index      int
	fps        float64
	frameCount int
	failAt     int
	failErr    error
	closed     bool
	mu         sync.Mutex
}

// NewMockSource creates a source that yields clones of frames in order.
// The reported frame count defaults to len(frames).
func NewMockSource(frames []*gocv.Mat, fps float64) *MockSource {
	return &MockSource{
		frames:     frames,
		fps:        fps,
		frameCount: len(frames),
	}
}

// NewBlankSource creates a source of n black width x height frames.
// Call Release to free them.
func NewBlankSource(n, width, height int, fps float64) *MockSource {
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
		frames[i] = &m
	}
	return NewMockSource(frames, fps)
}

// SetFrameCount overrides the reported frame count.
func (s *MockSource) SetFrameCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameCount = n
}

// FailAt makes the n-th Read (1-based) return err.
func (s *MockSource) FailAt(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAt = n
	s.failErr = err
}

// Read returns a clone of the next frame, or io.EOF.
func (s *MockSource) Read() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSourceNotOpen
	}

	if s.failAt > 0 && s.index+1 == s.failAt {
		s.index++
		return nil, s.failErr
	}

	if s.index >= len(s.frames) {
		return nil, io.EOF
	}

	// Clone the frame so the original isn't modified
	frame := s.frames[s.index].Clone()
	s.index++

	return &frame, nil
}

func (s *MockSource) FPS() float64   { return s.fps }
func (s *MockSource) FrameCount() int { return s.frameCount }

// Close marks the source closed. The backing frames stay alive until Release.
func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *MockSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Release frees the backing frames.
func (s *MockSource) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.frames {
		f.Close()
	}
	s.frames = nil
}
