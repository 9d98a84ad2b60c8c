// Package capture provides video and image frame sources using GoCV (OpenCV)
// and the stride-based sampler that selects frames for analysis.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"gocv.io/x/gocv"
)

// ErrSourceNotOpen is returned when reading from a source that is closed.
var ErrSourceNotOpen = errors.New("source is not open")

// Source is a sequential, decode-order frame source.
type Source interface {
	// Read decodes the next frame. It returns io.EOF when the source is
	// exhausted. The caller is responsible for closing the returned Mat.
	Read() (*gocv.Mat, error)

	// FPS returns the frame rate reported by the container, or 0 if unknown.
	FPS() float64

	// FrameCount returns the frame count reported by the container, or 0
	// if unknown.
	FrameCount() int

	// Close releases the underlying decoder. It is safe to call more than once.
	Close() error
}

// videoSource reads frames from a video file through gocv.VideoCapture.
type videoSource struct {
	path    string
	capture *gocv.VideoCapture
	mu      sync.Mutex
	fps     float64
	frames  int
}

// OpenVideo opens a video file for sequential decoding.
func OpenVideo(path string) (Source, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open video %s: %w", path, ErrSourceNotOpen)
	}

	return &videoSource{
		path:    path,
		capture: capture,
		fps:     capture.Get(gocv.VideoCaptureFPS),
		frames:  int(capture.Get(gocv.VideoCaptureFrameCount)),
	}, nil
}

// Read decodes the next frame from the video.
func (v *videoSource) Read() (*gocv.Mat, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.capture == nil {
		return nil, ErrSourceNotOpen
	}

	mat := gocv.NewMat()
	if ok := v.capture.Read(&mat); !ok {
		mat.Close()
		return nil, io.EOF
	}

	if mat.Empty() {
		mat.Close()
		return nil, io.EOF
	}

	return &mat, nil
}

// FPS returns the container frame rate.
func (v *videoSource) FPS() float64 {
	if v.fps < 0 {
		return 0
	}
	return v.fps
}

// FrameCount returns the container frame count.
func (v *videoSource) FrameCount() int {
	if v.frames < 0 {
		return 0
	}
	return v.frames
}

// Close releases the decoder.
func (v *videoSource) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.capture == nil {
		return nil
	}

	err := v.capture.Close()
	v.capture = nil

	return err
}

// imageSource yields a single still image as a one-frame video.
type imageSource struct {
	mat  *gocv.Mat
	read bool
	mu   sync.Mutex
}

// OpenImage loads a still image as a one-frame source.
func OpenImage(path string) (Source, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("read image %s: %w", path, ErrSourceNotOpen)
	}

	return &imageSource{mat: &mat}, nil
}

// Read returns a copy of the image once, then io.EOF.
func (s *imageSource) Read() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mat == nil {
		return nil, ErrSourceNotOpen
	}
	if s.read {
		return nil, io.EOF
	}
	s.read = true

	frame := s.mat.Clone()
	return &frame, nil
}

// FPS is unknown for still images.
func (s *imageSource) FPS() float64 { return 0 }

// FrameCount is always one for still images.
func (s *imageSource) FrameCount() int { return 1 }

// Close releases the image.
func (s *imageSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mat == nil {
		return nil
	}

	err := s.mat.Close()
	s.mat = nil

	return err
}
