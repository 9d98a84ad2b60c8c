package landmark

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrScriptNotFound is returned when the MediaPipe service script cannot be located.
var ErrScriptNotFound = errors.New("mediapipe_service.py not found")

// Provider defines the interface for landmark provider implementations.
type Provider interface {
	// Process analyzes a video frame and returns the detected hand and face
	// landmarks. A frame with nothing detected yields an empty Result.
	Process(frame *gocv.Mat) (Result, error)

	// Close releases any resources held by the provider.
	Close() error
}

// Config holds configuration options for landmark detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MaxFaces is the maximum number of faces to detect (default: 1).
	MaxFaces int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// ScriptPath overrides the MediaPipe service script location.
	ScriptPath string

	// PythonPath overrides the Python interpreter used to run the script.
	PythonPath string
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:      2,
		MaxFaces:      1,
		MinConfidence: 0.5,
	}
}
