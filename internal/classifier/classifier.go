package classifier

import (
	"fmt"
	"log/slog"
	"os"

	"gocv.io/x/gocv"
)

// Classifier scores a frame against Labels.
//
// Implementations are built once at process start and shared read-only by
// every analysis; Predict must be safe for concurrent use.
type Classifier interface {
	Predict(frame *gocv.Mat) (Prediction, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendNone = "none"
	BackendDNN  = "dnn"
	BackendGRPC = "grpc"
)

// Options selects and configures a classifier backend.
type Options struct {
	Backend string

	// DNN backend: the first existing path in ModelPaths is loaded.
	ModelPaths []string
	InputSize  int

	// gRPC backend.
	Address        string
	TimeoutSeconds int
}

// Open builds the configured classifier. It returns (nil, nil) for the
// "none" backend, or when no model file exists, so callers degrade to
// geometry-only analysis.
func Open(opts Options) (Classifier, error) {
	switch opts.Backend {
	case "", BackendNone:
		return nil, nil

	case BackendDNN:
		path := findModel(opts.ModelPaths)
		if path == "" {
			slog.Warn("no classifier model found, using geometry only", "candidates", opts.ModelPaths)
			return nil, nil
		}
		c, err := NewDNNClassifier(path, opts.InputSize)
		if err != nil {
			return nil, err
		}
		return c, nil

	case BackendGRPC:
		c, err := NewRemoteClassifier(opts.Address, opts.TimeoutSeconds)
		if err != nil {
			return nil, err
		}
		return c, nil

	default:
		return nil, fmt.Errorf("unknown classifier backend %q", opts.Backend)
	}
}

func findModel(candidates []string) string {
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}
