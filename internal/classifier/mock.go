package classifier

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockClassifier is a test implementation of the Classifier interface.
type MockClassifier struct {
	mu    sync.Mutex
	pred  Prediction
	err   error
	calls int
}

// NewMockClassifier creates a classifier that always returns pred.
func NewMockClassifier(pred Prediction) *MockClassifier {
	return &MockClassifier{pred: pred}
}

// SetError sets the error that will be returned by Predict.
func (m *MockClassifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of Predict calls made so far.
func (m *MockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Predict returns the pre-configured prediction or error.
func (m *MockClassifier) Predict(frame *gocv.Mat) (Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return Prediction{}, m.err
	}
	return m.pred, nil
}

// Close is a no-op for the mock classifier.
func (m *MockClassifier) Close() error {
	return nil
}

// OneHot returns a prediction with p on label and the remainder spread
// evenly over the other labels.
func OneHot(label int, p float64) Prediction {
	var pred Prediction
	rest := (1 - p) / float64(NumLabels-1)
	for i := range pred {
		pred[i] = rest
	}
	pred[label] = p
	return pred
}
