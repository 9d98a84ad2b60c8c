// Package classifier defines the optional driver-state image classifier: a
// fixed ten-label output, the Classifier interface and its implementations.
package classifier

import (
	"errors"
	"fmt"
	"math"
)

// ErrBadOutput is returned when a model produces a vector that is not a
// probability distribution over Labels.
var ErrBadOutput = errors.New("classifier output is not a label distribution")

// Label indices, in model output order.
const (
	SafeDriving = iota
	TextingRight
	PhoneRight
	TextingLeft
	PhoneLeft
	Radio
	Drinking
	ReachingBehind
	HairMakeup
	Talking

	NumLabels
)

// Labels are the human-readable class names, indexed by the constants above.
var Labels = [NumLabels]string{
	"Safe Driving",
	"Texting Right",
	"Phone Right",
	"Texting Left",
	"Phone Left",
	"Radio",
	"Drinking",
	"Reaching Behind",
	"Hair/Makeup",
	"Talking",
}

// Prediction is a probability vector over Labels.
type Prediction [NumLabels]float64

// sumTolerance is how far a prediction may sum from 1.
const sumTolerance = 0.05

// FromSlice validates a raw model output and converts it to a Prediction.
func FromSlice(values []float64) (Prediction, error) {
	var p Prediction
	if len(values) != NumLabels {
		return p, fmt.Errorf("got %d values, want %d: %w", len(values), NumLabels, ErrBadOutput)
	}

	var sum float64
	for i, v := range values {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return p, fmt.Errorf("value %d is %v: %w", i, v, ErrBadOutput)
		}
		p[i] = v
		sum += v
	}

	if math.Abs(sum-1) > sumTolerance {
		return p, fmt.Errorf("values sum to %.3f: %w", sum, ErrBadOutput)
	}

	return p, nil
}

// ArgMax returns the index and probability of the most likely label. Ties
// resolve to the lowest index.
func (p Prediction) ArgMax() (int, float64) {
	best := 0
	for i := 1; i < NumLabels; i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return best, p[best]
}

// Average returns the component-wise mean of preds. ok is false when preds
// is empty.
func Average(preds []Prediction) (avg Prediction, ok bool) {
	if len(preds) == 0 {
		return avg, false
	}

	for _, p := range preds {
		for i := range p {
			avg[i] += p[i]
		}
	}

	n := float64(len(preds))
	for i := range avg {
		avg[i] /= n
	}

	return avg, true
}
