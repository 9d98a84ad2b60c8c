package analysis

import (
	"errors"

	"github.com/ayusman/drivewatch/internal/behavior"
	"github.com/ayusman/drivewatch/internal/classifier"
)

var (
	// ErrNoFrames is returned by Finalize when no frame was observed.
	ErrNoFrames = errors.New("no frames observed")
	// ErrStatsFinalized is returned when stats are used after Finalize.
	ErrStatsFinalized = errors.New("frame stats already finalized")
)

// FrameStats accumulates signals across the sampled frames of one analysis.
// Every counter is at most Sampled.
type FrameStats struct {
	Sampled     int
	Face        int
	Hand        int
	Phone       int
	Radio       int
	Distraction int

	predictions []classifier.Prediction
	finalized   bool
}

// Observe records one sampled frame. pred is nil when no classifier ran or
// the classifier failed on this frame.
func (s *FrameStats) Observe(sig behavior.Signals, pred *classifier.Prediction) error {
	if s.finalized {
		return ErrStatsFinalized
	}

	s.Sampled++
	if sig.FaceDetected {
		s.Face++
	}
	if sig.HandDetected {
		s.Hand++
	}
	if sig.Phone {
		s.Phone++
	}
	if sig.Radio {
		s.Radio++
	}
	if sig.Distracted {
		s.Distraction++
	}
	if pred != nil {
		s.predictions = append(s.predictions, *pred)
	}
	return nil
}

// Rates are finalized FrameStats: percentages of sampled frames, plus the
// mean classifier prediction when one exists.
type Rates struct {
	Phone         float64
	Radio         float64
	Distraction   float64
	FaceDetection float64
	HandDetection float64
	Sampled       int

	Prediction    classifier.Prediction
	HasPrediction bool
}

// Finalize converts the counters to percentages. It succeeds at most once.
func (s *FrameStats) Finalize() (Rates, error) {
	if s.finalized {
		return Rates{}, ErrStatsFinalized
	}
	if s.Sampled == 0 {
		return Rates{}, ErrNoFrames
	}
	s.finalized = true

	n := float64(s.Sampled)
	r := Rates{
		Phone:         float64(s.Phone) / n * 100,
		Radio:         float64(s.Radio) / n * 100,
		Distraction:   float64(s.Distraction) / n * 100,
		FaceDetection: float64(s.Face) / n * 100,
		HandDetection: float64(s.Hand) / n * 100,
		Sampled:       s.Sampled,
	}
	r.Prediction, r.HasPrediction = classifier.Average(s.predictions)
	s.predictions = nil

	return r, nil
}
