package analysis

import (
	"fmt"
	"math"

	"github.com/ayusman/drivewatch/internal/classifier"
)

// Thresholds gate the fusion rules. Rates are percentages of sampled frames;
// probabilities are in [0,1]. All comparisons are strict.
type Thresholds struct {
	Phone       float64 `yaml:"phone"`
	Radio       float64 `yaml:"radio"`
	Gaze        float64 `yaml:"gaze"`
	FaceVisible float64 `yaml:"face_visible"`

	ModelSafe     float64 `yaml:"model_safe"`
	ModelBehavior float64 `yaml:"model_behavior"`
}

// DefaultThresholds returns the calibrated production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Phone:         5,
		Radio:         20,
		Gaze:          30,
		FaceVisible:   30,
		ModelSafe:     0.50,
		ModelBehavior: 0.35,
	}
}

// Validate checks that rates are percentages and probabilities are in [0,1].
// Fields are checked in declaration order.
func (t Thresholds) Validate() error {
	checks := []struct {
		name  string
		value float64
		max   float64
	}{
		{"phone", t.Phone, 100},
		{"radio", t.Radio, 100},
		{"gaze", t.Gaze, 100},
		{"face_visible", t.FaceVisible, 100},
		{"model_safe", t.ModelSafe, 1},
		{"model_behavior", t.ModelBehavior, 1},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || c.value < 0 || c.value > c.max {
			return fmt.Errorf("threshold %s must be in [0,%v], got %v", c.name, c.max, c.value)
		}
	}
	return nil
}

// Confidence formula constants.
const (
	geometryBase      = 70.0
	geometryFaceGain  = 0.25
	geometryGazeLoss  = 0.3
	geometryMinConf   = 60.0
	geometryMaxConf   = 95.0
	modelConfidenceLo = 75.0
)

var (
	phoneLabels = []int{
		classifier.PhoneRight, classifier.PhoneLeft,
		classifier.TextingRight, classifier.TextingLeft,
		classifier.Talking,
	}
	radioLabels = []int{classifier.Radio, classifier.ReachingBehind}
)

// modelVerdict is the reading of the averaged classifier prediction.
type modelVerdict struct {
	present    bool
	safe       bool
	behaviors  [classifier.NumLabels]bool
	confidence float64 // arg-max probability as a percentage
}

func (v modelVerdict) anyOf(labels []int) bool {
	for _, l := range labels {
		if v.behaviors[l] {
			return true
		}
	}
	return false
}

func readModel(r Rates, t Thresholds) modelVerdict {
	if !r.HasPrediction {
		return modelVerdict{}
	}

	idx, p := r.Prediction.ArgMax()
	v := modelVerdict{present: true, confidence: p * 100}

	if idx == classifier.SafeDriving && p > t.ModelSafe {
		v.safe = true
		return v
	}

	for i := range r.Prediction {
		if i != classifier.SafeDriving && r.Prediction[i] > t.ModelBehavior {
			v.behaviors[i] = true
		}
	}
	return v
}

// Fuse applies the decision table to finalized rates. The returned result has
// no ID, source or timestamp and its TotalFrames equals FramesAnalyzed; the
// Analyzer fills those in.
func Fuse(r Rates, t Thresholds) Result {
	model := readModel(r, t)

	var (
		behaviors []string
		warnings  []Warning
	)
	add := func(behavior, typ, message string, severity Severity) {
		behaviors = append(behaviors, behavior)
		warnings = append(warnings, mustWarning(typ, message, severity))
	}

	aiNote := ""
	if model.present {
		aiNote = fmt.Sprintf(" (AI: %.1f%%)", model.confidence)
	}

	if !model.safe && (r.Phone > t.Phone || model.anyOf(phoneLabels)) {
		add(BehaviorMobile, TypeMobile, fmt.Sprintf(
			"ALERT: Mobile phone usage detected in %.1f%% of video%s. Avoid using mobile while driving!",
			r.Phone, aiNote), Critical)
	}

	if !model.safe && (r.Radio > t.Radio || model.anyOf(radioLabels)) {
		add(BehaviorRadio, TypeRadio, fmt.Sprintf(
			"WARNING: Radio/dashboard interaction detected in %.1f%% of video%s. Keep hands on wheel!",
			r.Radio, aiNote), Medium)
	}

	if !model.safe && r.Distraction > t.Gaze && r.FaceDetection > t.FaceVisible {
		add(BehaviorDistracted, TypeDistraction, fmt.Sprintf(
			"CAUTION: Driver looking away detected in %.1f%% of video. Stay focused on road!",
			r.Distraction), High)
	}

	if r.FaceDetection < t.FaceVisible {
		add(BehaviorNotVisible, TypeVisibility, fmt.Sprintf(
			"WARNING: Driver face not clearly visible in video (detected in %.1f%% of frames). Ensure proper camera angle.",
			r.FaceDetection), Medium)
	}

	if model.behaviors[classifier.Drinking] {
		add(BehaviorDrinking, TypeDrinking, fmt.Sprintf(
			"DANGER: Drinking detected by AI model (Confidence: %.1f%%)", model.confidence), Critical)
	}

	if model.behaviors[classifier.HairMakeup] {
		add(BehaviorGrooming, TypeGrooming, fmt.Sprintf(
			"WARNING: Grooming detected by AI model (Confidence: %.1f%%)", model.confidence), Medium)
	}

	if len(behaviors) == 0 {
		add(BehaviorNormal, TypeNormal, fmt.Sprintf(
			"Safe driving behavior detected. Driver focused on road. (Face detected: %.0f%%)%s",
			r.FaceDetection, aiNote), Low)
	}

	stats := Stats{
		PhoneUsage:      round1(r.Phone),
		RadioUsage:      round1(r.Radio),
		Distraction:     round1(r.Distraction),
		FaceDetection:   round1(r.FaceDetection),
		HandDetection:   round1(r.HandDetection),
		FramesAnalyzed:  r.Sampled,
		TotalFrames:     r.Sampled,
		ModelConfidence: round1(model.confidence),
		AnalysisMethod:  MethodGeometry,
	}
	if model.present {
		stats.AnalysisMethod = MethodCombined
	}

	return Result{
		Behaviors:  behaviors,
		Warnings:   warnings,
		RiskLevel:  RollupRisk(warnings),
		Confidence: round1(confidence(r, model)),
		Stats:      stats,
	}
}

func confidence(r Rates, model modelVerdict) float64 {
	if model.present {
		return math.Max(model.confidence, modelConfidenceLo)
	}
	c := geometryBase + geometryFaceGain*r.FaceDetection - geometryGazeLoss*r.Distraction
	return math.Min(geometryMaxConf, math.Max(geometryMinConf, c))
}
