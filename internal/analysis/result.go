package analysis

import (
	"fmt"
	"math"
	"time"
)

// Warning types.
const (
	TypeMobile      = "mobile"
	TypeRadio       = "radio"
	TypeDistraction = "distraction"
	TypeVisibility  = "visibility"
	TypeDrinking    = "drinking"
	TypeGrooming    = "grooming"
	TypeNormal      = "normal"
	TypeError       = "error"
)

// Behavior labels.
const (
	BehaviorMobile      = "Mobile Phone Usage"
	BehaviorRadio       = "Radio Distraction"
	BehaviorDistracted  = "Distracted Driving"
	BehaviorNotVisible  = "Driver Not Visible"
	BehaviorDrinking    = "Drinking While Driving"
	BehaviorGrooming    = "Grooming While Driving"
	BehaviorNormal      = "Normal Driving"
	BehaviorFailed      = "Analysis Failed"
	BehaviorAnalysisErr = "Analysis Error"
)

// Analysis methods reported in Stats.
const (
	MethodCombined = "AI + Computer Vision"
	MethodGeometry = "Computer Vision Only"
)

// Warning is one finding attached to a result.
type Warning struct {
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// NewWarning builds a warning, rejecting severities outside the four levels.
func NewWarning(typ, message string, severity Severity) (Warning, error) {
	if !severity.Valid() {
		return Warning{}, fmt.Errorf("warning %q: invalid severity %d", typ, int(severity))
	}
	if typ == "" {
		return Warning{}, fmt.Errorf("warning type is required")
	}
	return Warning{Type: typ, Message: message, Severity: severity}, nil
}

// mustWarning is for the fixed warnings built inside this package, whose
// severities are constants.
func mustWarning(typ, message string, severity Severity) Warning {
	w, err := NewWarning(typ, message, severity)
	if err != nil {
		panic(err)
	}
	return w
}

// Stats are the aggregate rates behind a result. Percentages are in [0,100]
// and rounded to one decimal.
type Stats struct {
	PhoneUsage      float64 `json:"phone_usage"`
	RadioUsage      float64 `json:"radio_usage"`
	Distraction     float64 `json:"distraction"`
	FaceDetection   float64 `json:"face_detection"`
	HandDetection   float64 `json:"hand_detection"`
	FramesAnalyzed  int     `json:"frames_analyzed"`
	TotalFrames     int     `json:"total_frames"`
	ModelConfidence float64 `json:"model_confidence"`
	AnalysisMethod  string  `json:"analysis_method"`
}

// Result is the outcome of one analysis call. It is not modified after it is
// returned.
type Result struct {
	ID         string    `json:"id"`
	Source     string    `json:"source,omitempty"`
	Behaviors  []string  `json:"behaviors"`
	Warnings   []Warning `json:"warnings"`
	RiskLevel  Severity  `json:"risk_level"`
	Confidence float64   `json:"confidence"`
	Stats      Stats     `json:"stats"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// Map returns the result in its plain map form.
func (r Result) Map() map[string]any {
	warnings := make([]map[string]any, len(r.Warnings))
	for i, w := range r.Warnings {
		warnings[i] = map[string]any{
			"type":     w.Type,
			"message":  w.Message,
			"severity": w.Severity.String(),
		}
	}

	behaviors := make([]string, len(r.Behaviors))
	copy(behaviors, r.Behaviors)

	stats := map[string]any{
		"phone_usage":      r.Stats.PhoneUsage,
		"radio_usage":      r.Stats.RadioUsage,
		"distraction":      r.Stats.Distraction,
		"face_detection":   r.Stats.FaceDetection,
		"hand_detection":   r.Stats.HandDetection,
		"frames_analyzed":  r.Stats.FramesAnalyzed,
		"total_frames":     r.Stats.TotalFrames,
		"model_confidence": r.Stats.ModelConfidence,
		"analysis_method":  r.Stats.AnalysisMethod,
	}

	return map[string]any{
		"id":          r.ID,
		"source":      r.Source,
		"behaviors":   behaviors,
		"warnings":    warnings,
		"risk_level":  r.RiskLevel.String(),
		"confidence":  r.Confidence,
		"stats":       stats,
		"analyzed_at": r.AnalyzedAt.Format(time.RFC3339),
	}
}

// failedResult is returned when no frame could be sampled.
func failedResult() Result {
	w := mustWarning(TypeError,
		"Could not analyze video. Please ensure good lighting and clear view of driver.", Medium)
	return Result{
		Behaviors:  []string{BehaviorFailed},
		Warnings:   []Warning{w},
		RiskLevel:  Medium,
		Confidence: 50.0,
		Stats:      Stats{AnalysisMethod: MethodGeometry},
	}
}

// errorResult is returned when an analysis call faults.
func errorResult(cause any) Result {
	w := mustWarning(TypeError,
		fmt.Sprintf("Error analyzing video: %v. Please try again.", cause), Medium)
	return Result{
		Behaviors:  []string{BehaviorAnalysisErr},
		Warnings:   []Warning{w},
		RiskLevel:  Medium,
		Confidence: 0.0,
		Stats:      Stats{AnalysisMethod: MethodGeometry},
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
