package analysis

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/ayusman/drivewatch/internal/classifier"
)

func withPrediction(r Rates, p classifier.Prediction) Rates {
	r.Prediction = p
	r.HasPrediction = true
	return r
}

func TestFuse(t *testing.T) {
	visible := Rates{FaceDetection: 100, HandDetection: 50, Sampled: 20}
	allGeometry := Rates{Phone: 100, Radio: 100, Distraction: 100, FaceDetection: 100, HandDetection: 100, Sampled: 20}

	var safe90 classifier.Prediction
	safe90[classifier.SafeDriving] = 0.9

	mixed := classifier.Prediction{0.45, 0, 0, 0, 0, 0.40, 0.05, 0.05, 0.05, 0}

	tests := []struct {
		name          string
		rates         Rates
		wantBehaviors []string
		wantRisk      Severity
		wantConf      float64
	}{
		{
			name:          "clean geometry",
			rates:         visible,
			wantBehaviors: []string{BehaviorNormal},
			wantRisk:      Low,
			wantConf:      95,
		},
		{
			name:          "phone rate exactly at threshold",
			rates:         Rates{Phone: 5.0, FaceDetection: 100, Sampled: 20},
			wantBehaviors: []string{BehaviorNormal},
			wantRisk:      Low,
			wantConf:      95,
		},
		{
			name:          "phone rate just above threshold",
			rates:         Rates{Phone: 5.1, FaceDetection: 100, Sampled: 20},
			wantBehaviors: []string{BehaviorMobile},
			wantRisk:      Critical,
			wantConf:      95,
		},
		{
			name:          "radio at threshold",
			rates:         Rates{Radio: 20, FaceDetection: 100, Sampled: 20},
			wantBehaviors: []string{BehaviorNormal},
			wantRisk:      Low,
			wantConf:      95,
		},
		{
			name:          "radio above threshold",
			rates:         Rates{Radio: 25, FaceDetection: 100, Sampled: 20},
			wantBehaviors: []string{BehaviorRadio},
			wantRisk:      Medium,
			wantConf:      95,
		},
		{
			name:          "gaze needs a visible face",
			rates:         Rates{Distraction: 40, FaceDetection: 30, Sampled: 20},
			wantBehaviors: []string{BehaviorNormal},
			wantRisk:      Low,
			wantConf:      65.5,
		},
		{
			name:          "gaze with visible face",
			rates:         Rates{Distraction: 40, FaceDetection: 80, Sampled: 20},
			wantBehaviors: []string{BehaviorDistracted},
			wantRisk:      High,
			wantConf:      78,
		},
		{
			name:          "face not visible",
			rates:         Rates{Sampled: 20},
			wantBehaviors: []string{BehaviorNotVisible},
			wantRisk:      Medium,
			wantConf:      70,
		},
		{
			name:          "every geometric signal",
			rates:         allGeometry,
			wantBehaviors: []string{BehaviorMobile, BehaviorRadio, BehaviorDistracted},
			wantRisk:      Critical,
			wantConf:      65,
		},
		{
			name:          "confident safe classifier vetoes geometry",
			rates:         withPrediction(allGeometry, safe90),
			wantBehaviors: []string{BehaviorNormal},
			wantRisk:      Low,
			wantConf:      90,
		},
		{
			name:          "safe override keeps visibility",
			rates:         withPrediction(Rates{Phone: 50, Sampled: 20}, safe90),
			wantBehaviors: []string{BehaviorNotVisible},
			wantRisk:      Medium,
			wantConf:      90,
		},
		{
			name:          "drinking",
			rates:         withPrediction(visible, classifier.OneHot(classifier.Drinking, 0.6)),
			wantBehaviors: []string{BehaviorDrinking},
			wantRisk:      Critical,
			wantConf:      75,
		},
		{
			name:          "drinking alongside geometry",
			rates:         withPrediction(allGeometry, classifier.OneHot(classifier.Drinking, 0.8)),
			wantBehaviors: []string{BehaviorMobile, BehaviorRadio, BehaviorDistracted, BehaviorDrinking},
			wantRisk:      Critical,
			wantConf:      80,
		},
		{
			name:          "grooming",
			rates:         withPrediction(visible, classifier.OneHot(classifier.HairMakeup, 0.5)),
			wantBehaviors: []string{BehaviorGrooming},
			wantRisk:      Medium,
			wantConf:      75,
		},
		{
			name:          "model phone label",
			rates:         withPrediction(visible, classifier.OneHot(classifier.TextingLeft, 0.4)),
			wantBehaviors: []string{BehaviorMobile},
			wantRisk:      Critical,
			wantConf:      75,
		},
		{
			name:          "model reaching behind",
			rates:         withPrediction(visible, classifier.OneHot(classifier.ReachingBehind, 0.7)),
			wantBehaviors: []string{BehaviorRadio},
			wantRisk:      Medium,
			wantConf:      75,
		},
		{
			name:          "weak safe does not override",
			rates:         withPrediction(visible, mixed),
			wantBehaviors: []string{BehaviorRadio},
			wantRisk:      Medium,
			wantConf:      75,
		},
		{
			name:          "uncertain model adds nothing",
			rates:         withPrediction(visible, classifier.OneHot(classifier.Talking, 0.3)),
			wantBehaviors: []string{BehaviorNormal},
			wantRisk:      Low,
			wantConf:      75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fuse(tt.rates, DefaultThresholds())

			if !reflect.DeepEqual(got.Behaviors, tt.wantBehaviors) {
				t.Errorf("Behaviors = %v, want %v", got.Behaviors, tt.wantBehaviors)
			}
			if len(got.Warnings) != len(got.Behaviors) {
				t.Errorf("got %d warnings for %d behaviors", len(got.Warnings), len(got.Behaviors))
			}
			if got.RiskLevel != tt.wantRisk {
				t.Errorf("RiskLevel = %v, want %v", got.RiskLevel, tt.wantRisk)
			}
			if got.Confidence != tt.wantConf {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConf)
			}
		})
	}
}

func TestFuse_WarningSeverities(t *testing.T) {
	want := map[string]Severity{
		TypeMobile:      Critical,
		TypeRadio:       Medium,
		TypeDistraction: High,
		TypeDrinking:    Critical,
	}

	r := withPrediction(
		Rates{Phone: 100, Radio: 100, Distraction: 100, FaceDetection: 100, Sampled: 10},
		classifier.OneHot(classifier.Drinking, 0.9),
	)

	got := Fuse(r, DefaultThresholds())
	for _, w := range got.Warnings {
		if w.Severity != want[w.Type] {
			t.Errorf("warning %s severity = %v, want %v", w.Type, w.Severity, want[w.Type])
		}
	}

	notVisible := Fuse(Rates{Sampled: 1}, DefaultThresholds())
	if w := notVisible.Warnings[0]; w.Type != TypeVisibility || w.Severity != Medium {
		t.Errorf("visibility warning = %+v", w)
	}

	normal := Fuse(Rates{FaceDetection: 100, Sampled: 1}, DefaultThresholds())
	if w := normal.Warnings[0]; w.Type != TypeNormal || w.Severity != Low {
		t.Errorf("normal warning = %+v", w)
	}
}

func TestFuse_Stats(t *testing.T) {
	r := Rates{
		Phone:         100.0 / 3,
		Radio:         0,
		Distraction:   200.0 / 3,
		FaceDetection: 100,
		HandDetection: 100.0 / 3,
		Sampled:       3,
	}

	got := Fuse(r, DefaultThresholds()).Stats
	if got.PhoneUsage != 33.3 || got.Distraction != 66.7 || got.HandDetection != 33.3 {
		t.Errorf("Stats not rounded to one decimal: %+v", got)
	}
	if got.FramesAnalyzed != 3 {
		t.Errorf("FramesAnalyzed = %d, want 3", got.FramesAnalyzed)
	}
	if got.AnalysisMethod != MethodGeometry {
		t.Errorf("AnalysisMethod = %q, want %q", got.AnalysisMethod, MethodGeometry)
	}

	withModel := Fuse(withPrediction(r, classifier.OneHot(classifier.SafeDriving, 0.876)), DefaultThresholds()).Stats
	if withModel.AnalysisMethod != MethodCombined {
		t.Errorf("AnalysisMethod = %q, want %q", withModel.AnalysisMethod, MethodCombined)
	}
	if withModel.ModelConfidence != 87.6 {
		t.Errorf("ModelConfidence = %v, want 87.6", withModel.ModelConfidence)
	}
}

func TestFuse_CustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.Phone = 10

	r := Rates{Phone: 8, FaceDetection: 100, Sampled: 25}
	if got := Fuse(r, th); got.Behaviors[0] != BehaviorNormal {
		t.Errorf("Behaviors = %v, want Normal Driving under a 10%% phone threshold", got.Behaviors)
	}
	if got := Fuse(r, DefaultThresholds()); got.Behaviors[0] != BehaviorMobile {
		t.Errorf("Behaviors = %v, want Mobile Phone Usage under defaults", got.Behaviors)
	}
}

func TestThresholds_Validate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Errorf("DefaultThresholds().Validate() error = %v", err)
	}

	bad := DefaultThresholds()
	bad.Radio = 120
	if err := bad.Validate(); err == nil {
		t.Error("expected error for rate above 100")
	}

	bad = DefaultThresholds()
	bad.ModelSafe = 1.5
	if err := bad.Validate(); err == nil {
		t.Error("expected error for probability above 1")
	}

	// Several bad fields always report the first one in field order.
	bad = DefaultThresholds()
	bad.ModelBehavior = -1
	bad.Gaze = 200
	bad.Phone = math.NaN()
	for range 20 {
		err := bad.Validate()
		if err == nil || !strings.Contains(err.Error(), "threshold phone") {
			t.Fatalf("Validate() error = %v, want it to name phone", err)
		}
	}
}
