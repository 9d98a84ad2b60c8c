package e2e

import (
	"encoding/json"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/drivewatch/internal/analysis"
	"github.com/ayusman/drivewatch/internal/classifier"
	"github.com/ayusman/drivewatch/internal/config"
	"github.com/ayusman/drivewatch/internal/landmark"
)

const (
	clipFrames = 60
	clipFPS    = 30
	clipWidth  = 320
	clipHeight = 240
)

// writeClip renders a short synthetic dashcam clip. It skips the test when
// the local OpenCV build has no MJPG encoder.
func writeClip(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "drive.avi")
	writer, err := gocv.VideoWriterFile(path, "MJPG", clipFPS, clipWidth, clipHeight, true)
	if err != nil || !writer.IsOpened() {
		t.Skipf("video encoding unavailable: %v", err)
	}

	frame := gocv.NewMatWithSize(clipHeight, clipWidth, gocv.MatTypeCV8UC3)
	defer frame.Close()

	for i := range clipFrames {
		frame.SetTo(gocv.NewScalar(40, 40, 40, 0))
		gocv.Circle(&frame, image.Pt(clipWidth/2+i, clipHeight/3), 30, color.RGBA{R: 200, G: 180, B: 160}, -1)
		if err := writer.Write(frame); err != nil {
			writer.Close()
			t.Fatalf("write frame %d: %v", i, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	return path
}

func writeStill(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "driver.png")
	frame := gocv.NewMatWithSize(clipHeight, clipWidth, gocv.MatTypeCV8UC3)
	defer frame.Close()

	if ok := gocv.IMWrite(path, frame); !ok {
		t.Fatalf("IMWrite(%s) failed", path)
	}
	return path
}

func TestE2E_AnalyzeVideo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	clip := writeClip(t)

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}

	provider := landmark.NewMockProvider()
	provider.SetResult(landmark.Result{
		Face:  landmark.ForwardFace(),
		Hands: []landmark.HandLandmarks{landmark.PhoneToEarHand()},
	})

	a, err := analysis.New(analysis.Config{
		Provider:   provider,
		Thresholds: cfg.Thresholds,
		Sampling:   cfg.SamplerConfig(),
	})
	if err != nil {
		t.Fatalf("analysis.New() error = %v", err)
	}

	t.Run("GeometryOnly", func(t *testing.T) {
		result := a.Analyze(clip)

		if result.Behaviors[0] != analysis.BehaviorMobile {
			t.Fatalf("Behaviors = %v, want %s first", result.Behaviors, analysis.BehaviorMobile)
		}
		if result.RiskLevel != analysis.Critical {
			t.Errorf("RiskLevel = %v, want Critical", result.RiskLevel)
		}
		// 60 frames at 30 fps: stride 5, 12 sampled.
		if result.Stats.FramesAnalyzed != 12 {
			t.Errorf("FramesAnalyzed = %d, want 12", result.Stats.FramesAnalyzed)
		}
		if result.Stats.FramesAnalyzed > result.Stats.TotalFrames {
			t.Errorf("FramesAnalyzed %d > TotalFrames %d", result.Stats.FramesAnalyzed, result.Stats.TotalFrames)
		}
		if result.Source != clip {
			t.Errorf("Source = %q, want %q", result.Source, clip)
		}
	})

	t.Run("WithClassifier", func(t *testing.T) {
		var safe classifier.Prediction
		safe[classifier.SafeDriving] = 0.95

		withModel, err := analysis.New(analysis.Config{
			Provider:   provider,
			Classifier: classifier.NewMockClassifier(safe),
		})
		if err != nil {
			t.Fatalf("analysis.New() error = %v", err)
		}

		result := withModel.Analyze(clip)
		if result.Behaviors[0] != analysis.BehaviorNormal {
			t.Errorf("Behaviors = %v, want %s", result.Behaviors, analysis.BehaviorNormal)
		}
		if result.Stats.AnalysisMethod != analysis.MethodCombined {
			t.Errorf("AnalysisMethod = %q", result.Stats.AnalysisMethod)
		}
	})

	t.Run("ResultJSON", func(t *testing.T) {
		data, err := json.Marshal(a.Analyze(clip))
		if err != nil {
			t.Fatalf("json.Marshal() error = %v", err)
		}

		var decoded struct {
			Behaviors []string           `json:"behaviors"`
			Warnings  []analysis.Warning `json:"warnings"`
			RiskLevel string             `json:"risk_level"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("json.Unmarshal() error = %v", err)
		}
		if decoded.RiskLevel != "Critical" || decoded.Warnings[0].Severity != analysis.Critical {
			t.Errorf("decoded = %+v", decoded)
		}
	})
}

func TestE2E_AnalyzeImage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	provider := landmark.NewMockProvider()
	provider.SetResult(landmark.Result{
		Face:  landmark.TurnedFace(0.6),
		Hands: []landmark.HandLandmarks{landmark.SteeringHand()},
	})

	a, err := analysis.New(analysis.Config{Provider: provider})
	if err != nil {
		t.Fatalf("analysis.New() error = %v", err)
	}

	result := a.AnalyzeImage(writeStill(t))

	if result.Stats.FramesAnalyzed != 1 || result.Stats.TotalFrames != 1 {
		t.Errorf("frames = %d/%d, want 1/1", result.Stats.FramesAnalyzed, result.Stats.TotalFrames)
	}
	if result.Behaviors[0] != analysis.BehaviorDistracted {
		t.Errorf("Behaviors = %v, want %s", result.Behaviors, analysis.BehaviorDistracted)
	}
	if provider.Calls() != 1 {
		t.Errorf("provider called %d times, want 1", provider.Calls())
	}
}
