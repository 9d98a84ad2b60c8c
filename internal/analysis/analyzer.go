package analysis

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/drivewatch/internal/behavior"
	"github.com/ayusman/drivewatch/internal/capture"
	"github.com/ayusman/drivewatch/internal/classifier"
	"github.com/ayusman/drivewatch/internal/landmark"
)

// Config holds the collaborators and settings of an Analyzer.
type Config struct {
	// Provider is required.
	Provider landmark.Provider
	// Classifier is optional; nil means geometry-only analysis.
	Classifier classifier.Classifier
	// Thresholds default to DefaultThresholds when left zero.
	Thresholds Thresholds
	// Sampling defaults to capture.DefaultSamplerConfig when left zero.
	Sampling capture.SamplerConfig
}

// Analyzer runs the sampling, detection and fusion pipeline over one video
// per call. An Analyzer may be shared by concurrent calls as long as its
// Provider and Classifier are safe for concurrent use.
type Analyzer struct {
	provider   landmark.Provider
	classifier classifier.Classifier
	thresholds Thresholds
	sampling   capture.SamplerConfig
	now        func() time.Time
}

// New creates an Analyzer.
func New(config Config) (*Analyzer, error) {
	if config.Provider == nil {
		return nil, errors.New("landmark provider is required")
	}

	thresholds := config.Thresholds
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}

	sampling := config.Sampling
	if sampling == (capture.SamplerConfig{}) {
		sampling = capture.DefaultSamplerConfig()
	}

	return &Analyzer{
		provider:   config.Provider,
		classifier: config.Classifier,
		thresholds: thresholds,
		sampling:   sampling,
		now:        time.Now,
	}, nil
}

// Analyze analyzes the video at path. It always returns a well-formed
// result; failures are reported inside it.
func (a *Analyzer) Analyze(path string) Result {
	return a.run(path, a.sampling, func() (capture.Source, error) {
		return capture.OpenVideo(path)
	})
}

// AnalyzeImage analyzes a single still image as a one-frame video.
func (a *Analyzer) AnalyzeImage(path string) Result {
	return a.run(path, capture.SamplerConfig{FixedStride: 1}, func() (capture.Source, error) {
		return capture.OpenImage(path)
	})
}

// AnalyzeSource analyzes an already opened source. The source is closed
// before AnalyzeSource returns.
func (a *Analyzer) AnalyzeSource(src capture.Source) Result {
	return a.run("", a.sampling, func() (capture.Source, error) {
		if src == nil {
			return nil, capture.ErrSourceNotOpen
		}
		return src, nil
	})
}

func (a *Analyzer) run(name string, sampling capture.SamplerConfig, open func() (capture.Source, error)) (result Result) {
	id := uuid.NewString()
	logger := slog.With("analysis_id", id)
	if name != "" {
		logger = logger.With("source", name)
	}

	// Stamp every result, including the degraded ones.
	defer func() {
		if r := recover(); r != nil {
			logger.Error("analysis panicked", "panic", r)
			result = errorResult(r)
		}
		result.ID = id
		result.Source = name
		result.AnalyzedAt = a.now()
	}()

	src, err := open()
	if err != nil {
		logger.Warn("could not open source", "error", err)
		return failedResult()
	}
	defer src.Close()

	return a.process(src, sampling, logger)
}

// process is the single linear pass: sample, detect, aggregate, fuse.
func (a *Analyzer) process(src capture.Source, sampling capture.SamplerConfig, logger *slog.Logger) Result {
	start := time.Now()
	sampler := capture.NewSampler(src, sampling)

	var stats FrameStats
	for {
		frame, err := sampler.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("frame decoding stopped early", "error", err, "decoded", sampler.Decoded())
			}
			break
		}

		if err := a.observe(&stats, frame, logger); err != nil {
			panic(err)
		}
	}

	rates, err := stats.Finalize()
	if err != nil {
		logger.Warn("no frames sampled", "error", err, "decoded", sampler.Decoded())
		return failedResult()
	}

	result := Fuse(rates, a.thresholds)
	result.Stats.TotalFrames = max(src.FrameCount(), sampler.Decoded())

	logger.Info("analysis complete",
		"behaviors", result.Behaviors,
		"risk_level", result.RiskLevel.String(),
		"confidence", result.Confidence,
		"frames_analyzed", result.Stats.FramesAnalyzed,
		"stride", sampler.Stride(),
		"elapsed", time.Since(start),
	)

	return result
}

// observe evaluates one sampled frame. Provider failures only blank that
// frame's signals.
func (a *Analyzer) observe(stats *FrameStats, frame *capture.Frame, logger *slog.Logger) error {
	defer frame.Close()

	marks, err := a.provider.Process(frame.Mat)
	if err != nil {
		logger.Warn("landmark detection failed", "frame", frame.Index, "error", err)
		marks = landmark.Result{}
	}

	signals := behavior.Evaluate(marks, frame.Width, frame.Height)

	var pred *classifier.Prediction
	if a.classifier != nil {
		if p, err := a.classifier.Predict(frame.Mat); err != nil {
			logger.Warn("classifier failed", "frame", frame.Index, "error", err)
		} else {
			pred = &p
		}
	}

	if err := stats.Observe(signals, pred); err != nil {
		return fmt.Errorf("observe frame %d: %w", frame.Index, err)
	}
	return nil
}
