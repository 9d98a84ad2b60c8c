package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ayusman/drivewatch/internal/analysis"
	"github.com/ayusman/drivewatch/internal/classifier"
	"github.com/ayusman/drivewatch/internal/config"
	"github.com/ayusman/drivewatch/internal/landmark"
	"github.com/ayusman/drivewatch/internal/watch"
)

// Version information
const version = "v0.1.0"

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".webp": true,
}

var videoExts = map[string]bool{
	".mp4": true,
	".avi": true,
	".mov": true,
	".mkv": true,
}

func isMedia(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return imageExts[ext] || videoExts[ext]
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run executes the CLI and returns its exit code: 0 on success, 1 when setup
// fails and 2 when any input could not be analyzed. Results go to stdout.
func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("drivewatch", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to YAML config (default $"+config.EnvConfigPath+")")
	envFile := fs.String("env", ".env", "Env file to load before reading the config")
	pretty := fs.Bool("pretty", false, "Indent JSON output")
	mockLandmarks := fs.Bool("mock-landmarks", false, "Use an empty landmark provider when MediaPipe is unavailable")
	watchDir := fs.String("watch", "", "Analyze clips as they are written to this directory")
	settle := fs.Duration("settle", watch.DefaultSettle, "Quiet period before a watched file is analyzed")
	showVersion := fs.Bool("version", false, "Show version and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: drivewatch [flags] <video-or-image>...\n")
		fmt.Fprintf(fs.Output(), "       drivewatch [flags] -watch <dir>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	if *showVersion {
		fmt.Fprintf(stdout, "drivewatch %s\n", version)
		return 0
	}

	if fs.NArg() == 0 && *watchDir == "" {
		fs.Usage()
		return 1
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Printf("Failed to load env file: %v", err)
		return 1
	}

	path := *configPath
	if path == "" {
		path = os.Getenv(config.EnvConfigPath)
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}

	setupLogging(cfg)

	provider, err := openProvider(cfg, *mockLandmarks)
	if err != nil {
		log.Printf("Landmark provider unavailable: %v", err)
		return 1
	}
	defer provider.Close()

	// Loaded once and shared by every analysis.
	model, err := classifier.Open(cfg.ClassifierOptions())
	if err != nil {
		log.Printf("Failed to open classifier: %v", err)
		return 1
	}
	if model != nil {
		defer model.Close()
	}

	analyzer, err := analysis.New(analysis.Config{
		Provider:   provider,
		Classifier: model,
		Thresholds: cfg.Thresholds,
		Sampling:   cfg.SamplerConfig(),
	})
	if err != nil {
		log.Printf("Failed to create analyzer: %v", err)
		return 1
	}

	if *watchDir != "" {
		return watchAndAnalyze(analyzer, stdout, *watchDir, *settle, *pretty)
	}

	exit := 0
	for _, input := range fs.Args() {
		result := analyze(analyzer, input)
		if err := writeResult(stdout, result, *pretty); err != nil {
			log.Printf("Failed to write result: %v", err)
			return 1
		}
		if failed(result) {
			exit = 2
		}
	}
	return exit
}

func failed(result analysis.Result) bool {
	return result.Behaviors[0] == analysis.BehaviorFailed || result.Behaviors[0] == analysis.BehaviorAnalysisErr
}

// watchAndAnalyze writes one result line per settled clip until interrupted.
func watchAndAnalyze(a *analysis.Analyzer, stdout io.Writer, dir string, settle time.Duration, pretty bool) int {
	w, err := watch.New(watch.Config{Dir: dir, Settle: settle, Match: isMedia})
	if err != nil {
		log.Printf("Failed to watch %s: %v", dir, err)
		return 1
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Watching for clips", "dir", dir, "settle", settle)

	err = w.Run(ctx, func(path string) {
		if err := writeResult(stdout, analyze(a, path), pretty); err != nil {
			slog.Error("Failed to write result", "path", path, "error", err)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Watch stopped: %v", err)
		return 1
	}

	slog.Info("Shutting down")
	return 0
}

func setupLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	// Results go to stdout, so logs go to stderr.
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// openProvider starts MediaPipe, falling back to the mock provider only when
// allowed.
func openProvider(cfg *config.Config, allowMock bool) (landmark.Provider, error) {
	mp, err := landmark.NewMediaPipeProvider(cfg.LandmarkConfig())
	if err == nil {
		slog.Info("Using MediaPipe landmark detection")
		return mp, nil
	}
	if !allowMock {
		return nil, err
	}

	slog.Warn("MediaPipe not available, using mock provider", "error", err)
	return landmark.NewMockProvider(), nil
}

func analyze(a *analysis.Analyzer, input string) analysis.Result {
	if imageExts[strings.ToLower(filepath.Ext(input))] {
		return a.AnalyzeImage(input)
	}
	return a.Analyze(input)
}

func writeResult(w io.Writer, result analysis.Result, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}
