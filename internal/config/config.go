// Package config loads drivewatch settings from a YAML file, an optional
// .env file and the process environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/drivewatch/internal/analysis"
	"github.com/ayusman/drivewatch/internal/capture"
	"github.com/ayusman/drivewatch/internal/classifier"
	"github.com/ayusman/drivewatch/internal/landmark"
)

// Environment variable names.
const (
	EnvConfigPath        = "DRIVEWATCH_CONFIG"
	EnvLogLevel          = "DRIVEWATCH_LOG_LEVEL"
	EnvLogFormat         = "DRIVEWATCH_LOG_FORMAT"
	EnvMediaPipeScript   = "DRIVEWATCH_MEDIAPIPE_SCRIPT"
	EnvPython            = "DRIVEWATCH_PYTHON"
	EnvClassifier        = "DRIVEWATCH_CLASSIFIER"
	EnvClassifierModel   = "DRIVEWATCH_CLASSIFIER_MODEL"
	EnvClassifierAddr    = "DRIVEWATCH_CLASSIFIER_ADDR"
	EnvClassifierTimeout = "DRIVEWATCH_CLASSIFIER_TIMEOUT"
)

// Config is the complete drivewatch configuration.
type Config struct {
	Log        LogConfig           `yaml:"log"`
	Sampling   SamplingConfig      `yaml:"sampling"`
	Thresholds analysis.Thresholds `yaml:"thresholds"`
	Landmarks  LandmarksConfig     `yaml:"landmarks"`
	Classifier ClassifierConfig    `yaml:"classifier"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// SamplingConfig controls how many frames are analyzed per second of video.
type SamplingConfig struct {
	TargetRate int `yaml:"target_rate"`
	MinStride  int `yaml:"min_stride"`
}

// LandmarksConfig configures the MediaPipe subprocess.
type LandmarksConfig struct {
	ScriptPath    string  `yaml:"script_path"` // empty: search the default locations
	PythonPath    string  `yaml:"python_path"`
	MaxHands      int     `yaml:"max_hands"`
	MaxFaces      int     `yaml:"max_faces"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// ClassifierConfig selects the optional driver-state classifier.
type ClassifierConfig struct {
	Backend        string   `yaml:"backend"` // none, dnn, grpc
	ModelPaths     []string `yaml:"model_paths"`
	InputSize      int      `yaml:"input_size"`
	Address        string   `yaml:"address"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	lm := landmark.DefaultConfig()

	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Sampling: SamplingConfig{
			TargetRate: capture.DefaultTargetRate,
			MinStride:  capture.DefaultMinStride,
		},
		Thresholds: analysis.DefaultThresholds(),
		Landmarks: LandmarksConfig{
			MaxHands:      lm.MaxHands,
			MaxFaces:      lm.MaxFaces,
			MinConfidence: lm.MinConfidence,
		},
		Classifier: ClassifierConfig{
			Backend: classifier.BackendDNN,
			ModelPaths: []string{
				"models/driver_state.onnx",
				"driver_state.onnx",
			},
			InputSize:      classifier.DefaultInputSize,
			TimeoutSeconds: int(classifier.DefaultTimeout.Seconds()),
		},
	}
}

// LoadDotEnv loads variables from the given .env files (".env" when none are
// named). Missing files are not an error; variables already set in the
// environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Debug("no env file found, using process environment", "path", p)
				continue
			}
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from DRIVEWATCH_* environment variables.
func (c *Config) ApplyEnv() {
	c.Log.Level = getEnv(EnvLogLevel, c.Log.Level)
	c.Log.Format = getEnv(EnvLogFormat, c.Log.Format)
	c.Landmarks.ScriptPath = getEnv(EnvMediaPipeScript, c.Landmarks.ScriptPath)
	c.Landmarks.PythonPath = getEnv(EnvPython, c.Landmarks.PythonPath)
	c.Classifier.Backend = getEnv(EnvClassifier, c.Classifier.Backend)
	c.Classifier.Address = getEnv(EnvClassifierAddr, c.Classifier.Address)
	c.Classifier.TimeoutSeconds = getEnvInt(EnvClassifierTimeout, c.Classifier.TimeoutSeconds)

	if model := os.Getenv(EnvClassifierModel); model != "" {
		c.Classifier.ModelPaths = []string{model}
	}
}

// Validate checks the configuration for values the pipeline cannot use.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", c.Log.Format)
	}

	if c.Sampling.TargetRate <= 0 {
		return fmt.Errorf("sampling target_rate must be positive, got %d", c.Sampling.TargetRate)
	}
	if c.Sampling.MinStride <= 0 {
		return fmt.Errorf("sampling min_stride must be positive, got %d", c.Sampling.MinStride)
	}

	if err := c.Thresholds.Validate(); err != nil {
		return err
	}

	if c.Landmarks.MaxHands < 1 || c.Landmarks.MaxFaces < 1 {
		return fmt.Errorf("landmarks need max_hands >= 1 and max_faces >= 1")
	}
	if c.Landmarks.MinConfidence < 0 || c.Landmarks.MinConfidence > 1 {
		return fmt.Errorf("landmarks min_confidence must be in [0,1], got %v", c.Landmarks.MinConfidence)
	}

	switch c.Classifier.Backend {
	case classifier.BackendNone:
	case classifier.BackendDNN:
		if len(c.Classifier.ModelPaths) == 0 {
			return fmt.Errorf("classifier backend dnn needs at least one model path")
		}
	case classifier.BackendGRPC:
		if c.Classifier.Address == "" {
			return fmt.Errorf("classifier backend grpc needs an address")
		}
	default:
		return fmt.Errorf("unknown classifier backend %q", c.Classifier.Backend)
	}

	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

// SamplerConfig converts the sampling settings.
func (c *Config) SamplerConfig() capture.SamplerConfig {
	return capture.SamplerConfig{
		TargetRate: c.Sampling.TargetRate,
		MinStride:  c.Sampling.MinStride,
	}
}

// LandmarkConfig converts the landmark settings.
func (c *Config) LandmarkConfig() landmark.Config {
	return landmark.Config{
		MaxHands:      c.Landmarks.MaxHands,
		MaxFaces:      c.Landmarks.MaxFaces,
		MinConfidence: c.Landmarks.MinConfidence,
		ScriptPath:    c.Landmarks.ScriptPath,
		PythonPath:    c.Landmarks.PythonPath,
	}
}

// ClassifierOptions converts the classifier settings.
func (c *Config) ClassifierOptions() classifier.Options {
	return classifier.Options{
		Backend:        c.Classifier.Backend,
		ModelPaths:     append([]string(nil), c.Classifier.ModelPaths...),
		InputSize:      c.Classifier.InputSize,
		Address:        c.Classifier.Address,
		TimeoutSeconds: c.Classifier.TimeoutSeconds,
	}
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

func getEnv(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	return defaultVal
}
