package capture

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gocv.io/x/gocv"
)

// Default sampling settings.
const (
	// DefaultTargetRate is the number of frames per second selected for analysis.
	DefaultTargetRate = 6
	// DefaultMinStride is the smallest allowed stride between selected frames.
	DefaultMinStride = 5
)

// SamplerConfig controls frame selection.
type SamplerConfig struct {
	TargetRate int
	MinStride  int

	// FixedStride, when positive, bypasses the frame-rate computation.
	// Still images use 1 so their only frame is always selected.
	FixedStride int
}

// DefaultSamplerConfig returns the standard ~6 frames per second sampling.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		TargetRate: DefaultTargetRate,
		MinStride:  DefaultMinStride,
	}
}

// Stride returns max(minStride, floor(fps/targetRate)). An unknown frame
// rate (fps <= 0 or NaN) yields minStride.
func Stride(fps float64, cfg SamplerConfig) int {
	if cfg.FixedStride > 0 {
		return cfg.FixedStride
	}
	if cfg.MinStride <= 0 {
		cfg.MinStride = DefaultMinStride
	}
	if cfg.TargetRate <= 0 {
		cfg.TargetRate = DefaultTargetRate
	}

	if math.IsNaN(fps) || math.IsInf(fps, 0) || fps <= 0 {
		return cfg.MinStride
	}

	stride := int(math.Floor(fps / float64(cfg.TargetRate)))
	if stride < cfg.MinStride {
		return cfg.MinStride
	}
	return stride
}

// Frame is a sampled frame together with its position in decode order.
type Frame struct {
	Mat    *gocv.Mat
	Index  int // 1-based decode index
	Width  int
	Height int
}

// Close releases the frame pixels.
func (f *Frame) Close() error {
	if f == nil || f.Mat == nil {
		return nil
	}
	err := f.Mat.Close()
	f.Mat = nil
	return err
}

// Sampler walks a Source in decode order and yields every stride-th frame.
// It is a one-shot iterator: once it returns an error (including io.EOF)
// every later call returns the same error.
type Sampler struct {
	src      Source
	stride   int
	decoded  int
	selected int
	err      error
}

// NewSampler creates a sampler over src using the source's reported frame rate.
func NewSampler(src Source, cfg SamplerConfig) *Sampler {
	return &Sampler{
		src:    src,
		stride: Stride(src.FPS(), cfg),
	}
}

// Next returns the next selected frame. Frames between selections are
// decoded and released so the decode index stays accurate. The caller must
// Close the returned frame.
func (s *Sampler) Next() (*Frame, error) {
	if s.err != nil {
		return nil, s.err
	}

	for {
		mat, err := s.src.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.err = io.EOF
			} else {
				s.err = fmt.Errorf("read frame %d: %w", s.decoded+1, err)
			}
			return nil, s.err
		}

		s.decoded++
		if s.decoded%s.stride != 0 {
			mat.Close()
			continue
		}

		s.selected++
		return &Frame{
			Mat:    mat,
			Index:  s.decoded,
			Width:  mat.Cols(),
			Height: mat.Rows(),
		}, nil
	}
}

// Stride returns the decode-index stride in use.
func (s *Sampler) Stride() int { return s.stride }

// Decoded returns how many frames have been decoded so far.
func (s *Sampler) Decoded() int { return s.decoded }

// Selected returns how many frames have been yielded so far.
func (s *Sampler) Selected() int { return s.selected }
