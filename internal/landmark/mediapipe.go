package landmark

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// idleTimeout is how long the Python process may sit unused before it is stopped.
const idleTimeout = 30 * time.Second

// MediaPipeProvider implements Provider using a Python MediaPipe subprocess
// running both the Hands and FaceMesh solutions.
//
// Protocol: each frame is written to stdin as a 4-byte big-endian length
// followed by JPEG bytes; the service answers with one JSON line.
type MediaPipeProvider struct {
	config     Config
	scriptPath string
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	mu         sync.Mutex
	started    bool
	lastUsed   time.Time
	idleTimer  *time.Timer
}

// NewMediaPipeProvider creates a new MediaPipe landmark provider.
// The Python process is started lazily on first use.
func NewMediaPipeProvider(config Config) (*MediaPipeProvider, error) {
	scriptPath := config.ScriptPath
	if scriptPath == "" {
		scriptPath = findMediaPipeScript()
	}
	if scriptPath == "" {
		return nil, ErrScriptNotFound
	}
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, fmt.Errorf("stat %s: %w", scriptPath, ErrScriptNotFound)
	}

	if config.MaxHands <= 0 {
		config.MaxHands = DefaultConfig().MaxHands
	}
	if config.MaxFaces <= 0 {
		config.MaxFaces = DefaultConfig().MaxFaces
	}

	return &MediaPipeProvider{
		config:     config,
		scriptPath: scriptPath,
	}, nil
}

// Process analyzes a frame and returns the detected landmarks.
func (p *MediaPipeProvider) Process(frame *gocv.Mat) (Result, error) {
	if frame == nil || frame.Empty() {
		return Result{}, fmt.Errorf("empty frame")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureStarted(); err != nil {
		return Result{}, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return Result{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := p.stdin.Write(length); err != nil {
		p.abort()
		return Result{}, fmt.Errorf("write length: %w", err)
	}
	if _, err := p.stdin.Write(data); err != nil {
		p.abort()
		return Result{}, fmt.Errorf("write data: %w", err)
	}

	line, err := p.stdout.ReadString('\n')
	if err != nil {
		p.abort()
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	result, err := parseResponse([]byte(line), p.config.MaxHands)
	if err != nil {
		return Result{}, err
	}

	p.lastUsed = time.Now()
	p.resetIdleTimer()

	return result, nil
}

// Close shuts down the Python process.
func (p *MediaPipeProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdown()
}

func (p *MediaPipeProvider) ensureStarted() error {
	if p.started {
		return nil
	}

	pythonPath := p.config.PythonPath
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	p.cmd = exec.Command(pythonPath, p.scriptPath,
		"--max-hands", strconv.Itoa(p.config.MaxHands),
		"--max-faces", strconv.Itoa(p.config.MaxFaces),
		"--min-confidence", strconv.FormatFloat(p.config.MinConfidence, 'f', -1, 64),
	)

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	p.cmd.Stderr = os.Stderr

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("start mediapipe service: %w", err)
	}

	slog.Debug("mediapipe service started", "script", p.scriptPath, "python", pythonPath)

	p.stdin = stdin
	p.stdout = bufio.NewReader(stdout)
	p.started = true
	p.lastUsed = time.Now()

	return nil
}

// abort tears the process down after a protocol failure so the next call
// starts a fresh one instead of reading a desynchronized stream.
func (p *MediaPipeProvider) abort() {
	if p.cmd != nil && p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	if err := p.shutdown(); err != nil {
		slog.Debug("mediapipe service exited", "error", err)
	}
}

func (p *MediaPipeProvider) shutdown() error {
	if !p.started {
		return nil
	}

	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}

	if p.stdin != nil {
		p.stdin.Close()
	}

	err := p.cmd.Wait()
	p.started = false
	p.cmd = nil
	p.stdin = nil
	p.stdout = nil

	return err
}

func (p *MediaPipeProvider) resetIdleTimer() {
	if p.idleTimer != nil {
		p.idleTimer.Stop()
	}
	p.idleTimer = time.AfterFunc(idleTimeout, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if err := p.shutdown(); err != nil {
			slog.Debug("idle mediapipe service stopped", "error", err)
		}
	})
}

func findMediaPipeScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/mediapipe_service.py",
		"../scripts/mediapipe_service.py",
		filepath.Join(execDir, "scripts/mediapipe_service.py"),
		filepath.Join(os.Getenv("HOME"), ".drivewatch/scripts/mediapipe_service.py"),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".drivewatch/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonResponse is the JSON line produced by the Python service.
type jsonResponse struct {
	Hands []jsonHand `json:"hands"`
	Face  *jsonFace  `json:"face"`
	Error string     `json:"error,omitempty"`
}

type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonFace struct {
	Points []jsonPoint `json:"points"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func parseResponse(line []byte, maxHands int) (Result, error) {
	var response jsonResponse
	if err := json.Unmarshal(line, &response); err != nil {
		return Result{}, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return Result{}, fmt.Errorf("mediapipe: %s", response.Error)
	}

	var result Result
	for _, h := range response.Hands {
		if maxHands > 0 && len(result.Hands) >= maxHands {
			break
		}
		// Partial hands cannot be indexed safely.
		if len(h.Points) < NumLandmarks {
			continue
		}
		result.Hands = append(result.Hands, h.toHandLandmarks())
	}

	if response.Face != nil {
		face := response.Face.toFaceLandmarks()
		if face.Valid() {
			result.Face = face
		}
	}

	return result, nil
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	for i := 0; i < NumLandmarks && i < len(h.Points); i++ {
		lm.Points[i] = Point3D(h.Points[i])
	}

	return lm
}

func (f jsonFace) toFaceLandmarks() *FaceLandmarks {
	face := &FaceLandmarks{Points: make([]Point3D, len(f.Points))}
	for i, p := range f.Points {
		face.Points[i] = Point3D(p)
	}
	return face
}
