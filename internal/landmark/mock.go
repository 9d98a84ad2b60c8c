package landmark

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockProvider is a test implementation of the Provider interface.
// It returns either a fixed result or, when a sequence is set, one result per
// call in order (the last entry repeats once the sequence is exhausted).
type MockProvider struct {
	mu       sync.Mutex
	result   Result
	sequence []Result
	calls    int
	err      error
	failOn   map[int]bool
}

// NewMockProvider creates a new MockProvider instance.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// SetResult sets the result returned by every Process call.
func (m *MockProvider) SetResult(r Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = r
	m.sequence = nil
}

// SetSequence sets per-call results.
func (m *MockProvider) SetSequence(results []Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = results
}

// SetError sets the error that will be returned by Process.
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FailOn makes the n-th call (1-based) return the configured error only.
func (m *MockProvider) FailOn(calls ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn = make(map[int]bool, len(calls))
	for _, c := range calls {
		m.failOn[c] = true
	}
}

// Calls returns the number of Process calls made so far.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Process returns the pre-configured result or error.
func (m *MockProvider) Process(frame *gocv.Mat) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil && (m.failOn == nil || m.failOn[m.calls]) {
		return Result{}, m.err
	}

	if len(m.sequence) > 0 {
		i := m.calls - 1
		if i >= len(m.sequence) {
			i = len(m.sequence) - 1
		}
		return m.sequence[i], nil
	}

	return m.result, nil
}

// Close is a no-op for the mock provider.
func (m *MockProvider) Close() error {
	return nil
}

// ForwardFace returns a face mesh looking straight at the camera: the nose
// tip sits exactly between the outer eye corners.
func ForwardFace() *FaceLandmarks {
	face := &FaceLandmarks{Points: make([]Point3D, NumFaceLandmarks)}
	for i := range face.Points {
		face.Points[i] = Point3D{X: 0.5, Y: 0.4}
	}

	face.Points[LeftEyeOuter] = Point3D{X: 0.44, Y: 0.35}
	face.Points[RightEyeOuter] = Point3D{X: 0.56, Y: 0.35}
	face.Points[NoseTip] = Point3D{X: 0.50, Y: 0.42}
	face.Points[MouthLeft] = Point3D{X: 0.47, Y: 0.48}
	face.Points[MouthRight] = Point3D{X: 0.53, Y: 0.48}
	face.Points[LeftEar] = Point3D{X: 0.38, Y: 0.40}
	face.Points[RightEar] = Point3D{X: 0.62, Y: 0.40}

	return face
}

// TurnedFace returns a face mesh whose nose tip is shifted sideways by
// offset inter-ocular distances from the eye midpoint.
func TurnedFace(offset float64) *FaceLandmarks {
	face := ForwardFace()
	interocular := face.Points[RightEyeOuter].X - face.Points[LeftEyeOuter].X
	face.Points[NoseTip].X = 0.5 + offset*interocular
	return face
}

// HandAt returns a right hand whose palm center sits at (x, y) and whose
// index fingertip sits at (tipX, tipY), all normalized.
func HandAt(x, y, tipX, tipY float64) HandLandmarks {
	hand := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	for i := range hand.Points {
		hand.Points[i] = Point3D{X: x, Y: y + 0.05}
	}

	hand.Points[Wrist] = Point3D{X: x, Y: y + 0.08}
	hand.Points[IndexMCP] = Point3D{X: x + 0.02, Y: y}
	hand.Points[MiddleMCP] = Point3D{X: x, Y: y}
	hand.Points[IndexTip] = Point3D{X: tipX, Y: tipY}

	return hand
}

// PhoneToEarHand returns a hand holding a phone to the left ear of ForwardFace.
func PhoneToEarHand() HandLandmarks {
	ear := ForwardFace().Points[LeftEar]
	return HandAt(ear.X, ear.Y+0.06, ear.X+0.01, ear.Y)
}

// DashboardHand returns a hand resting on the center console area.
func DashboardHand() HandLandmarks {
	return HandAt(0.60, 0.70, 0.62, 0.66)
}

// SteeringHand returns a hand on the left side of the steering wheel, away
// from the face and the dashboard zone.
func SteeringHand() HandLandmarks {
	return HandAt(0.25, 0.70, 0.26, 0.64)
}
