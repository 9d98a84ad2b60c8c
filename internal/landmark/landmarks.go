// Package landmark defines the hand and face landmark types produced by the
// landmark provider and the named point indices detectors read them by.
package landmark

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21

	// PalmCenter is the point used as the center of the hand.
	PalmCenter = MiddleMCP
)

// Face mesh landmark indices following the MediaPipe FaceMesh topology.
const (
	NoseTip       = 1
	LeftEyeOuter  = 33
	MouthLeft     = 61
	LeftEar       = 234
	RightEyeOuter = 263
	MouthRight    = 291
	RightEar      = 454

	// NumFaceLandmarks is the minimum number of points in a valid face mesh.
	NumFaceLandmarks = 468
)

// Point3D represents a 3D point with coordinates normalized to the frame.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Scale converts a normalized point to pixel space for a w x h frame.
func (p Point3D) Scale(w, h int) (float64, float64) {
	return p.X * float64(w), p.Y * float64(h)
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// FaceLandmarks represents a face mesh. Points is indexed by the face
// constants above.
type FaceLandmarks struct {
	Points []Point3D `json:"points"`
}

// Valid reports whether the mesh carries enough points to be indexed by
// every named face constant.
func (f *FaceLandmarks) Valid() bool {
	return f != nil && len(f.Points) >= NumFaceLandmarks && len(f.Points) > RightEar
}

// Point returns the face point at index i.
func (f *FaceLandmarks) Point(i int) Point3D {
	return f.Points[i]
}

// Result is the landmark output for a single frame: up to two hands and at
// most one face.
type Result struct {
	Hands []HandLandmarks `json:"hands"`
	Face  *FaceLandmarks  `json:"face,omitempty"`
}

// HasFace reports whether a usable face mesh was detected.
func (r Result) HasFace() bool {
	return r.Face.Valid()
}

// HasHands reports whether at least one hand was detected.
func (r Result) HasHands() bool {
	return len(r.Hands) > 0
}

// Distance returns the Euclidean distance between two pixel-space points.
func Distance(ax, ay, bx, by float64) float64 {
	return math.Hypot(ax-bx, ay-by)
}
