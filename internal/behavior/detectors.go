// Package behavior provides the geometric behavior detectors. Each detector
// is a pure predicate over one frame's landmarks and the frame size; spatial
// thresholds are fractions of the frame width or height.
package behavior

import (
	"math"

	"github.com/ayusman/drivewatch/internal/landmark"
)

// Geometry thresholds.
const (
	// PhoneReach is the fingertip-to-ear/mouth distance, as a fraction of
	// frame width, under which a hand counts as holding a phone.
	PhoneReach = 0.08

	// Dashboard zone bounds as fractions of width and height. The zone sits
	// right of center and below the steering wheel to leave out the mirror.
	DashboardMinX = 0.45
	DashboardMaxX = 0.75
	DashboardMinY = 0.55
	DashboardMaxY = 0.85

	// GazeDeviation is the nose offset from the eye midpoint, in inter-ocular
	// distances, above which the head counts as turned away.
	GazeDeviation = 0.28
	// GazeDeviationRaw is used instead when the eyes are too close together
	// to normalize by.
	GazeDeviationRaw = 0.08
	// MinInterocular is the smallest inter-ocular distance that can be
	// normalized by.
	MinInterocular = 0.001
)

// phoneTargets are the face points a phone is held against.
var phoneTargets = [...]int{
	landmark.LeftEar,
	landmark.RightEar,
	landmark.MouthLeft,
	landmark.MouthRight,
}

// PhoneNearFace reports whether any hand's index fingertip is within
// PhoneReach of an ear or mouth corner. It needs a face and at least one hand.
func PhoneNearFace(hands []landmark.HandLandmarks, face *landmark.FaceLandmarks, w, h int) bool {
	if len(hands) == 0 || !face.Valid() {
		return false
	}

	limit := float64(w) * PhoneReach

	var targets [len(phoneTargets)][2]float64
	for i, idx := range phoneTargets {
		targets[i][0], targets[i][1] = face.Point(idx).Scale(w, h)
	}

	for i := range hands {
		tipX, tipY := hands[i].Points[landmark.IndexTip].Scale(w, h)
		for _, p := range targets {
			if landmark.Distance(tipX, tipY, p[0], p[1]) < limit {
				return true
			}
		}
	}
	return false
}

// HandInDashboardZone reports whether any hand's palm center lies strictly
// inside the dashboard/radio zone.
func HandInDashboardZone(hands []landmark.HandLandmarks, w, h int) bool {
	minX, maxX := float64(w)*DashboardMinX, float64(w)*DashboardMaxX
	minY, maxY := float64(h)*DashboardMinY, float64(h)*DashboardMaxY

	for i := range hands {
		x, y := hands[i].Points[landmark.PalmCenter].Scale(w, h)
		if minX < x && x < maxX && minY < y && y < maxY {
			return true
		}
	}
	return false
}

// HeadTurnedAway reports whether the nose tip is displaced horizontally from
// the midpoint of the outer eye corners. A missing face is not a distraction;
// visibility is tracked separately.
func HeadTurnedAway(face *landmark.FaceLandmarks) bool {
	if !face.Valid() {
		return false
	}

	nose := face.Point(landmark.NoseTip)
	left := face.Point(landmark.LeftEyeOuter)
	right := face.Point(landmark.RightEyeOuter)

	deviation := math.Abs(nose.X - (left.X+right.X)/2)

	interocular := math.Abs(left.X - right.X)
	if interocular <= MinInterocular {
		return deviation > GazeDeviationRaw
	}

	return deviation/interocular > GazeDeviation
}

// Signals are the per-frame booleans fed to the aggregator.
type Signals struct {
	FaceDetected bool
	HandDetected bool
	Phone        bool
	Radio        bool
	Distracted   bool
}

// Evaluate runs every detector over one frame's landmarks.
func Evaluate(r landmark.Result, w, h int) Signals {
	return Signals{
		FaceDetected: r.HasFace(),
		HandDetected: r.HasHands(),
		Phone:        PhoneNearFace(r.Hands, r.Face, w, h),
		Radio:        HandInDashboardZone(r.Hands, w, h),
		Distracted:   HeadTurnedAway(r.Face),
	}
}
