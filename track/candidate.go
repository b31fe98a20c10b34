// Package track implements single-blob tracking over per-frame color-blob
// detections: nearest-candidate association with a hard color gate, a
// fixed-window moving average over the tracked feature vector, and adaptive
// LAB threshold maintenance for the underlying detector.
package track

import "context"

// Candidate is one blob detection produced by the external detector for a
// single frame. Candidates are read-only to the tracker; they are discarded
// after one tracking step unless retained in the history window.
type Candidate struct {
	// Bounding-box geometry in pixels (top-left corner origin).
	X float64
	Y float64
	W float64
	H float64
	// Rotation is the blob's major-axis rotation in degrees.
	Rotation float64
	// Shape metrics in [0, 1].
	Density   float64
	Roundness float64
	// Pixels is the number of pixels belonging to the blob.
	Pixels int
	// Code identifies which color threshold class matched the blob.
	Code int
}

// Rect returns the candidate's bounding rectangle.
func (c Candidate) Rect() Rectangle {
	return Rectangle{
		X:      c.X,
		Y:      c.Y,
		Width:  c.W,
		Height: c.H,
	}
}

// ColorStatistics summarizes the LAB color distribution over a region of
// interest, as reported by the detector.
type ColorStatistics struct {
	LMean  float64
	LStdev float64
	AMean  float64
	AStdev float64
	BMean  float64
	BStdev float64
}

// DetectParams are the detector tuning knobs passed through to FindBlobs.
type DetectParams struct {
	// PixelsThreshold rejects blobs with fewer matching pixels.
	PixelsThreshold int
	// AreaThreshold rejects blobs with a smaller bounding-box area.
	AreaThreshold int
	// Merge joins blobs closer than MergeDistance into one.
	Merge         bool
	MergeDistance int
}

// DefaultDetectParams are the fixed detector parameters used by both the
// tracking step and reference acquisition.
var DefaultDetectParams = DetectParams{
	PixelsThreshold: 75,
	AreaThreshold:   100,
	Merge:           true,
	MergeDistance:   20,
}

// Frame is one captured image, already owned by the detector. Blob search
// and color statistics must both run against the same frame.
type Frame interface {
	// FindBlobs segments the frame with the given thresholds and returns
	// the detected blob candidates.
	FindBlobs(thresholds ThresholdSet, params DetectParams) []Candidate
	// Statistics computes the LAB color statistics over roi.
	Statistics(roi Rectangle) ColorStatistics
}

// FrameSource produces frames, typically from a camera sensor.
type FrameSource interface {
	Capture(ctx context.Context) (Frame, error)
}

// StatusIndicator receives tracking lifecycle notifications. Hardware
// builds wire this to an LED; it carries no decision-relevant state.
type StatusIndicator interface {
	TrackingAcquired()
	TrackingLost()
}

// RangeFinder reads the distance to the tracked object in millimeters.
type RangeFinder interface {
	ReadMillimeters() (int, error)
}

type noopIndicator struct{}

func (noopIndicator) TrackingAcquired() {}
func (noopIndicator) TrackingLost()     {}
