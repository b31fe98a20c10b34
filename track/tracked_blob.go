package track

import (
	kalman_filter "github.com/LdDl/kalman-filter"
)

// State is the tracking lifecycle of a TrackedBlob.
type State int

const (
	// StateAcquiring means the blob holds no identity: history and feature
	// vector are empty and every Update only counts untracked frames.
	StateAcquiring State = iota
	// StateTracking means the blob carries an identity seeded by Reinit.
	StateTracking
)

// IncompatibleDistance is returned by Compare for candidates whose color
// class differs from the tracked one. Color identity is a hard gate: the
// value is far above any usable feature distance threshold.
const IncompatibleDistance = 32767.0

// Kalman filter props for the advisory center-motion estimator.
const (
	motionDT       = 1.0
	motionUx       = 1.0
	motionUy       = 1.0
	motionStdDevA  = 2.0
	motionStdDevMx = 0.1
	motionStdDevMy = 0.1
)

// TrackedBlob owns the identity of the single tracked object: a bounded
// FIFO window of recently associated candidates and a feature vector
// smoothed with an exact moving average over that window.
//
// Invariant: the feature vector is zero if and only if the history is empty
// (StateAcquiring). Reset and Reinit are the only state transitions.
type TrackedBlob struct {
	state                State
	history              []Candidate
	feature              FeatureVector
	untrackedFrames      int
	normLevel            int
	featureDistThreshold float64
	windowSize           int
	id                   int

	// Advisory center-motion estimate. Never participates in association.
	motion        *kalman_filter.Kalman2D
	predictedNext Point
}

// NewTrackedBlob creates a blob in StateAcquiring. normLevel selects L1
// (1) or L2 (any other value) feature distance; featureDistThreshold is the
// maximum distance for a successful association; windowSize is the history
// capacity used for smoothing.
func NewTrackedBlob(normLevel int, featureDistThreshold float64, windowSize int, id int) *TrackedBlob {
	if windowSize < 1 {
		windowSize = 1
	}
	return &TrackedBlob{
		state:                StateAcquiring,
		normLevel:            normLevel,
		featureDistThreshold: featureDistThreshold,
		windowSize:           windowSize,
		id:                   id,
	}
}

// State returns the current lifecycle state.
func (tb *TrackedBlob) State() State {
	return tb.state
}

// ID returns the blob's identifier.
func (tb *TrackedBlob) ID() int {
	return tb.id
}

// Feature returns the smoothed feature vector. It is the zero vector while
// acquiring.
func (tb *TrackedBlob) Feature() FeatureVector {
	return tb.feature
}

// UntrackedFrames returns the number of consecutive frames without a
// successful association.
func (tb *TrackedBlob) UntrackedFrames() int {
	return tb.untrackedFrames
}

// HistoryLen returns the current fill level of the smoothing window.
func (tb *TrackedBlob) HistoryLen() int {
	return len(tb.history)
}

// WindowSize returns the history capacity.
func (tb *TrackedBlob) WindowSize() int {
	return tb.windowSize
}

// Reset clears the history and feature vector and enters StateAcquiring.
// Distance parameters are kept; subsequent Update calls only increment the
// untracked-frame counter until Reinit repopulates the blob.
func (tb *TrackedBlob) Reset() {
	tb.state = StateAcquiring
	tb.history = nil
	tb.feature = FeatureVector{}
	tb.motion = nil
	tb.predictedNext = Point{}
}

// Reinit seeds the blob with a single candidate, discarding any prior
// history, and enters StateTracking.
func (tb *TrackedBlob) Reinit(c Candidate) {
	tb.history = make([]Candidate, 1, tb.windowSize+1)
	tb.history[0] = c
	tb.feature = featureOf(c)
	tb.untrackedFrames = 0
	tb.state = StateTracking

	center := c.Rect().Center()
	tb.motion = kalman_filter.NewKalman2D(
		motionDT, motionUx, motionUy,
		motionStdDevA, motionStdDevMx, motionStdDevMy,
		kalman_filter.WithState2D(center.X, center.Y),
	)
	tb.predictedNext = center
}

// Compare returns the feature distance between a candidate and the current
// feature vector. Candidates of a different color class always get
// IncompatibleDistance, regardless of geometry.
func (tb *TrackedBlob) Compare(c Candidate) float64 {
	if tb.state != StateTracking {
		return IncompatibleDistance
	}
	if c.Code != tb.history[len(tb.history)-1].Code {
		return IncompatibleDistance
	}
	return featureDistance(featureOf(c), tb.feature, tb.normLevel)
}

// Update associates the nearest compatible candidate with the tracked blob.
// On success it resets the untracked-frame counter, pushes the candidate
// into the FIFO window, recomputes the feature vector as an exact moving
// average and returns the candidate's bounding rectangle. On failure (no
// candidates, no candidate under the distance threshold, or StateAcquiring)
// it increments the untracked-frame counter and leaves all identity state
// untouched.
func (tb *TrackedBlob) Update(candidates []Candidate) (Rectangle, bool) {
	if tb.state != StateTracking || len(candidates) == 0 {
		tb.untrackedFrames++
		return Rectangle{}, false
	}

	// Strict less keeps the first-encountered candidate on ties.
	minDist := IncompatibleDistance
	best := -1
	for i := range candidates {
		if dist := tb.Compare(candidates[i]); dist < minDist {
			minDist = dist
			best = i
		}
	}
	if best < 0 || minDist >= tb.featureDistThreshold {
		tb.untrackedFrames++
		return Rectangle{}, false
	}

	selected := candidates[best]
	tb.untrackedFrames = 0
	tb.absorb(selected)
	tb.observeMotion()
	return selected.Rect(), true
}

// absorb pushes a candidate into the history window and folds it into the
// moving average. Below capacity the divisor grows with the fill level;
// at capacity the evicted entry's contribution is subtracted so the average
// stays exact over the sliding window without storing partial sums.
func (tb *TrackedBlob) absorb(c Candidate) {
	n := len(tb.history)
	newFeat := featureOf(c)
	if n < tb.windowSize {
		for i := range tb.feature {
			tb.feature[i] = (tb.feature[i]*float64(n) + newFeat[i]) / float64(n+1)
		}
		tb.history = append(tb.history, c)
		return
	}
	evicted := featureOf(tb.history[0])
	w := float64(tb.windowSize)
	for i := range tb.feature {
		tb.feature[i] = (tb.feature[i]*w + newFeat[i] - evicted[i]) / w
	}
	tb.history = append(tb.history[1:], c)
}

// observeMotion advances the center-motion estimator with the smoothed
// position. The estimate is advisory only; an association never fails
// because of it.
func (tb *TrackedBlob) observeMotion() {
	if tb.motion == nil {
		return
	}
	tb.motion.Predict()
	stateX, stateY := tb.motion.GetState()
	tb.predictedNext = Point{X: stateX, Y: stateY}

	center := tb.feature.Rect().Center()
	if err := tb.motion.Update(center.X, center.Y); err != nil {
		tb.motion = nil
	}
}

// PredictedCenter returns the Kalman-predicted center of the tracked blob
// for the next frame. ok is false while acquiring or when the estimator has
// been dropped.
func (tb *TrackedBlob) PredictedCenter() (Point, bool) {
	if tb.state != StateTracking || tb.motion == nil {
		return Point{}, false
	}
	return tb.predictedNext, true
}
