package track

import "math"

// Threshold is one LAB color range: a blob matches when all three channels
// fall inside [lo, hi].
type Threshold struct {
	LLo, LHi int
	ALo, AHi int
	BLo, BHi int
}

// ThresholdSet is an ordered list of color ranges. The tracker holds two
// copies: an immutable baseline and a working copy mutated every frame.
// Both always have the same length, fixed at construction.
type ThresholdSet []Threshold

// Shipped LAB presets from the deployed camera tuning.
var (
	Green = ThresholdSet{
		{LLo: 26, LHi: 38, ALo: -18, AHi: 0, BLo: -24, BHi: 1},
		{LLo: 35, LHi: 58, ALo: -30, AHi: 2, BLo: -19, BHi: -4},
	}
	Purple = ThresholdSet{
		{LLo: 20, LHi: 24, ALo: 4, AHi: 15, BLo: -22, BHi: -7},
	}
)

// Clone returns an independent copy of the set.
func (ts ThresholdSet) Clone() ThresholdSet {
	out := make(ThresholdSet, len(ts))
	copy(out, ts)
	return out
}

// BlendToward blends every threshold in the set toward t, element-wise:
// ts[i] = round(w1*ts[i] + w2*t).
func (ts ThresholdSet) BlendToward(t Threshold, w1, w2 float64) {
	for i := range ts {
		ts[i] = blendThreshold(ts[i], t, w1, w2)
	}
}

// BlendWith blends the set pairwise with base: ts[i] = round(w1*base[i] +
// w2*ts[i]). Used to decay the working thresholds back toward the baseline
// while the track is temporarily unconfirmed.
func (ts ThresholdSet) BlendWith(base ThresholdSet, w1, w2 float64) {
	for i := range ts {
		ts[i] = blendThreshold(base[i], ts[i], w1, w2)
	}
}

func blendThreshold(a, b Threshold, w1, w2 float64) Threshold {
	mix := func(x, y int) int {
		return int(math.Round(w1*float64(x) + w2*float64(y)))
	}
	return Threshold{
		LLo: mix(a.LLo, b.LLo),
		LHi: mix(a.LHi, b.LHi),
		ALo: mix(a.ALo, b.ALo),
		AHi: mix(a.AHi, b.AHi),
		BLo: mix(a.BLo, b.BLo),
		BHi: mix(a.BHi, b.BHi),
	}
}

// NewThresholdFromStatistics derives a color range from region statistics:
// each channel spans mean ± k·stdev. The a/b upper bounds intentionally
// reuse the mean − k·stdev form to stay bit-compatible with the deployed
// firmware's segmentation behaviour.
func NewThresholdFromStatistics(s ColorStatistics, k float64) Threshold {
	return Threshold{
		LLo: int(math.Round(s.LMean - k*s.LStdev)),
		LHi: int(math.Round(s.LMean + k*s.LStdev)),
		ALo: int(math.Round(s.AMean - k*s.AStdev)),
		AHi: int(math.Round(s.AMean - k*s.AStdev)),
		BLo: int(math.Round(s.BMean - k*s.BStdev)),
		BHi: int(math.Round(s.BMean - k*s.BStdev)),
	}
}
