package track

import (
	"context"
	"testing"

	"github.com/pkg/errors"
)

var acquisitionStats = ColorStatistics{
	LMean: 40, LStdev: 4,
	AMean: 10, AStdev: 2,
	BMean: -10, BStdev: 2,
}

// seedFrame holds one qualifying reference candidate.
func seedFrame() ReplayFrame {
	return ReplayFrame{
		Blobs: []Candidate{cand(100, 60, 30, 28, 0, 1)},
		Stats: acquisitionStats,
	}
}

func newTestTracker(frames []ReplayFrame, opts ...TrackerOption) *BlobTracker {
	blob := NewTrackedBlob(1, 100, 3, 0)
	return NewBlobTracker(blob, Purple, NewReplaySource(frames), opts...)
}

func TestTrackAcquisitionSeedsBlob(t *testing.T) {
	// The sparse and the square blob fail the density/roundness gates; the
	// two qualifying candidates are arbitrated by pixel count.
	sparse := Candidate{X: 0, Y: 0, W: 50, H: 50, Density: 0.1, Roundness: 0.9, Pixels: 2000, Code: 1}
	square := Candidate{X: 10, Y: 10, W: 40, H: 40, Density: 0.9, Roundness: 0.2, Pixels: 1500, Code: 1}
	small := Candidate{X: 20, Y: 20, W: 10, H: 10, Density: 0.8, Roundness: 0.8, Pixels: 80, Code: 1}
	winner := Candidate{X: 100, Y: 60, W: 30, H: 28, Density: 0.8, Roundness: 0.8, Pixels: 700, Code: 1}

	tracker := newTestTracker([]ReplayFrame{
		{Blobs: nil},
		{Blobs: []Candidate{sparse, square}},
		{Blobs: []Candidate{small, winner}, Stats: acquisitionStats},
	})

	fv, ok, err := tracker.Track(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("acquisition step reported failure")
	}
	featuresClose(t, fv, FeatureVector{100, 60, 30, 28, 0}, 0)
	if tracker.Blob().State() != StateTracking {
		t.Errorf("blob state = %v, expected StateTracking", tracker.Blob().State())
	}

	// The shipped update rate is zero: the working thresholds stay pinned.
	for i, th := range tracker.CurrentThresholds() {
		if th != Purple[i] {
			t.Errorf("working threshold %d drifted under zero update rate: %+v", i, th)
		}
	}
}

func TestTrackFollowsCandidateAcrossFrames(t *testing.T) {
	frames := []ReplayFrame{
		seedFrame(),
		{Blobs: []Candidate{cand(102, 60, 30, 28, 0, 1)}, Stats: acquisitionStats},
		{Blobs: []Candidate{cand(104, 61, 30, 28, 0, 1)}, Stats: acquisitionStats},
	}
	tracker := newTestTracker(frames)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, ok, err := tracker.Track(ctx); err != nil || !ok {
			t.Fatalf("step %d: ok=%v err=%v", i+1, ok, err)
		}
	}
	// (100+102+104)/3 and (60+60+61)/3 per the window average.
	featuresClose(t, tracker.Blob().Feature(), FeatureVector{102, 181.0 / 3.0, 30, 28, 0}, 1e-9)
}

func TestTrackLossAtThresholdRestoresThresholds(t *testing.T) {
	frames := []ReplayFrame{seedFrame()}
	for i := 0; i < 15; i++ {
		frames = append(frames, ReplayFrame{Blobs: nil})
	}
	frames = append(frames, seedFrame())

	// A non-zero update rate perturbs the working thresholds during
	// acquisition, so the restore-on-loss is observable.
	tracker := newTestTracker(frames, WithUpdateRate(0.5))
	ctx := context.Background()

	if _, ok, err := tracker.Track(ctx); err != nil || !ok {
		t.Fatalf("acquisition: ok=%v err=%v", ok, err)
	}
	perturbed := false
	for i, th := range tracker.CurrentThresholds() {
		if th != Purple[i] {
			perturbed = true
		}
	}
	if !perturbed {
		t.Fatal("acquisition did not perturb the working thresholds")
	}

	// 14 failures stay inside the loss threshold and keep reporting the
	// last feature vector.
	for i := 1; i <= 14; i++ {
		fv, ok, err := tracker.Track(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("step %d reported loss too early (untracked=%d)", i, tracker.Blob().UntrackedFrames())
		}
		featuresClose(t, fv, FeatureVector{100, 60, 30, 28, 0}, 0)
	}

	// The 15th consecutive failure produces exactly one (zero, false).
	fv, ok, err := tracker.Track(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("15th consecutive failure did not report loss")
	}
	featuresClose(t, fv, FeatureVector{}, 0)
	if tracker.Blob().State() != StateAcquiring {
		t.Errorf("blob state after loss = %v, expected StateAcquiring", tracker.Blob().State())
	}
	for i, th := range tracker.CurrentThresholds() {
		if th != Purple[i] {
			t.Errorf("threshold %d not restored after loss: %+v, expected %+v", i, th, Purple[i])
		}
	}

	// The next step re-enters acquisition and seeds a fresh track.
	if _, ok, err := tracker.Track(ctx); err != nil || !ok {
		t.Fatalf("re-acquisition: ok=%v err=%v", ok, err)
	}
	if tracker.Blob().State() != StateTracking {
		t.Error("re-acquisition did not restore tracking state")
	}
}

func TestTrackAdaptsThresholdsFromTrackedRegion(t *testing.T) {
	trackingStats := ColorStatistics{
		LMean: 30, LStdev: 2,
		AMean: 8, AStdev: 1,
		BMean: -12, BStdev: 1,
	}
	frames := []ReplayFrame{
		seedFrame(),
		{Blobs: []Candidate{cand(101, 60, 30, 28, 0, 1)}, Stats: trackingStats},
	}
	tracker := newTestTracker(frames, WithUpdateRate(0.5))
	ctx := context.Background()

	if _, ok, err := tracker.Track(ctx); err != nil || !ok {
		t.Fatalf("acquisition: ok=%v err=%v", ok, err)
	}
	afterAcquire := tracker.CurrentThresholds()

	if _, ok, err := tracker.Track(ctx); err != nil || !ok {
		t.Fatalf("tracking step: ok=%v err=%v", ok, err)
	}

	derived := NewThresholdFromStatistics(trackingStats, 3.0)
	for i, th := range tracker.CurrentThresholds() {
		expected := blendThreshold(afterAcquire[i], derived, 0.5, 0.5)
		if th != expected {
			t.Errorf("threshold %d = %+v, expected %+v", i, th, expected)
		}
	}
}

func TestTrackDecaysThresholdsWhileUnconfirmed(t *testing.T) {
	frames := []ReplayFrame{
		seedFrame(),
		{Blobs: nil},
	}
	tracker := newTestTracker(frames, WithUpdateRate(0.5))
	ctx := context.Background()

	if _, ok, err := tracker.Track(ctx); err != nil || !ok {
		t.Fatalf("acquisition: ok=%v err=%v", ok, err)
	}
	afterAcquire := tracker.CurrentThresholds()

	if _, ok, err := tracker.Track(ctx); err != nil || !ok {
		t.Fatalf("unconfirmed step: ok=%v err=%v", ok, err)
	}
	for i, th := range tracker.CurrentThresholds() {
		expected := blendThreshold(Purple[i], afterAcquire[i], 0.5, 0.5)
		if th != expected {
			t.Errorf("threshold %d = %+v, expected decay value %+v", i, th, expected)
		}
	}
}

func TestFindReferenceFiltersAndPicksLargest(t *testing.T) {
	sparse := Candidate{X: 0, Y: 0, W: 50, H: 50, Density: 0.1, Roundness: 0.9, Pixels: 2000, Code: 1}
	smaller := Candidate{X: 5, Y: 5, W: 12, H: 12, Density: 0.9, Roundness: 0.9, Pixels: 120, Code: 1}
	larger := Candidate{X: 40, Y: 40, W: 25, H: 25, Density: 0.9, Roundness: 0.9, Pixels: 540, Code: 1}

	source := NewReplaySource([]ReplayFrame{
		{Blobs: []Candidate{sparse}},
		{Blobs: []Candidate{smaller, larger, sparse}, Stats: acquisitionStats},
	})
	reference, stats, err := FindReference(context.Background(), source, Purple, DefaultDensityThreshold, DefaultRoundnessThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if reference != larger {
		t.Errorf("reference = %+v, expected the larger qualifying blob", reference)
	}
	if stats != acquisitionStats {
		t.Errorf("stats = %+v, expected the recorded frame statistics", stats)
	}
}

func TestFindReferenceStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := NewReplaySource([]ReplayFrame{{Blobs: nil}})
	_, _, err := FindReference(ctx, source, Purple, DefaultDensityThreshold, DefaultRoundnessThreshold)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, expected context.Canceled", err)
	}
}

func TestTrackSurfacesSourceExhaustion(t *testing.T) {
	tracker := newTestTracker([]ReplayFrame{{Blobs: nil}})
	_, _, err := tracker.Track(context.Background())
	if !errors.Is(err, ErrEndOfReplay) {
		t.Errorf("err = %v, expected ErrEndOfReplay", err)
	}
}
