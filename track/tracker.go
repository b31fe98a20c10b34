package track

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Acquisition defaults: a reference blob must be reasonably dense and round
// before it is trusted to seed the tracker.
const (
	DefaultDensityThreshold   = 0.3
	DefaultRoundnessThreshold = 0.4
)

// DefaultLossThreshold is the number of consecutive untracked frames after
// which the track is declared lost and re-acquisition starts.
const DefaultLossThreshold = 15

// Statistics-to-threshold stdev multipliers used by the tracker.
const (
	acquireStdevMul = 2.5
	trackStdevMul   = 3.0
)

// FindReference searches frame-by-frame for an initial high-confidence blob
// to seed tracking: candidates are filtered on density and roundness and the
// largest survivor by pixel count wins. The loop blocks until a qualifying
// blob appears; it is unbounded by design and stops early only when ctx is
// canceled or the source fails. The returned statistics are computed over
// the winner's bounding rectangle on the same frame.
func FindReference(ctx context.Context, src FrameSource, thresholds ThresholdSet, densityThreshold, roundnessThreshold float64) (Candidate, ColorStatistics, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Candidate{}, ColorStatistics{}, err
		}
		frame, err := src.Capture(ctx)
		if err != nil {
			return Candidate{}, ColorStatistics{}, errors.Wrap(err, "Can't capture frame for reference acquisition")
		}

		var reference Candidate
		maxPixels := 0
		for _, c := range frame.FindBlobs(thresholds, DefaultDetectParams) {
			if c.Density <= densityThreshold || c.Roundness <= roundnessThreshold {
				continue
			}
			if c.Pixels > maxPixels {
				maxPixels = c.Pixels
				reference = c
			}
		}
		if maxPixels > 0 {
			return reference, frame.Statistics(reference.Rect()), nil
		}
	}
}

// BlobTracker drives one tracking step per frame for a single TrackedBlob,
// owning the adaptive color thresholds and the loss/re-acquisition cycle.
type BlobTracker struct {
	blob      *TrackedBlob
	original  ThresholdSet
	current   ThresholdSet
	source    FrameSource
	indicator StatusIndicator

	// updateRate is the blend weight pulling the working thresholds toward
	// statistics derived from the tracked region. Zero (the shipped
	// default) pins the working thresholds to the baseline.
	updateRate         float64
	lossThreshold      int
	densityThreshold   float64
	roundnessThreshold float64

	sessionID uuid.UUID
	logger    *slog.Logger
	frames    int
}

// TrackerOption configures a BlobTracker.
type TrackerOption func(*BlobTracker)

// WithIndicator wires a status indicator (for example an LED driver).
func WithIndicator(ind StatusIndicator) TrackerOption {
	return func(bt *BlobTracker) {
		if ind != nil {
			bt.indicator = ind
		}
	}
}

// WithUpdateRate sets the adaptive threshold update rate in [0, 1].
func WithUpdateRate(rate float64) TrackerOption {
	return func(bt *BlobTracker) {
		bt.updateRate = rate
	}
}

// WithLossThreshold overrides the consecutive-failure count that triggers
// re-acquisition.
func WithLossThreshold(frames int) TrackerOption {
	return func(bt *BlobTracker) {
		if frames > 0 {
			bt.lossThreshold = frames
		}
	}
}

// WithAcquisitionFilters overrides the density/roundness gates used when
// searching for a reference blob.
func WithAcquisitionFilters(density, roundness float64) TrackerOption {
	return func(bt *BlobTracker) {
		bt.densityThreshold = density
		bt.roundnessThreshold = roundness
	}
}

// WithLogger sets the tracker's logger.
func WithLogger(logger *slog.Logger) TrackerOption {
	return func(bt *BlobTracker) {
		if logger != nil {
			bt.logger = logger
		}
	}
}

// NewBlobTracker creates a tracker for blob, detecting with the given color
// thresholds against frames from source. The threshold set is copied twice:
// an immutable baseline and a working copy adapted every frame.
func NewBlobTracker(blob *TrackedBlob, thresholds ThresholdSet, source FrameSource, opts ...TrackerOption) *BlobTracker {
	bt := &BlobTracker{
		blob:               blob,
		original:           thresholds.Clone(),
		current:            thresholds.Clone(),
		source:             source,
		indicator:          noopIndicator{},
		updateRate:         0.0,
		lossThreshold:      DefaultLossThreshold,
		densityThreshold:   DefaultDensityThreshold,
		roundnessThreshold: DefaultRoundnessThreshold,
		sessionID:          uuid.New(),
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(bt)
	}
	return bt
}

// Blob returns the tracked blob.
func (bt *BlobTracker) Blob() *TrackedBlob {
	return bt.blob
}

// CurrentThresholds returns a copy of the working threshold set.
func (bt *BlobTracker) CurrentThresholds() ThresholdSet {
	return bt.current.Clone()
}

// SessionID identifies this tracking session in logs.
func (bt *BlobTracker) SessionID() uuid.UUID {
	return bt.sessionID
}

// Track runs one tracking step. While acquiring it blocks in FindReference
// until a qualifying seed blob appears (or ctx is canceled), reinitializes
// the blob and returns (feature, true). While tracking it captures one
// frame, detects with the working thresholds and updates the blob:
//
//   - after lossThreshold consecutive failures the blob is reset, the
//     working thresholds are restored to the baseline and Track returns
//     (zero, false) exactly once; the next call re-enters acquisition;
//   - on a successful association the working thresholds are blended toward
//     statistics of the tracked region;
//   - on a failure below the loss threshold they decay halfway back toward
//     the baseline.
func (bt *BlobTracker) Track(ctx context.Context) (FeatureVector, bool, error) {
	bt.frames++

	if bt.blob.State() == StateAcquiring {
		reference, stats, err := FindReference(ctx, bt.source, bt.original, bt.densityThreshold, bt.roundnessThreshold)
		if err != nil {
			return FeatureVector{}, false, err
		}
		bt.blob.Reinit(reference)
		bt.indicator.TrackingAcquired()
		bt.current.BlendToward(NewThresholdFromStatistics(stats, acquireStdevMul), 1-bt.updateRate, bt.updateRate)
		bt.logger.Info("blob acquired",
			"session", bt.sessionID,
			"blob_id", bt.blob.ID(),
			"frame", bt.frames,
			"pixels", reference.Pixels,
			"code", reference.Code,
		)
		return bt.blob.Feature(), true, nil
	}

	frame, err := bt.source.Capture(ctx)
	if err != nil {
		return FeatureVector{}, false, errors.Wrap(err, "Can't capture frame for tracking step")
	}
	candidates := frame.FindBlobs(bt.current, DefaultDetectParams)
	roi, ok := bt.blob.Update(candidates)

	if bt.blob.UntrackedFrames() >= bt.lossThreshold {
		bt.blob.Reset()
		bt.indicator.TrackingLost()
		bt.current = bt.original.Clone()
		bt.logger.Info("blob lost, thresholds restored",
			"session", bt.sessionID,
			"blob_id", bt.blob.ID(),
			"frame", bt.frames,
		)
		return FeatureVector{}, false, nil
	}

	if ok {
		stats := frame.Statistics(roi)
		bt.current.BlendToward(NewThresholdFromStatistics(stats, trackStdevMul), 1-bt.updateRate, bt.updateRate)
		bt.logger.Debug("association succeeded",
			"session", bt.sessionID,
			"frame", bt.frames,
			"candidates", len(candidates),
		)
	} else {
		bt.current.BlendWith(bt.original, 0.5, 0.5)
		bt.logger.Debug("association failed",
			"session", bt.sessionID,
			"frame", bt.frames,
			"candidates", len(candidates),
			"untracked_frames", bt.blob.UntrackedFrames(),
		)
	}
	return bt.blob.Feature(), true, nil
}
