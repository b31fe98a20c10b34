package track

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// ErrEndOfReplay is returned by ReplaySource.Capture when the recorded
// sequence has been exhausted.
var ErrEndOfReplay = errors.New("replay: no frames left")

// ReplayFrame is one recorded frame: the detections the detector reported
// and the color statistics of the tracked region at record time.
type ReplayFrame struct {
	Blobs []Candidate     `json:"blobs"`
	Stats ColorStatistics `json:"stats"`
}

// FindBlobs returns the recorded detections. Thresholds and detector
// parameters were already applied when the frame was recorded.
func (f ReplayFrame) FindBlobs(_ ThresholdSet, _ DetectParams) []Candidate {
	return f.Blobs
}

// Statistics returns the recorded region statistics.
func (f ReplayFrame) Statistics(_ Rectangle) ColorStatistics {
	return f.Stats
}

// ReplaySource is a FrameSource backed by a recorded detection log. It
// serves recorded frames in order and fails with ErrEndOfReplay once the
// sequence is exhausted, which unblocks reference acquisition.
type ReplaySource struct {
	frames []ReplayFrame
	next   int
}

// NewReplaySource creates a source over an in-memory frame sequence.
func NewReplaySource(frames []ReplayFrame) *ReplaySource {
	return &ReplaySource{frames: frames}
}

// LoadReplay reads a JSON-lines detection log, one ReplayFrame per line.
// Blank lines are skipped.
func LoadReplay(r io.Reader) (*ReplaySource, error) {
	var frames []ReplayFrame
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var frame ReplayFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return nil, errors.Wrapf(err, "Can't decode replay frame at line %d", line)
		}
		frames = append(frames, frame)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "Can't read replay log")
	}
	return NewReplaySource(frames), nil
}

// Len returns the total number of recorded frames.
func (s *ReplaySource) Len() int {
	return len(s.frames)
}

// Capture returns the next recorded frame.
func (s *ReplaySource) Capture(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.frames) {
		return nil, ErrEndOfReplay
	}
	frame := s.frames[s.next]
	s.next++
	return frame, nil
}
