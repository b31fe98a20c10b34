package ibus

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jarvis-X/blobtrack-go/track"
)

func TestEncodeTrackedLayout(t *testing.T) {
	fv := track.FeatureVector{120.7, 80.2, 30.9, 28.0, 45.0}
	frame := Encode(fv, true, 1234)

	assert.Equal(t, byte(0x20), frame[0])
	assert.Equal(t, byte(0x40), frame[1])

	// Geometry is truncated toward zero, little-endian int16.
	assert.Equal(t, uint16(120), binary.LittleEndian.Uint16(frame[2:4]))
	assert.Equal(t, uint16(80), binary.LittleEndian.Uint16(frame[4:6]))
	assert.Equal(t, uint16(30), binary.LittleEndian.Uint16(frame[6:8]))
	assert.Equal(t, uint16(28), binary.LittleEndian.Uint16(frame[8:10]))
	assert.Equal(t, uint16(1234), binary.LittleEndian.Uint16(frame[10:12]))

	for i := 12; i < 30; i++ {
		assert.Zero(t, frame[i], "reserved byte %d must be zero", i)
	}
	assert.True(t, frame.Verify())
}

func TestEncodeUntrackedZeroFillsGeometry(t *testing.T) {
	// The feature vector is ignored when untracked; only the distance field
	// and sync bytes carry data.
	frame := Encode(track.FeatureVector{99, 99, 99, 99, 99}, false, NoDistance)

	for i := 2; i < 10; i++ {
		assert.Zero(t, frame[i], "geometry byte %d must be zero when untracked", i)
	}
	assert.Equal(t, uint16(9999), binary.LittleEndian.Uint16(frame[10:12]))
	assert.True(t, frame.Verify())
}

func TestChecksumPlacement(t *testing.T) {
	frame := Encode(track.FeatureVector{10, 20, 30, 40, 0}, true, 500)

	ck := Checksum(frame[:30])
	assert.Equal(t, byte(ck>>8), frame[30], "offset 30 carries the high-shifted checksum byte")
	assert.Equal(t, byte(ck&0xFF), frame[31])
}

func TestChecksumRoundTrip(t *testing.T) {
	vectors := []struct {
		fv       track.FeatureVector
		tracked  bool
		distance int
	}{
		{track.FeatureVector{}, false, NoDistance},
		{track.FeatureVector{1, 2, 3, 4, 5}, true, 0},
		{track.FeatureVector{240, 160, 239, 159, 180}, true, 65535},
		{track.FeatureVector{-12.5, -0.4, 3.9, 7.1, -90}, true, 42},
	}
	for _, v := range vectors {
		frame := Encode(v.fv, v.tracked, v.distance)
		require.True(t, frame.Verify(), "frame %x failed verification", frame)

		// Reconstructing the 16-bit checksum must complement the payload sum.
		ck := uint16(frame[30])<<8 | uint16(frame[31])
		var sum uint16
		for _, b := range frame[:30] {
			sum += uint16(b)
		}
		assert.Equal(t, uint16(0xFFFF), sum+ck)
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	frame := Encode(track.FeatureVector{100, 60, 30, 28, 0}, true, 1000)
	require.True(t, frame.Verify())

	frame[4]++
	assert.False(t, frame.Verify())
}

func TestEncodeClampsToInt16(t *testing.T) {
	frame := Encode(track.FeatureVector{1e6, -1e6, 0, 0, 0}, true, 0)

	assert.Equal(t, int16(32767), int16(binary.LittleEndian.Uint16(frame[2:4])))
	assert.Equal(t, int16(-32768), int16(binary.LittleEndian.Uint16(frame[4:6])))
	assert.True(t, frame.Verify())
}

type stubRangeFinder struct {
	mm  int
	err error
}

func (s stubRangeFinder) ReadMillimeters() (int, error) {
	return s.mm, s.err
}

func TestReadDistance(t *testing.T) {
	assert.Equal(t, NoDistance, ReadDistance(nil))
	assert.Equal(t, NoDistance, ReadDistance(stubRangeFinder{err: assert.AnError}))
	assert.Equal(t, 857, ReadDistance(stubRangeFinder{mm: 857}))
}
