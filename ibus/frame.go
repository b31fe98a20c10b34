// Package ibus encodes tracker output into the fixed 32-byte checksummed
// serial frames consumed by the downstream flight controller. The checksum
// scheme follows the iBus convention: the last byte pair carries
// 0xFFFF minus the 16-bit sum of the preceding bytes.
package ibus

import (
	"encoding/binary"
	"math"

	"github.com/Jarvis-X/blobtrack-go/track"
)

// Frame layout constants.
const (
	FrameSize = 32

	sync1 = 0x20
	sync2 = 0x40

	// payloadSize is the checksummed prefix of the frame.
	payloadSize = FrameSize - 2
)

// NoDistance is the on-wire sentinel sent when no distance reading is
// available.
const NoDistance = 9999

// Frame is one wire frame:
//
//	offset 0..1   sync bytes 0x20 0x40
//	offset 2..9   cx, cy, w, h as little-endian int16 (zero when untracked)
//	offset 10..11 distance in millimeters, little-endian uint16
//	offset 12..29 reserved, zero
//	offset 30     checksum high byte
//	offset 31     checksum low byte
type Frame [FrameSize]byte

// Checksum computes the iBus checksum over payload: the 16-bit unsigned sum
// of all bytes, subtracted from 0xFFFF.
func Checksum(payload []byte) uint16 {
	var sum uint16
	for _, b := range payload {
		sum += uint16(b)
	}
	return 0xFFFF - sum
}

// Encode packs a feature vector and a distance reading into a wire frame.
// When tracked is false the geometry fields are zero-filled; callers pass
// NoDistance when no reading is available.
func Encode(fv track.FeatureVector, tracked bool, distanceMM int) Frame {
	var f Frame
	f[0] = sync1
	f[1] = sync2
	if tracked {
		binary.LittleEndian.PutUint16(f[2:4], uint16(toInt16(fv.CX())))
		binary.LittleEndian.PutUint16(f[4:6], uint16(toInt16(fv.CY())))
		binary.LittleEndian.PutUint16(f[6:8], uint16(toInt16(fv.Width())))
		binary.LittleEndian.PutUint16(f[8:10], uint16(toInt16(fv.Height())))
	}
	binary.LittleEndian.PutUint16(f[10:12], uint16(distanceMM))

	ck := Checksum(f[:payloadSize])
	f[30] = byte(ck >> 8)
	f[31] = byte(ck)
	return f
}

// Verify reports whether the frame's checksum matches its payload.
func (f Frame) Verify() bool {
	ck := uint16(f[30])<<8 | uint16(f[31])
	return Checksum(f[:payloadSize]) == ck
}

// ReadDistance reads the range finder, substituting NoDistance when the
// finder is absent or fails. Sensor failure is a local recovery, not an
// error surfaced to the control loop.
func ReadDistance(rf track.RangeFinder) int {
	if rf == nil {
		return NoDistance
	}
	mm, err := rf.ReadMillimeters()
	if err != nil {
		return NoDistance
	}
	return mm
}

// toInt16 truncates toward zero and clamps to the int16 wire range.
func toInt16(v float64) int16 {
	t := math.Trunc(v)
	switch {
	case t > math.MaxInt16:
		return math.MaxInt16
	case t < math.MinInt16:
		return math.MinInt16
	default:
		return int16(t)
	}
}
