package track

import "gonum.org/v1/gonum/floats"

// FeatureVector is the smoothed 5-component state of the tracked blob:
// corner x, corner y, width, height and rotation in degrees.
type FeatureVector [5]float64

// Indices into a FeatureVector.
const (
	featX = iota
	featY
	featW
	featH
	featRotation
)

// CX returns the x coordinate of the tracked bounding box origin.
func (fv FeatureVector) CX() float64 { return fv[featX] }

// CY returns the y coordinate of the tracked bounding box origin.
func (fv FeatureVector) CY() float64 { return fv[featY] }

func (fv FeatureVector) Width() float64    { return fv[featW] }
func (fv FeatureVector) Height() float64   { return fv[featH] }
func (fv FeatureVector) Rotation() float64 { return fv[featRotation] }

// Rect returns the bounding rectangle described by the feature vector.
func (fv FeatureVector) Rect() Rectangle {
	return Rectangle{
		X:      fv[featX],
		Y:      fv[featY],
		Width:  fv[featW],
		Height: fv[featH],
	}
}

func featureOf(c Candidate) FeatureVector {
	return FeatureVector{c.X, c.Y, c.W, c.H, c.Rotation}
}

// featureDistance is the L1 or L2 distance between two feature vectors.
// Any normLevel other than 1 selects the Euclidean norm.
func featureDistance(a, b FeatureVector, normLevel int) float64 {
	norm := 2.0
	if normLevel == 1 {
		norm = 1.0
	}
	return floats.Distance(a[:], b[:], norm)
}
