package ml

import "errors"

var (
	ErrDegenerateFit        = errors.New("degenerate training data")
	ErrCorruptArtifact      = errors.New("model artifact is corrupt")
	ErrIncompatibleArtifact = errors.New("model artifact is incompatible")
)

// Model maps a profit figure to a rate.
type Model interface {
	Predict(profit float64) float64
}
