package decompose

import "errors"

var (
	// ErrInvalidThreshold is returned when a threshold lies outside [0, 1].
	ErrInvalidThreshold = errors.New("threshold must be within [0, 1]")

	// ErrInvalidBlockSize is returned for a negative block size.
	ErrInvalidBlockSize = errors.New("block size must be non-negative")

	// ErrInvalidRefinement is returned when the refinement projection is not square.
	ErrInvalidRefinement = errors.New("refinement projection must be a square matrix")

	// ErrNonFinite is returned when an embedding contains NaN or Inf values.
	ErrNonFinite = errors.New("embedding contains non-finite values")
)
