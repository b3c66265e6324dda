package botguard

import "errors"

var (
	// ErrDetectionNotFound is returned when a review references a detection
	// id that was never stored. No state is mutated when it is returned.
	ErrDetectionNotFound = errors.New("detection not found")

	ErrMissingDetectionID = errors.New("detection id is required")

	ErrInvalidDecision = errors.New("invalid review decision")
)
