package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrValidation indicates a required field is missing or a value is malformed
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a referenced record no longer exists
	ErrNotFound = errors.New("not found")

	// ErrArchiveFormat indicates a backup archive is missing required content
	// or contains unsafe entry paths
	ErrArchiveFormat = errors.New("invalid archive")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)
