package local

import "errors"

var (
	// ErrNotFound is returned when an asset is not found
	ErrNotFound = errors.New("asset not found")

	// ErrInvalidName is returned for names that leave the store directory
	ErrInvalidName = errors.New("invalid asset name")
)
