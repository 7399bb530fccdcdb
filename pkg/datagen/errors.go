package datagen

import "errors"

// Sentinel errors for common error conditions
var (
	// Configuration errors, always raised before any output file exists
	ErrUnsupportedFormat      = errors.New("unsupported output format")
	ErrUnsupportedCompression = errors.New("unsupported compression")
	ErrUnsupportedIDMode      = errors.New("unsupported id mode")
	ErrUnsupportedRetention   = errors.New("unsupported retention mode")
	ErrNegativeCount          = errors.New("record count must not be negative")
	ErrNoUsers                = errors.New("transactions requested but no users")
	ErrNoProviders            = errors.New("transactions requested but no providers")

	// Invariant violations
	ErrEmptyPopulation = errors.New("cannot sample from an empty population")
	ErrIndexOutOfRange = errors.New("index out of range")

	// I/O
	ErrSinkClosed = errors.New("sink closed")
)
