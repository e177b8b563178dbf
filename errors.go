package arenaskip

import "errors"

var (
	// ErrIndexOutOfRange is returned by Kth for an index outside [0, Len()).
	ErrIndexOutOfRange = errors.New("arenaskip: index out of range")
	// ErrArenaExhausted is returned when a node slot cannot be obtained. It
	// always wraps the concrete cause.
	ErrArenaExhausted = errors.New("arenaskip: arena exhausted")
	// ErrMemoryLimitExceeded is the cause when the WithMaxNodes budget is used up.
	ErrMemoryLimitExceeded = errors.New("arenaskip: node budget exceeded")
	// ErrIndexSpaceExhausted is the cause when no slot index is left to address.
	ErrIndexSpaceExhausted = errors.New("arenaskip: slot index space exhausted")

	ErrNilLess          = errors.New("arenaskip: nil less function")
	ErrInvalidMaxLevel  = errors.New("arenaskip: max level out of range")
	ErrInvalidBlockSize = errors.New("arenaskip: block size must be a power of two >= 2")
	ErrInvalidCacheSize = errors.New("arenaskip: negative worker cache size")
	ErrInvalidMaxNodes  = errors.New("arenaskip: negative node budget")
)

// ErrInconsistent is returned by Validate when the structure breaks an
// ordering, linking or accounting rule.
var ErrInconsistent = errors.New("arenaskip: structure inconsistent")
