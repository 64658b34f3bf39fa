package models

import "errors"

var (
	// ErrNotFound is returned when a requested item is not found.
	ErrNotFound = errors.New("not found")

	// ErrDataLoad is returned when a source is unreadable, malformed or
	// missing required columns.
	ErrDataLoad = errors.New("data load failed")

	// ErrUnknownModel is returned for a model variant outside the enumerated set.
	ErrUnknownModel = errors.New("unknown model variant")

	// ErrUnknownColumn is returned when filtering or enumerating a column
	// that is not categorical.
	ErrUnknownColumn = errors.New("unknown categorical column")

	// ErrInvalidTopN is returned for a negative top-N count.
	ErrInvalidTopN = errors.New("top N must be non-negative")
)
