package dataset

import "errors"

var (
	// ErrMissingColumn is returned when a required column is absent from the header.
	ErrMissingColumn = errors.New("missing required column")
	// ErrRead is returned when the file cannot be opened or parsed as CSV.
	ErrRead = errors.New("read dataset")
)
