package apperrors

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrInvalidDocument marks an EPD document that cannot be normalized at all
	// (malformed JSON or a missing structural anchor). It is fatal for that file only.
	ErrInvalidDocument = errors.New("invalid EPD document")
)
