package matchdb

import "errors"

var (
	// ErrNotFound is returned when a match does not exist.
	ErrNotFound = errors.New("match not found")
	// ErrVersionConflict is returned when a match changed since it was read.
	ErrVersionConflict = errors.New("match version conflict")
	// ErrReceiptExists is returned when a payment signature was already consumed.
	ErrReceiptExists = errors.New("payment receipt already exists")
)
