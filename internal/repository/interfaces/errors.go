package interfaces

import "errors"

var (
	// ErrNotFound is returned by mutations whose target document is missing.
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when an atomic update lost every attempt to a
	// concurrent writer.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrInvalidKey is returned when an id cannot be stored as given, such
	// as a user id that is not a valid document field name.
	ErrInvalidKey = errors.New("invalid key")
)
