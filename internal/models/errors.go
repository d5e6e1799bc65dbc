package models

import "errors"

// Domain errors returned by the dispatch core. Callers match them with errors.Is;
// services wrap them with the offending id for context.
var (
	// ErrNotFound indicates a referenced booking, driver, vehicle or payment does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates the operation is not legal for the entity's current status.
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation indicates malformed input: empty locations, non-positive fares,
	// amount/fare mismatch and the like.
	ErrValidation = errors.New("validation failed")
)
