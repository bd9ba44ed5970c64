package profile

import "errors"

var (
	// ErrNotFound indicates no profile with the requested name exists.
	ErrNotFound = errors.New("profile not found")

	// ErrAlreadyExists indicates a profile with that name exists.
	ErrAlreadyExists = errors.New("profile already exists")
)
