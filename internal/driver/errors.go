package driver

import "errors"

var (
	// ErrNotFound indicates no driver matches the requested label.
	ErrNotFound = errors.New("driver not found")

	// ErrParse indicates a definition file could not be parsed.
	// During a directory load this is recovered locally (the file is
	// skipped); it is only surfaced when parsing a single file.
	ErrParse = errors.New("driver definition parse error")
)
