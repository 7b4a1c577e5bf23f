package goschedule

import "errors"

var (
	// ErrTermNotFound is returned when a term ID or path is not in the catalog.
	ErrTermNotFound = errors.New("goschedule: term not found")

	// ErrUnsupportedFormat is returned for file formats with no loader.
	ErrUnsupportedFormat = errors.New("goschedule: unsupported document format")

	// ErrParsingFailed is returned when a document cannot be opened or the
	// pipeline aborts.
	ErrParsingFailed = errors.New("goschedule: parsing failed")

	// ErrStoreClosed is returned when operating on a closed engine.
	ErrStoreClosed = errors.New("goschedule: store is closed")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("goschedule: invalid configuration")

	// ErrNoSchedules is returned when no page of a document holds a schedule.
	ErrNoSchedules = errors.New("goschedule: no schedule pages found")
)
