package directory

import "errors"

// Domain-specific errors for the directory. Lookups fail with the store
// package errors (store.ErrNotFound and friends).
var (
	// ErrInvalidControl is returned for a control without a usable window.
	ErrInvalidControl = errors.New("directory: invalid control")

	// ErrInvalidStatus is returned when a control cannot move to the requested status.
	ErrInvalidStatus = errors.New("directory: invalid status change")

	// ErrNotWritable is returned when a client writes an href the server owns.
	ErrNotWritable = errors.New("directory: resource is not client writable")

	// ErrUnknownReference is returned when configuration names a program or
	// function set assignment that does not exist.
	ErrUnknownReference = errors.New("directory: unknown reference")

	// ErrInvalidMirror is returned for a mirror post to the wrong address.
	ErrInvalidMirror = errors.New("directory: invalid mirror request")
)
