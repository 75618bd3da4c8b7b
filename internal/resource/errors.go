package resource

import "errors"

var (
	// ErrUnknownKind is returned by New for a kind with no constructor.
	ErrUnknownKind = errors.New("resource: unknown kind")

	// ErrKindMismatch is returned by As when a resource is of another kind.
	ErrKindMismatch = errors.New("resource: kind mismatch")

	// ErrInvalidControlBase is returned when a control base names an
	// unknown operating mode.
	ErrInvalidControlBase = errors.New("resource: invalid control base")
)
