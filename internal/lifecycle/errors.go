package lifecycle

import "errors"

// Domain-specific errors for the lifecycle engine.
var (
	// ErrMissingControlList is logged when a program's control list does not exist.
	ErrMissingControlList = errors.New("lifecycle: program control list missing")

	// ErrStatusNotApplied is logged when a started transition failed to set Active.
	ErrStatusNotApplied = errors.New("lifecycle: started transition did not take")

	// ErrNoInterval is logged for a control that has no time window.
	ErrNoInterval = errors.New("lifecycle: control has no interval")
)
