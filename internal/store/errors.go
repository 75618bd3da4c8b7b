package store

import (
	"errors"

	"github.com/nerrad567/gridlink-core/internal/href"
)

// Error taxonomy shared by Store, ListStore and Index.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, store.ErrNotFound) {
//	    // map to 404
//	}
var (
	// ErrNotFound is returned when a key, href or mRID is unknown.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists is returned on a key or mRID collision.
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrTypeMismatch is returned when an element's kind disagrees with the
	// kind its container is bound to.
	ErrTypeMismatch = errors.New("store: type mismatch")

	// ErrInvalidSortKey is returned when a sort path is malformed or names
	// a field the bound kind does not have.
	ErrInvalidSortKey = errors.New("store: invalid sort key")

	// ErrNilResource is returned when a nil element is added.
	ErrNilResource = errors.New("store: nil resource")

	// ErrInvalidHref is href.ErrInvalidHref, re-exported so callers can
	// check the whole taxonomy against this package.
	ErrInvalidHref = href.ErrInvalidHref
)
