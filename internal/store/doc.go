// Package store implements the in-memory resource directory.
//
// Store is a sequentially keyed collection of one resource kind. ListStore
// holds many URI-identified list containers, each bound to one kind at
// first use. Index holds href-addressed singletons. All three encode their
// full state as a deterministic CBOR snapshot and hand it to an Observer
// after every mutation; package persist turns those notifications into
// durable writes.
//
// Errors belong to a small taxonomy (ErrNotFound, ErrAlreadyExists,
// ErrTypeMismatch, ErrInvalidHref, ErrInvalidSortKey) that callers map to
// protocol status codes with errors.Is.
package store
