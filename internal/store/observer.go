package store

// Change describes one committed mutation of a store.
type Change struct {
	// Store is the name of the mutated store.
	Store string

	// Snapshot is the full encoded state after the mutation.
	Snapshot []byte

	// Err is set when the snapshot could not be encoded. The mutation
	// itself has still been applied.
	Err error
}

// Observer is notified once per logical mutation, synchronously and while
// the store's write lock is held, so notifications arrive in mutation order.
// Implementations must not call back into the store.
type Observer interface {
	Changed(c Change)
}

// Snapshotter is implemented by every store so it can be flushed and
// hydrated by name.
type Snapshotter interface {
	Name() string
	Snapshot() ([]byte, error)
	Restore(data []byte) error
}

type noopObserver struct{}

func (noopObserver) Changed(Change) {}
