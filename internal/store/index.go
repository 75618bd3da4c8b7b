package store

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/nerrad567/gridlink-core/internal/href"
	"github.com/nerrad567/gridlink-core/internal/resource"
)

// Index holds singleton resources that are addressed only by href, such as
// a device's configuration or a program's default control.
//
// All methods are safe for concurrent use.
type Index struct {
	name string

	mu    sync.RWMutex
	items map[string]resource.Resource

	observer Observer
}

// NewIndex creates an empty index. observer may be nil.
func NewIndex(name string, observer Observer) *Index {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Index{
		name:     name,
		items:    make(map[string]resource.Resource),
		observer: observer,
	}
}

// Name returns the store name used for persistence.
func (x *Index) Name() string { return x.name }

// Put stores r at path, replacing any resource of the same kind. The
// resource's href is set to path.
func (x *Index) Put(path string, r resource.Resource) error {
	if isNil(r) {
		return ErrNilResource
	}
	if _, err := href.Parse(path); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if prev, ok := x.items[path]; ok && prev.Kind() != r.Kind() {
		return fmt.Errorf("%w: %s holds a %s, got %s", ErrTypeMismatch, path, prev.Kind(), r.Kind())
	}
	r.SetHref(path)
	x.items[path] = r

	x.notifyLocked()
	return nil
}

// Get returns the resource at path.
func (x *Index) Get(path string) (resource.Resource, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	r, ok := x.items[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return r, nil
}

// Lookup returns the resource at path as T.
func Lookup[T resource.Resource](x *Index, path string) (T, error) {
	r, err := x.Get(path)
	if err != nil {
		var zero T
		return zero, err
	}
	v, err := resource.As[T](r)
	if err != nil {
		return v, fmt.Errorf("%w: %s: %w", ErrTypeMismatch, path, err)
	}
	return v, nil
}

// Remove deletes the resource at path.
func (x *Index) Remove(path string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.items[path]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	delete(x.items, path)

	x.notifyLocked()
	return nil
}

// Hrefs returns the sorted paths starting with prefix.
func (x *Index) Hrefs(prefix string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []string
	for _, p := range slices.Sorted(maps.Keys(x.items)) {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out
}

// Count returns the number of resources.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.items)
}

// Clear removes every resource.
func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.items = make(map[string]resource.Resource)
	x.notifyLocked()
}

// Snapshot encodes the index.
func (x *Index) Snapshot() ([]byte, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.snapshotLocked()
}

// Restore replaces the index contents with a snapshot.
func (x *Index) Restore(data []byte) error {
	var snap indexSnapshot
	if err := decMode.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decoding %s snapshot: %w", x.name, err)
	}
	if err := checkVersion(snap.Version); err != nil {
		return err
	}

	items := make(map[string]resource.Resource, len(snap.Entries))
	for _, e := range snap.Entries {
		r, err := decodeResource(e.Kind, e.Data)
		if err != nil {
			return fmt.Errorf("restoring %s: %w", e.Href, err)
		}
		items[e.Href] = r
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.items = items
	return nil
}

func (x *Index) snapshotLocked() ([]byte, error) {
	snap := indexSnapshot{Version: snapshotVersion, Entries: make([]indexRecord, 0, len(x.items))}
	for _, p := range slices.Sorted(maps.Keys(x.items)) {
		r := x.items[p]
		data, err := encodeResource(r)
		if err != nil {
			return nil, err
		}
		snap.Entries = append(snap.Entries, indexRecord{Href: p, Kind: r.Kind(), Data: data})
	}
	return encMode.Marshal(snap)
}

func (x *Index) notifyLocked() {
	data, err := x.snapshotLocked()
	x.observer.Changed(Change{Store: x.name, Snapshot: data, Err: err})
}
