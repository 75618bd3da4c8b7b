package store

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/nerrad567/gridlink-core/internal/href"
	"github.com/nerrad567/gridlink-core/internal/resource"
)

// Store is a sequentially keyed collection of one resource kind, such as
// end devices or registrations. Element hrefs are prefix_key, so address
// and storage key agree.
//
// Elements are held by reference. Callers that want to change one should
// Clone it, edit the copy and Put it back; only mutations made through the
// store are persisted and visible atomically to other readers.
//
// All methods are safe for concurrent use.
type Store[T resource.Resource] struct {
	name   string
	prefix string
	kind   resource.Kind

	mu    sync.RWMutex
	items map[int]T
	next  int // one past the highest key ever issued

	observer Observer
}

// New creates an empty store named name whose hrefs start with prefix.
// observer may be nil.
func New[T resource.Resource](name, prefix string, observer Observer) *Store[T] {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Store[T]{
		name:     name,
		prefix:   prefix,
		kind:     resource.KindOf[T](),
		items:    make(map[int]T),
		observer: observer,
	}
}

// Name returns the store name used for persistence.
func (s *Store[T]) Name() string { return s.name }

// Prefix returns the href prefix, e.g. "/edev".
func (s *Store[T]) Prefix() string { return s.prefix }

// Kind returns the element kind.
func (s *Store[T]) Kind() resource.Kind { return s.kind }

// Add stores item under the next key and returns that key. An item
// without an href is given prefix_key. Returns ErrAlreadyExists when
// another element carries the same mRID.
func (s *Store[T]) Add(item T) (int, error) {
	return s.AddFunc(item, nil)
}

// AddFunc is Add with a hook: prepare, if not nil, runs under the store
// lock with the key item is about to take, before item becomes visible.
// Fields derived from the key are therefore set in the same mutation.
// prepare must not call back into the store.
func (s *Store[T]) AddFunc(item T, prepare func(key int, item T)) (int, error) {
	if isNil(item) {
		return 0, ErrNilResource
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if mrid := item.GetMRID(); mrid != "" {
		if k, ok := s.keyOfMRIDLocked(mrid); ok {
			return 0, fmt.Errorf("%w: %s mRID %s at key %d", ErrAlreadyExists, s.kind, mrid, k)
		}
	}

	key := s.next
	if prepare != nil {
		prepare(key, item)
	}
	s.next++
	if item.GetHref() == "" {
		item.SetHref(href.Build(s.prefix, key))
	}
	s.items[key] = item

	s.notifyLocked()
	return key, nil
}

// Fetch returns the element at key.
func (s *Store[T]) Fetch(key int) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[key]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s key %d", ErrNotFound, s.kind, key)
	}
	return item, nil
}

// FetchByHref returns the element whose href is path.
func (s *Store[T]) FetchByHref(path string) (T, error) {
	var zero T
	if _, err := href.Parse(path); err != nil {
		return zero, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, key := range s.sortedKeysLocked() {
		if item := s.items[key]; item.GetHref() == path {
			return item, nil
		}
	}
	return zero, fmt.Errorf("%w: %s href %s", ErrNotFound, s.kind, path)
}

// FetchByMRID returns the element with the given mRID.
func (s *Store[T]) FetchByMRID(mrid string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if key, ok := s.keyOfMRIDLocked(mrid); ok {
		return s.items[key], nil
	}
	var zero T
	return zero, fmt.Errorf("%w: %s mRID %s", ErrNotFound, s.kind, mrid)
}

// FetchByProperty returns every element whose field name equals value, in
// key order. Link fields match on their href. Unlike the other lookups, no
// match is an empty result rather than an error.
func (s *Store[T]) FetchByProperty(name string, value any) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []T
	for _, key := range s.sortedKeysLocked() {
		if item := s.items[key]; matchesProperty(item, name, value) {
			out = append(out, item)
		}
	}
	return out
}

// FetchPage fills into with elements [start+after, start+after+limit) in
// key order, plus the all and results counts. Limit 0 means no limit.
func (s *Store[T]) FetchPage(into *resource.ListResponse, start, after, limit int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.sortedKeysLocked()
	lo, hi := window(len(keys), start, after, limit)

	if into.Href == "" {
		into.Href = s.prefix
	}
	into.Kind = s.kind
	into.All = len(keys)
	into.Items = make([]resource.Resource, 0, hi-lo)
	for _, key := range keys[lo:hi] {
		into.Items = append(into.Items, s.items[key])
	}
	into.Results = len(into.Items)
}

// FetchAll returns every element in key order.
func (s *Store[T]) FetchAll() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0, len(s.items))
	for _, key := range s.sortedKeysLocked() {
		out = append(out, s.items[key])
	}
	return out
}

// Put replaces the element at key, inserting it if the key is free. An
// item without an href is given prefix_key.
func (s *Store[T]) Put(key int, item T) error {
	if isNil(item) {
		return ErrNilResource
	}
	if key < 0 {
		return fmt.Errorf("%w: negative key %d", ErrInvalidHref, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if mrid := item.GetMRID(); mrid != "" {
		if k, ok := s.keyOfMRIDLocked(mrid); ok && k != key {
			return fmt.Errorf("%w: %s mRID %s at key %d", ErrAlreadyExists, s.kind, mrid, k)
		}
	}

	if item.GetHref() == "" {
		item.SetHref(href.Build(s.prefix, key))
	}
	s.items[key] = item
	if key >= s.next {
		s.next = key + 1
	}

	s.notifyLocked()
	return nil
}

// Remove deletes the element at key. Dependent resources are not touched.
func (s *Store[T]) Remove(key int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[key]; !ok {
		return fmt.Errorf("%w: %s key %d", ErrNotFound, s.kind, key)
	}
	delete(s.items, key)

	s.notifyLocked()
	return nil
}

// Clear empties the store and resets the key counter.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[int]T)
	s.next = 0

	s.notifyLocked()
}

// Count returns the number of elements.
func (s *Store[T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Keys returns the occupied keys in ascending order.
func (s *Store[T]) Keys() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedKeysLocked()
}

// Snapshot encodes the store.
func (s *Store[T]) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Restore replaces the store contents with a snapshot. Observers are not
// notified.
func (s *Store[T]) Restore(data []byte) error {
	var snap storeSnapshot
	if err := decMode.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decoding %s snapshot: %w", s.name, err)
	}
	if err := checkVersion(snap.Version); err != nil {
		return err
	}
	if snap.Kind != s.kind {
		return fmt.Errorf("%w: snapshot of %s holds %s", ErrTypeMismatch, s.name, snap.Kind)
	}

	items := make(map[int]T, len(snap.Records))
	for _, rec := range snap.Records {
		r, err := decodeResource(s.kind, rec.Data)
		if err != nil {
			return fmt.Errorf("restoring %s key %d: %w", s.name, rec.Key, err)
		}
		item, err := resource.As[T](r)
		if err != nil {
			return err
		}
		items[rec.Key] = item
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.next = snap.Next
	return nil
}

func (s *Store[T]) snapshotLocked() ([]byte, error) {
	snap := storeSnapshot{
		Version: snapshotVersion,
		Kind:    s.kind,
		Next:    s.next,
		Records: make([]record, 0, len(s.items)),
	}
	for _, key := range s.sortedKeysLocked() {
		data, err := encodeResource(s.items[key])
		if err != nil {
			return nil, err
		}
		snap.Records = append(snap.Records, record{Key: key, Data: data})
	}
	return encMode.Marshal(snap)
}

func (s *Store[T]) notifyLocked() {
	data, err := s.snapshotLocked()
	s.observer.Changed(Change{Store: s.name, Snapshot: data, Err: err})
}

func (s *Store[T]) keyOfMRIDLocked(mrid string) (int, bool) {
	if mrid == "" {
		return 0, false
	}
	for _, key := range s.sortedKeysLocked() {
		if s.items[key].GetMRID() == mrid {
			return key, true
		}
	}
	return 0, false
}

func (s *Store[T]) sortedKeysLocked() []int {
	return slices.Sorted(maps.Keys(s.items))
}

// isNil reports whether r is nil or a nil pointer.
func isNil(r resource.Resource) bool {
	if r == nil {
		return true
	}
	v := reflect.ValueOf(r)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
