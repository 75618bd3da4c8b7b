package store

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/nerrad567/gridlink-core/internal/href"
	"github.com/nerrad567/gridlink-core/internal/resource"
)

// Entry is what Append inserts: either one element or a batch of elements
// of a declared kind. Build one with Single or Batch.
type Entry struct {
	kind  resource.Kind
	items []resource.Resource
	batch bool
}

// Single wraps one element.
func Single(r resource.Resource) Entry {
	return Entry{items: []resource.Resource{r}}
}

// Batch wraps a ready-made collection of kind. Append inserts each element
// in order, binding an unbound container to kind first, so an empty batch
// still binds.
func Batch(kind resource.Kind, items ...resource.Resource) Entry {
	return Entry{kind: kind, items: items, batch: true}
}

// container is one URI's elements, bound to a single kind.
type container struct {
	kind  resource.Kind
	items map[int]resource.Resource
	next  int // one past the highest key ever issued
}

func (c *container) sortedKeys() []int {
	return slices.Sorted(maps.Keys(c.items))
}

func (c *container) values() []resource.Resource {
	out := make([]resource.Resource, 0, len(c.items))
	for _, key := range c.sortedKeys() {
		out = append(out, c.items[key])
	}
	return out
}

// ListStore holds many list containers, each identified by a URI such as
// "/edev" or "/derp_0_derc" and bound to one element kind at first use.
//
// Keys are sequential by default. Containers of the mirror family (see
// href.IsMirrorList) key each element by the trailing segment of its own
// href instead.
//
// One lock guards every container. Update runs several edits under that
// lock and notifies the observer once.
type ListStore struct {
	name string

	mu    sync.RWMutex
	lists map[string]*container

	observer Observer
}

// NewListStore creates an empty list store. observer may be nil.
func NewListStore(name string, observer Observer) *ListStore {
	if observer == nil {
		observer = noopObserver{}
	}
	return &ListStore{
		name:     name,
		lists:    make(map[string]*container),
		observer: observer,
	}
}

// Name returns the store name used for persistence.
func (s *ListStore) Name() string { return s.name }

// Update runs fn with exclusive access to every container. If fn changed
// anything the observer is notified once after it returns, whether or not
// fn returned an error; edits made before the error are kept.
func (s *ListStore) Update(fn func(tx *ListTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &ListTx{lists: s.lists}
	err := fn(tx)
	if tx.dirty {
		s.notifyLocked()
	}
	return err
}

// InitializeURI binds uri to kind. It fails with ErrTypeMismatch when uri
// already holds elements of another kind.
func (s *ListStore) InitializeURI(uri string, kind resource.Kind) error {
	return s.Update(func(tx *ListTx) error {
		return tx.InitializeURI(uri, kind)
	})
}

// Append inserts e at the end of uri and returns the inserted elements with
// their hrefs assigned.
func (s *ListStore) Append(uri string, e Entry) ([]resource.Resource, error) {
	var out []resource.Resource
	err := s.Update(func(tx *ListTx) error {
		var err error
		out, err = tx.Append(uri, e)
		return err
	})
	return out, err
}

// Set stores value at key. With overwrite false an occupied key fails with
// ErrAlreadyExists.
func (s *ListStore) Set(uri string, key int, value resource.Resource, overwrite bool) error {
	return s.Update(func(tx *ListTx) error {
		return tx.Set(uri, key, value, overwrite)
	})
}

// Remove deletes the element at key. Keys are not compacted.
func (s *ListStore) Remove(uri string, key int) error {
	return s.Update(func(tx *ListTx) error {
		return tx.Remove(uri, key)
	})
}

// Clear forgets uri, its elements and its binding.
func (s *ListStore) Clear(uri string) {
	_ = s.Update(func(tx *ListTx) error { //nolint:errcheck // Clear never fails
		tx.Clear(uri)
		return nil
	})
}

// ClearAll empties every container and forgets every binding.
func (s *ListStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lists = make(map[string]*container)
	s.notifyLocked()
}

// Get returns the element of uri at key.
func (s *ListStore) Get(uri string, key int) (resource.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return get(s.lists, uri, key)
}

// GetByMRID returns the first element of uri, in key order, with mrid.
func (s *ListStore) GetByMRID(uri, mrid string) (resource.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, r, err := getByMRID(s.lists, uri, mrid)
	return r, err
}

// GetResourceList returns one page of uri. An unknown uri yields an empty
// list rather than an error; a bad sort key fails with ErrInvalidSortKey.
func (s *ListStore) GetResourceList(uri string, q Query) (*resource.ListResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &resource.ListResponse{Href: uri, Items: []resource.Resource{}}
	c, ok := s.lists[uri]
	if !ok {
		return out, nil
	}
	out.Kind = c.kind

	paths, err := resolveSortKeys(c.kind, q.SortBy)
	if err != nil {
		return nil, err
	}

	items := c.values()
	sortResources(items, paths, q.Reverse)

	lo, hi := window(len(items), q.Start, q.After, q.Limit)
	out.All = len(items)
	out.Items = items[lo:hi]
	out.Results = len(out.Items)
	return out, nil
}

// Values returns every element of uri in key order.
func (s *ListStore) Values(uri string) []resource.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.lists[uri]
	if !ok {
		return nil
	}
	return c.values()
}

// Size returns the number of elements in uri.
func (s *ListStore) Size(uri string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.lists[uri]; ok {
		return len(c.items)
	}
	return 0
}

// Count returns the number of elements across all containers.
func (s *ListStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, c := range s.lists {
		n += len(c.items)
	}
	return n
}

// Kind returns the kind uri is bound to.
func (s *ListStore) Kind(uri string) (resource.Kind, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.lists[uri]; ok {
		return c.kind, true
	}
	return "", false
}

// HasList reports whether uri exists.
func (s *ListStore) HasList(uri string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.lists[uri]
	return ok
}

// URIs returns every container URI in sorted order.
func (s *ListStore) URIs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.lists))
}

// Snapshot encodes every container.
func (s *ListStore) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Restore replaces all containers with a snapshot. Observers are not
// notified.
func (s *ListStore) Restore(data []byte) error {
	var snap listSnapshot
	if err := decMode.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decoding %s snapshot: %w", s.name, err)
	}
	if err := checkVersion(snap.Version); err != nil {
		return err
	}

	lists := make(map[string]*container, len(snap.Lists))
	for _, lc := range snap.Lists {
		c := &container{kind: lc.Kind, next: lc.Next, items: make(map[int]resource.Resource, len(lc.Records))}
		for _, rec := range lc.Records {
			r, err := decodeResource(lc.Kind, rec.Data)
			if err != nil {
				return fmt.Errorf("restoring %s key %d: %w", lc.URI, rec.Key, err)
			}
			c.items[rec.Key] = r
		}
		lists[lc.URI] = c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists = lists
	return nil
}

func (s *ListStore) snapshotLocked() ([]byte, error) {
	snap := listSnapshot{Version: snapshotVersion}
	for _, uri := range slices.Sorted(maps.Keys(s.lists)) {
		c := s.lists[uri]
		lc := listContainer{URI: uri, Kind: c.kind, Next: c.next, Records: make([]record, 0, len(c.items))}
		for _, key := range c.sortedKeys() {
			data, err := encodeResource(c.items[key])
			if err != nil {
				return nil, err
			}
			lc.Records = append(lc.Records, record{Key: key, Data: data})
		}
		snap.Lists = append(snap.Lists, lc)
	}
	return encMode.Marshal(snap)
}

func (s *ListStore) notifyLocked() {
	data, err := s.snapshotLocked()
	s.observer.Changed(Change{Store: s.name, Snapshot: data, Err: err})
}

func get(lists map[string]*container, uri string, key int) (resource.Resource, error) {
	c, ok := lists[uri]
	if !ok {
		return nil, fmt.Errorf("%w: list %s", ErrNotFound, uri)
	}
	r, ok := c.items[key]
	if !ok {
		return nil, fmt.Errorf("%w: key %d in list %s", ErrNotFound, key, uri)
	}
	return r, nil
}

func getByMRID(lists map[string]*container, uri, mrid string) (int, resource.Resource, error) {
	if c, ok := lists[uri]; ok && mrid != "" {
		for _, key := range c.sortedKeys() {
			if r := c.items[key]; r.GetMRID() == mrid {
				return key, r, nil
			}
		}
	}
	return 0, nil, fmt.Errorf("%w: mRID %s in list %s", ErrNotFound, mrid, uri)
}

// ListTx is the view of a ListStore inside Update. It must not be used
// after Update returns.
type ListTx struct {
	lists map[string]*container
	dirty bool
}

// InitializeURI binds uri to kind.
func (tx *ListTx) InitializeURI(uri string, kind resource.Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: cannot bind %s to unknown kind %q", ErrTypeMismatch, uri, string(kind))
	}
	c, ok := tx.lists[uri]
	switch {
	case !ok:
		tx.lists[uri] = &container{kind: kind, items: make(map[int]resource.Resource)}
	case c.kind == kind:
		return nil
	case len(c.items) > 0:
		return fmt.Errorf("%w: %s already holds %s", ErrTypeMismatch, uri, c.kind)
	default:
		c.kind = kind
	}
	tx.dirty = true
	return nil
}

// Append inserts e at the end of uri.
func (tx *ListTx) Append(uri string, e Entry) ([]resource.Resource, error) {
	kind := e.kind
	if !e.batch {
		if len(e.items) != 1 || isNil(e.items[0]) {
			return nil, ErrNilResource
		}
		kind = e.items[0].Kind()
	}
	for _, r := range e.items {
		if isNil(r) {
			return nil, ErrNilResource
		}
		if r.Kind() != kind {
			return nil, fmt.Errorf("%w: %s batch holds a %s", ErrTypeMismatch, kind, r.Kind())
		}
	}

	c, err := tx.bind(uri, kind)
	if err != nil {
		return nil, err
	}

	out := make([]resource.Resource, 0, len(e.items))
	for _, r := range e.items {
		key, err := tx.keyFor(uri, c, r)
		if err != nil {
			return out, err
		}
		if r.GetHref() == "" {
			r.SetHref(href.Build(uri, key))
		}
		c.items[key] = r
		c.next = max(c.next, key+1)
		tx.dirty = true
		out = append(out, r)
	}
	return out, nil
}

// Set stores value at key in uri, binding uri on first use.
func (tx *ListTx) Set(uri string, key int, value resource.Resource, overwrite bool) error {
	if isNil(value) {
		return ErrNilResource
	}
	if key < 0 {
		return fmt.Errorf("%w: negative key %d", ErrInvalidHref, key)
	}
	c, err := tx.bind(uri, value.Kind())
	if err != nil {
		return err
	}
	if _, occupied := c.items[key]; occupied && !overwrite {
		return fmt.Errorf("%w: key %d in list %s", ErrAlreadyExists, key, uri)
	}
	if value.GetHref() == "" {
		value.SetHref(href.Build(uri, key))
	}
	c.items[key] = value
	c.next = max(c.next, key+1)
	tx.dirty = true
	return nil
}

// Remove deletes the element of uri at key.
func (tx *ListTx) Remove(uri string, key int) error {
	if _, err := get(tx.lists, uri, key); err != nil {
		return err
	}
	delete(tx.lists[uri].items, key)
	tx.dirty = true
	return nil
}

// Clear forgets uri.
func (tx *ListTx) Clear(uri string) {
	if _, ok := tx.lists[uri]; ok {
		delete(tx.lists, uri)
		tx.dirty = true
	}
}

// Get returns the element of uri at key.
func (tx *ListTx) Get(uri string, key int) (resource.Resource, error) {
	return get(tx.lists, uri, key)
}

// GetByMRID returns the key and element of the first match for mrid.
func (tx *ListTx) GetByMRID(uri, mrid string) (int, resource.Resource, error) {
	return getByMRID(tx.lists, uri, mrid)
}

// Keys returns the occupied keys of uri in ascending order.
func (tx *ListTx) Keys(uri string) []int {
	if c, ok := tx.lists[uri]; ok {
		return c.sortedKeys()
	}
	return nil
}

// HasList reports whether uri exists.
func (tx *ListTx) HasList(uri string) bool {
	_, ok := tx.lists[uri]
	return ok
}

func (tx *ListTx) bind(uri string, kind resource.Kind) (*container, error) {
	c, ok := tx.lists[uri]
	if !ok {
		if err := tx.InitializeURI(uri, kind); err != nil {
			return nil, err
		}
		return tx.lists[uri], nil
	}
	if c.kind != kind {
		return nil, fmt.Errorf("%w: %s is bound to %s, got %s", ErrTypeMismatch, uri, c.kind, kind)
	}
	return c, nil
}

func (tx *ListTx) keyFor(uri string, c *container, r resource.Resource) (int, error) {
	if !href.IsMirrorList(uri) {
		return c.next, nil
	}
	key, err := href.MirrorKey(r.GetHref())
	if err != nil {
		return 0, fmt.Errorf("keying %s element: %w", uri, err)
	}
	return key, nil
}
