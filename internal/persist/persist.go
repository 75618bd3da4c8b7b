package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gridlink-core/internal/observability"
	"github.com/nerrad567/gridlink-core/internal/store"
)

const (
	// writeTimeout bounds one persister write made from a store mutation.
	writeTimeout = 5 * time.Second

	// maxFailures is how many recent failures the hub remembers.
	maxFailures = 64
)

// Persister is a durable-storage backend for store snapshots.
type Persister interface {
	// Name identifies the persister in logs and metrics.
	Name() string

	// OnChange receives the full snapshot of store after a mutation.
	OnChange(ctx context.Context, store string, snapshot []byte) error

	// Load returns the last snapshot of store, or ok=false if none exists.
	Load(ctx context.Context, store string) (snapshot []byte, ok bool, err error)
}

// Logger defines the logging interface used by the Hub.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Failure records one rejected snapshot write.
type Failure struct {
	Store     string
	Persister string
	Err       error
	At        time.Time
}

// Hub fans every store mutation out to the registered persisters.
//
// It implements store.Observer: stores call Changed synchronously while
// holding their write lock, so each persister sees snapshots of one store
// in mutation order. Persister errors are recorded and flip the hub into
// degraded mode; they never reach the caller that mutated the store.
type Hub struct {
	mu         sync.Mutex
	persisters []Persister
	failures   []Failure
	degraded   bool

	logger Logger
}

// NewHub creates a hub with no persisters.
func NewHub() *Hub {
	return &Hub{logger: noopLogger{}}
}

// SetLogger sets the logger for the hub.
func (h *Hub) SetLogger(logger Logger) {
	h.logger = logger
}

// Register adds p. Persisters receive notifications in registration order.
func (h *Hub) Register(p Persister) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.persisters = append(h.persisters, p)
}

// Changed implements store.Observer.
func (h *Hub) Changed(c store.Change) {
	observability.RecordPersistNotification(c.Store)

	if c.Err != nil {
		h.recordFailure(c.Store, "encoder", c.Err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	for _, p := range h.registered() {
		if err := p.OnChange(ctx, c.Store, c.Snapshot); err != nil {
			h.recordFailure(c.Store, p.Name(), err)
		}
	}
}

// Hydrate restores each store from the first persister holding a snapshot
// for it. Stores with no snapshot anywhere are left empty. Unlike Changed,
// errors are returned: a store that cannot be restored must not serve.
func (h *Hub) Hydrate(ctx context.Context, stores ...store.Snapshotter) error {
	persisters := h.registered()

	for _, s := range stores {
		for _, p := range persisters {
			data, ok, err := p.Load(ctx, s.Name())
			if err != nil {
				return fmt.Errorf("loading %s from %s: %w", s.Name(), p.Name(), err)
			}
			if !ok {
				continue
			}
			if err := s.Restore(data); err != nil {
				return fmt.Errorf("restoring %s from %s: %w", s.Name(), p.Name(), err)
			}
			h.logger.Info("store hydrated", "store", s.Name(), "persister", p.Name(), "bytes", len(data))
			break
		}
	}
	return nil
}

// Flush writes the current snapshot of each store to every persister and
// returns all errors joined.
func (h *Hub) Flush(ctx context.Context, stores ...store.Snapshotter) error {
	var errs []error
	for _, s := range stores {
		data, err := s.Snapshot()
		if err != nil {
			errs = append(errs, fmt.Errorf("encoding %s: %w", s.Name(), err))
			continue
		}
		for _, p := range h.registered() {
			if err := p.OnChange(ctx, s.Name(), data); err != nil {
				h.recordFailure(s.Name(), p.Name(), err)
				errs = append(errs, fmt.Errorf("flushing %s to %s: %w", s.Name(), p.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Degraded reports whether any persister write has failed.
func (h *Hub) Degraded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.degraded
}

// Failures returns the most recent failures, oldest first.
func (h *Hub) Failures() []Failure {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Failure, len(h.failures))
	copy(out, h.failures)
	return out
}

// ResetDegraded clears the degraded flag and the failure history.
func (h *Hub) ResetDegraded() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.degraded = false
	h.failures = nil
}

func (h *Hub) registered() []Persister {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Persister, len(h.persisters))
	copy(out, h.persisters)
	return out
}

func (h *Hub) recordFailure(storeName, persister string, err error) {
	observability.RecordPersistFailure(storeName, persister)
	h.logger.Error("snapshot write failed", "store", storeName, "persister", persister, "error", err)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.degraded = true
	h.failures = append(h.failures, Failure{Store: storeName, Persister: persister, Err: err, At: time.Now()})
	if len(h.failures) > maxFailures {
		h.failures = h.failures[len(h.failures)-maxFailures:]
	}
}
