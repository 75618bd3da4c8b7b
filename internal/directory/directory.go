package directory

import (
	"context"
	"time"

	"github.com/nerrad567/gridlink-core/internal/href"
	"github.com/nerrad567/gridlink-core/internal/persist"
	"github.com/nerrad567/gridlink-core/internal/resource"
	"github.com/nerrad567/gridlink-core/internal/store"
	"github.com/nerrad567/gridlink-core/internal/telemetry"
)

// Store names used for persistence.
const (
	StoreCapabilities = "dcap"
	StoreEndDevices   = "edev"
	StoreFSAs         = "fsa"
	StoreLists        = "lists"
	StoreHrefs        = "hrefs"
)

// timeQuality is the Time.quality advertised at /tm: the server clock is
// not traceable to a reference.
const timeQuality = 7

// Logger defines the logging interface used by the directory.
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

// Clock supplies the current tick in seconds since the Unix epoch.
type Clock interface {
	Now() int64
}

type wallClock struct{}

func (wallClock) Now() int64 { return time.Now().Unix() }

// Options configures a Directory. The zero value is usable.
type Options struct {
	// Clock stamps creation and status times and backs /tm. Defaults to
	// the wall clock.
	Clock Clock

	// Sink receives every posted mirror reading. Defaults to discarding.
	Sink telemetry.Sink

	// MirrorPostRate is the postRate given to mirror usage points that
	// arrive without one, and the pollRate of the /mup list.
	MirrorPostRate int

	// Location is the server time zone reported at /tm. Defaults to UTC.
	Location *time.Location

	Logger Logger
}

// Directory is the server's resource directory: every store, addressed by
// href, plus the operations that keep linked resources consistent.
//
// Build one with New, call Open before serving to hydrate it, and Close on
// shutdown to flush it.
type Directory struct {
	Capabilities *store.Store[*resource.DeviceCapability]
	EndDevices   *store.Store[*resource.EndDevice]
	FSAs         *store.Store[*resource.FunctionSetAssignments]

	// Lists holds every collection: programs, controls, DERs, curves,
	// mirror usage points and their readings.
	Lists *store.ListStore

	// Hrefs holds the singletons addressed only by href, such as
	// "/edev_0_cfg" and "/derp_0_dderc".
	Hrefs *store.Index

	hub            *persist.Hub
	clock          Clock
	sink           telemetry.Sink
	mirrorPostRate int
	location       *time.Location
	logger         Logger
}

// New creates an empty directory whose stores notify hub. hub may be nil.
func New(hub *persist.Hub, opts Options) *Directory {
	var obs store.Observer
	if hub != nil {
		obs = hub
	}

	d := &Directory{
		Capabilities: store.New[*resource.DeviceCapability](StoreCapabilities, href.DeviceCapabilityRoot, obs),
		EndDevices:   store.New[*resource.EndDevice](StoreEndDevices, href.EndDeviceRoot, obs),
		FSAs:         store.New[*resource.FunctionSetAssignments](StoreFSAs, href.FSARoot, obs),
		Lists:        store.NewListStore(StoreLists, obs),
		Hrefs:        store.NewIndex(StoreHrefs, obs),

		hub:            hub,
		clock:          opts.Clock,
		sink:           opts.Sink,
		mirrorPostRate: opts.MirrorPostRate,
		location:       opts.Location,
		logger:         opts.Logger,
	}
	if d.clock == nil {
		d.clock = wallClock{}
	}
	if d.sink == nil {
		d.sink = telemetry.Discard{}
	}
	if d.location == nil {
		d.location = time.UTC
	}
	if d.logger == nil {
		d.logger = noopLogger{}
	}
	return d
}

// Stores returns every store for hydration and flushing.
func (d *Directory) Stores() []store.Snapshotter {
	return []store.Snapshotter{d.Capabilities, d.EndDevices, d.FSAs, d.Lists, d.Hrefs}
}

// Open hydrates every store from the hub's persisters.
func (d *Directory) Open(ctx context.Context) error {
	if d.hub == nil {
		return nil
	}
	return d.hub.Hydrate(ctx, d.Stores()...)
}

// Close writes a final snapshot of every store.
func (d *Directory) Close(ctx context.Context) error {
	if d.hub == nil {
		return nil
	}
	return d.hub.Flush(ctx, d.Stores()...)
}

// Clear empties every store.
func (d *Directory) Clear() {
	d.Capabilities.Clear()
	d.EndDevices.Clear()
	d.FSAs.Clear()
	d.Lists.ClearAll()
	d.Hrefs.Clear()
}

// Now returns the directory clock reading.
func (d *Directory) Now() int64 {
	return d.clock.Now()
}

// Time returns the /tm resource for the current clock reading.
func (d *Directory) Time() *resource.Time {
	now := d.clock.Now()
	_, offset := time.Unix(now, 0).In(d.location).Zone()
	return &resource.Time{
		Meta:        resource.Meta{Href: href.TimeRoot},
		CurrentTime: now,
		LocalTime:   now + int64(offset),
		TzOffset:    int64(offset),
		Quality:     timeQuality,
	}
}
