package telemetry

import (
	"context"
	"errors"
	"time"
)

// Reading is one value posted to a mirror meter reading.
type Reading struct {
	MirrorUsagePoint string // href of the owning mirror usage point
	MeterReading     string // href of the mirror meter reading
	ReadingMRID      string
	Description      string
	Value            int64
	PowerOfTenMult   int
	UOM              int

	// TimePeriod is the start of the reading's interval, seconds since epoch.
	TimePeriod int64
}

// Time returns TimePeriod as a time.Time, or the zero time when unset.
func (r Reading) Time() time.Time {
	if r.TimePeriod == 0 {
		return time.Time{}
	}
	return time.Unix(r.TimePeriod, 0).UTC()
}

// Sink receives readings as they are posted.
type Sink interface {
	Record(ctx context.Context, r Reading) error
}

// Multi fans a reading out to several sinks. Every sink is called; the
// errors are joined.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(ctx context.Context, r Reading) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every reading.
type Discard struct{}

// Record implements Sink.
func (Discard) Record(context.Context, Reading) error { return nil }
