package telemetry

import (
	"context"

	"github.com/nerrad567/gridlink-core/internal/infrastructure/influxdb"
)

// MeterWriter is the subset of the InfluxDB client used by InfluxSink.
type MeterWriter interface {
	WriteMeterReading(r influxdb.MeterReading)
}

// InfluxSink writes readings to the mirror_readings measurement. Writes are
// batched by the client and never fail here.
type InfluxSink struct {
	w MeterWriter
}

// NewInfluxSink creates a sink writing through w.
func NewInfluxSink(w MeterWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Record implements Sink.
func (s *InfluxSink) Record(_ context.Context, r Reading) error {
	s.w.WriteMeterReading(influxdb.MeterReading{
		MirrorUsagePoint: r.MirrorUsagePoint,
		ReadingMRID:      r.ReadingMRID,
		Description:      r.Description,
		Value:            r.Value,
		PowerOfTenMult:   r.PowerOfTenMult,
		UOM:              r.UOM,
		Time:             r.Time(),
	})
	return nil
}
