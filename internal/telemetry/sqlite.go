package telemetry

import (
	"context"
	"fmt"

	"github.com/nerrad567/gridlink-core/internal/infrastructure/database"
)

// SQLiteSink keeps readings in the meter_readings table, one row per
// mirror meter reading and time period.
type SQLiteSink struct {
	db *database.DB
}

// NewSQLiteSink creates a sink backed by db. The database must already be
// migrated.
func NewSQLiteSink(db *database.DB) *SQLiteSink {
	return &SQLiteSink{db: db}
}

// Record implements Sink. A second reading for the same period replaces
// the first.
func (s *SQLiteSink) Record(ctx context.Context, r Reading) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meter_readings (mmr_href, mup_href, value, multiplier, uom, time_period)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(mmr_href, time_period) DO UPDATE SET
			mup_href = excluded.mup_href,
			value = excluded.value,
			multiplier = excluded.multiplier,
			uom = excluded.uom`,
		r.MeterReading, r.MirrorUsagePoint, r.Value, r.PowerOfTenMult, r.UOM, r.TimePeriod)
	if err != nil {
		return fmt.Errorf("recording reading for %s: %w", r.MeterReading, err)
	}
	return nil
}
