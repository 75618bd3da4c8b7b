package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gridlink-core/internal/infrastructure/database"
)

// snapshotFormat is written to store_snapshots.version.
const snapshotFormat = 1

// SQLitePersister stores one row per store in the store_snapshots table.
// The database must already be migrated.
type SQLitePersister struct {
	db *database.DB
}

// NewSQLitePersister creates a persister backed by db.
func NewSQLitePersister(db *database.DB) *SQLitePersister {
	return &SQLitePersister{db: db}
}

// Name implements Persister.
func (*SQLitePersister) Name() string { return "sqlite" }

// OnChange implements Persister. The row is replaced in a single upsert.
func (p *SQLitePersister) OnChange(ctx context.Context, store string, snapshot []byte) error {
	return p.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO store_snapshots (store, payload, version, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(store) DO UPDATE SET
				payload = excluded.payload,
				version = excluded.version,
				updated_at = excluded.updated_at`,
			store, snapshot, snapshotFormat, time.Now().UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("upserting snapshot for %s: %w", store, err)
		}
		return nil
	})
}

// Load implements Persister.
func (p *SQLitePersister) Load(ctx context.Context, store string) ([]byte, bool, error) {
	var (
		payload []byte
		version int
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT payload, version FROM store_snapshots WHERE store = ?`, store,
	).Scan(&payload, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading snapshot for %s: %w", store, err)
	}
	if version != snapshotFormat {
		return nil, false, fmt.Errorf("snapshot for %s has unsupported format %d", store, version)
	}
	return payload, true, nil
}

// Stores lists the stores that have a saved snapshot.
func (p *SQLitePersister) Stores(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT store FROM store_snapshots ORDER BY store`)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Purge deletes every saved snapshot.
func (p *SQLitePersister) Purge(ctx context.Context) error {
	return p.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM store_snapshots`); err != nil {
			return fmt.Errorf("purging snapshots: %w", err)
		}
		return nil
	})
}
