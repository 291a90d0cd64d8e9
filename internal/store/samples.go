package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/HerbHall/hwmeter/internal/pollster"
)

const componentName = "samples"

func sampleMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "create latest_samples",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE latest_samples (
						resource_id TEXT NOT NULL,
						name        TEXT NOT NULL,
						instance    TEXT NOT NULL DEFAULT '',
						kind        TEXT NOT NULL,
						unit        TEXT NOT NULL,
						volume      REAL NOT NULL,
						sampled_at  TEXT NOT NULL,
						metadata    TEXT NOT NULL DEFAULT '{}',
						PRIMARY KEY (resource_id, name, instance)
					)
				`)
				return err
			},
		},
		{
			Version:     2,
			Description: "index latest_samples by resource",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`CREATE INDEX idx_latest_samples_resource ON latest_samples(resource_id)`)
				return err
			},
		},
	}
}

// SaveLatest overwrites the stored value of each sample's series.
func (s *SQLiteStore) SaveLatest(ctx context.Context, samples []pollster.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	return s.Tx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO latest_samples (resource_id, name, instance, kind, unit, volume, sampled_at, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(resource_id, name, instance) DO UPDATE SET
				kind = excluded.kind,
				unit = excluded.unit,
				volume = excluded.volume,
				sampled_at = excluded.sampled_at,
				metadata = excluded.metadata
		`)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, smp := range samples {
			md, err := json.Marshal(smp.ResourceMetadata)
			if err != nil {
				return fmt.Errorf("encode metadata for %s: %w", smp.SeriesKey(), err)
			}
			if _, err := stmt.ExecContext(ctx,
				smp.ResourceID, smp.Name, smp.Instance(), string(smp.Kind), smp.Unit,
				smp.Volume, smp.Timestamp.UTC().Format(time.RFC3339Nano), string(md),
			); err != nil {
				return fmt.Errorf("upsert %s: %w", smp.SeriesKey(), err)
			}
		}
		return nil
	})
}

// Latest returns the stored samples, ordered by resource, name and
// instance. An empty resourceID returns every resource.
func (s *SQLiteStore) Latest(ctx context.Context, resourceID string) ([]pollster.Sample, error) {
	query := `SELECT resource_id, name, kind, unit, volume, sampled_at, metadata FROM latest_samples`
	var args []any
	if resourceID != "" {
		query += ` WHERE resource_id = ?`
		args = append(args, resourceID)
	}
	query += ` ORDER BY resource_id, name, instance`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query latest samples: %w", err)
	}
	defer rows.Close()

	out := []pollster.Sample{}
	for rows.Next() {
		var (
			smp       pollster.Sample
			kind      string
			sampledAt string
			md        string
		)
		if err := rows.Scan(&smp.ResourceID, &smp.Name, &kind, &smp.Unit, &smp.Volume, &sampledAt, &md); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		smp.Kind = pollster.Kind(kind)
		if smp.Timestamp, err = time.Parse(time.RFC3339Nano, sampledAt); err != nil {
			return nil, fmt.Errorf("parse sampled_at %q: %w", sampledAt, err)
		}
		if err := json.Unmarshal([]byte(md), &smp.ResourceMetadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		out = append(out, smp)
	}
	return out, rows.Err()
}

// DeleteResource removes every stored series of a resource, for hosts
// dropped from the host list.
func (s *SQLiteStore) DeleteResource(ctx context.Context, resourceID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM latest_samples WHERE resource_id = ?`, resourceID)
	if err != nil {
		return 0, fmt.Errorf("delete resource %s: %w", resourceID, err)
	}
	return res.RowsAffected()
}
