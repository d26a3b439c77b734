// Package history persists per-container run results in PostgreSQL so past
// analyses can be queried after the state file has moved on.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Run is one recorded container analysis.
type Run struct {
	RunID        string
	ContainerID  string
	PropertyID   string
	OldVersionID string
	NewVersionID string
	Rollback     bool
	ChangedCount int
	Impacted     bool
	Descriptions []string
	RanAt        time.Time
}

// Store writes runs to a PostgreSQL pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to the database, verifies the connection and creates the
// runs table if it is missing.
func Open(ctx context.Context, dsn string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse history DSN: %w", err)
	}
	config.MaxConns = 5
	config.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tagwatch_runs (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			container_id TEXT NOT NULL,
			property_id TEXT NOT NULL,
			old_version_id TEXT,
			new_version_id TEXT NOT NULL,
			rollback BOOLEAN NOT NULL DEFAULT FALSE,
			changed_count INTEGER NOT NULL DEFAULT 0,
			impacted BOOLEAN NOT NULL DEFAULT FALSE,
			descriptions JSONB,
			ran_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS tagwatch_runs_container_idx
			ON tagwatch_runs (container_id, ran_at DESC);
	`)
	return err
}

// RecordRun inserts one run.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	descriptions, err := json.Marshal(run.Descriptions)
	if err != nil {
		return fmt.Errorf("marshal descriptions: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO tagwatch_runs
			(run_id, container_id, property_id, old_version_id, new_version_id,
			 rollback, changed_count, impacted, descriptions, ran_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		run.RunID,
		run.ContainerID,
		run.PropertyID,
		run.OldVersionID,
		run.NewVersionID,
		run.Rollback,
		run.ChangedCount,
		run.Impacted,
		descriptions,
		run.RanAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecentRuns returns the latest runs for one container, newest first.
func (s *Store) RecentRuns(ctx context.Context, containerID string, limit int) ([]Run, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, container_id, property_id, old_version_id, new_version_id,
		       rollback, changed_count, impacted, descriptions, ran_at
		FROM tagwatch_runs
		WHERE container_id = $1
		ORDER BY ran_at DESC
		LIMIT $2
	`, containerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var descriptions []byte
		if err := rows.Scan(
			&run.RunID,
			&run.ContainerID,
			&run.PropertyID,
			&run.OldVersionID,
			&run.NewVersionID,
			&run.Rollback,
			&run.ChangedCount,
			&run.Impacted,
			&descriptions,
			&run.RanAt,
		); err != nil {
			return nil, err
		}
		if len(descriptions) > 0 {
			if err := json.Unmarshal(descriptions, &run.Descriptions); err != nil {
				return nil, fmt.Errorf("parse descriptions: %w", err)
			}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// LastRun returns the most recent run for a container, or pgx.ErrNoRows.
func (s *Store) LastRun(ctx context.Context, containerID string) (*Run, error) {
	runs, err := s.RecentRuns(ctx, containerID, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &runs[0], nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
