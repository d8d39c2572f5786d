package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateRun creates a new pipeline run record and returns its ID
func (db *DB) CreateRun(ctx context.Context, trigger string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := db.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, trigger, status)
		 VALUES ($1, $2, $3)`,
		id, trigger, RunStatusRunning,
	)
	if err != nil {
		return uuid.Nil, persistErr("create run", err)
	}
	return id, nil
}

// CompleteRun stores the final status and counts of a run.
func (db *DB) CompleteRun(ctx context.Context, run *PipelineRun) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE pipeline_runs
		 SET status = $2, jobs_fetched = $3, matches_found = $4, emails_sent = $5,
		     message = $6, completed_at = NOW()
		 WHERE id = $1`,
		run.ID, run.Status, run.JobsFetched, run.MatchesFound, run.EmailsSent, run.Message,
	)
	if err != nil {
		return persistErr("complete run", err)
	}
	if tag.RowsAffected() == 0 {
		return &PersistenceError{Op: "complete run " + run.ID.String(), Cause: pgx.ErrNoRows}
	}
	return nil
}

// GetRun retrieves a pipeline run by ID
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*PipelineRun, error) {
	var r PipelineRun
	err := db.pool.QueryRow(ctx,
		`SELECT id, trigger, status, jobs_fetched, matches_found, emails_sent, message, started_at, completed_at
		 FROM pipeline_runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Trigger, &r.Status, &r.JobsFetched, &r.MatchesFound, &r.EmailsSent, &r.Message, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, persistErr("get run", err)
	}
	return &r, nil
}

// ListRuns retrieves recent pipeline runs
func (db *DB) ListRuns(ctx context.Context, limit int) ([]PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, trigger, status, jobs_fetched, matches_found, emails_sent, message, started_at, completed_at
		 FROM pipeline_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, persistErr("list runs", err)
	}
	defer rows.Close()

	var runs []PipelineRun
	for rows.Next() {
		var r PipelineRun
		if err := rows.Scan(&r.ID, &r.Trigger, &r.Status, &r.JobsFetched, &r.MatchesFound, &r.EmailsSent, &r.Message, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, persistErr("scan run", err)
		}
		runs = append(runs, r)
	}
	return runs, persistErr("list runs", rows.Err())
}
