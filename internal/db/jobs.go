package db

import (
	"context"

	"github.com/pgvector/pgvector-go"
)

// GetJobsByURL returns the persisted jobs among urls, keyed by URL.
func (db *DB) GetJobsByURL(ctx context.Context, urls []string) (map[string]*Job, error) {
	jobs := make(map[string]*Job)
	if len(urls) == 0 {
		return jobs, nil
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, title, company, location, description, url, source, embedding, created_at
		 FROM jobs WHERE url = ANY($1)`,
		urls,
	)
	if err != nil {
		return nil, persistErr("get jobs", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			j Job
			v *pgvector.Vector
		)
		if err := rows.Scan(&j.ID, &j.Title, &j.Company, &j.Location, &j.Description,
			&j.URL, &j.Source, &v, &j.CreatedAt); err != nil {
			return nil, persistErr("scan job", err)
		}
		j.Embedding = fromVector(v)
		jobs[j.URL] = &j
	}
	return jobs, persistErr("get jobs", rows.Err())
}

// ListRecentJobs returns the newest jobs, optionally filtered by source.
func (db *DB) ListRecentJobs(ctx context.Context, source string, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, title, company, location, description, url, source, created_at
		 FROM jobs
		 WHERE $1 = '' OR source = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		source, limit,
	)
	if err != nil {
		return nil, persistErr("list jobs", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.Title, &j.Company, &j.Location, &j.Description,
			&j.URL, &j.Source, &j.CreatedAt); err != nil {
			return nil, persistErr("scan job", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, persistErr("list jobs", rows.Err())
}
