package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// AlertedJobIDs returns the IDs of every job the user already has an alert
// for.
func (db *DB) AlertedJobIDs(ctx context.Context, userID int64) (map[int64]bool, error) {
	rows, err := db.pool.Query(ctx, `SELECT job_id FROM job_alerts WHERE user_id = $1`, userID)
	if err != nil {
		return nil, persistErr("list alerted jobs", err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, persistErr("scan alerted job", err)
		}
		ids[id] = true
	}
	return ids, persistErr("list alerted jobs", rows.Err())
}

// CommitMatches persists one user's match pass in a single transaction.
// jobs are inserted by URL, or have their embedding backfilled when the
// stored row has none. An alert is inserted for every match whose
// (user, job) pair has no alert yet; only those newly inserted alerts are
// returned. On error nothing is written.
func (db *DB) CommitMatches(ctx context.Context, userID int64, jobs []JobUpsert, matches []MatchInput) ([]Alert, error) {
	for _, j := range jobs {
		if len(j.Embedding) > 0 {
			if err := db.checkDims(j.Embedding); err != nil {
				return nil, &PersistenceError{Op: "commit matches", Cause: fmt.Errorf("job %s: %w", j.URL, err)}
			}
		}
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, persistErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make(map[string]int64, len(jobs)+len(matches))
	for _, j := range jobs {
		id, err := upsertJob(ctx, tx, j)
		if err != nil {
			return nil, persistErr("upsert job "+j.URL, err)
		}
		ids[j.URL] = id
	}

	if err := resolveJobIDs(ctx, tx, matches, ids); err != nil {
		return nil, persistErr("resolve job ids", err)
	}

	var alerts []Alert
	for _, m := range matches {
		jobID, ok := ids[m.URL]
		if !ok {
			return nil, &PersistenceError{Op: "commit matches", Cause: fmt.Errorf("job %s is not persisted", m.URL)}
		}

		a := Alert{UserID: userID, JobID: jobID, JobURL: m.URL, Score: m.Score}
		err := tx.QueryRow(ctx,
			`INSERT INTO job_alerts (user_id, job_id, score)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (user_id, job_id) DO NOTHING
			 RETURNING id, email_sent, created_at`,
			userID, jobID, m.Score,
		).Scan(&a.ID, &a.EmailSent, &a.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, persistErr("insert alert", err)
		}
		alerts = append(alerts, a)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistErr("commit matches", err)
	}
	return alerts, nil
}

func upsertJob(ctx context.Context, tx pgx.Tx, j JobUpsert) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx,
		`INSERT INTO jobs (title, company, location, description, url, source, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (url) DO UPDATE SET embedding = COALESCE(jobs.embedding, EXCLUDED.embedding)
		 RETURNING id`,
		j.Title, j.Company, j.Location, j.Description, j.URL, j.Source, toVector(j.Embedding),
	).Scan(&id)
	return id, err
}

// resolveJobIDs fills ids for matched URLs that were not upserted in this
// pass.
func resolveJobIDs(ctx context.Context, tx pgx.Tx, matches []MatchInput, ids map[string]int64) error {
	var missing []string
	for _, m := range matches {
		if _, ok := ids[m.URL]; !ok {
			missing = append(missing, m.URL)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	rows, err := tx.Query(ctx, `SELECT id, url FROM jobs WHERE url = ANY($1)`, missing)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id  int64
			url string
		)
		if err := rows.Scan(&id, &url); err != nil {
			return err
		}
		ids[url] = id
	}
	return rows.Err()
}

// MarkAlertsSent records a confirmed email for the user's alerts on jobIDs.
func (db *DB) MarkAlertsSent(ctx context.Context, userID int64, jobIDs []int64, sentAt time.Time) error {
	if len(jobIDs) == 0 {
		return nil
	}
	_, err := db.pool.Exec(ctx,
		`UPDATE job_alerts SET email_sent = TRUE, sent_at = $3
		 WHERE user_id = $1 AND job_id = ANY($2)`,
		userID, jobIDs, sentAt,
	)
	return persistErr("mark alerts sent", err)
}

// ListUnsentAlerts returns the user's alerts created at or after since
// whose email was never confirmed, oldest first, with their job details.
func (db *DB) ListUnsentAlerts(ctx context.Context, userID int64, since time.Time) ([]Alert, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT a.id, a.user_id, a.job_id, j.url, a.score, a.email_sent, a.sent_at, a.created_at,
		        j.title, j.company, j.location
		 FROM job_alerts a JOIN jobs j ON j.id = a.job_id
		 WHERE a.user_id = $1 AND NOT a.email_sent AND a.created_at >= $2
		 ORDER BY a.created_at, a.id`,
		userID, since,
	)
	if err != nil {
		return nil, persistErr("list unsent alerts", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.UserID, &a.JobID, &a.JobURL, &a.Score, &a.EmailSent, &a.SentAt, &a.CreatedAt,
			&a.JobTitle, &a.JobCompany, &a.JobLocation); err != nil {
			return nil, persistErr("scan alert", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, persistErr("list unsent alerts", rows.Err())
}
