//go:build integration

package db

import (
	"context"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := Connect(ctx, dsn, 2)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	schema, err := os.ReadFile("schema.sql")
	require.NoError(t, err)
	_, err = db.pool.Exec(ctx, string(schema))
	require.NoError(t, err)

	return db
}

func createTestUser(t *testing.T, db *DB, cv string) *User {
	t.Helper()
	u, err := db.CreateUser(context.Background(), "Test User", uuid.NewString()+"@test.example.com", &cv)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.pool.Exec(context.Background(), "DELETE FROM users WHERE id = $1", u.ID)
	})
	return u
}

func testJobURL() string {
	return "https://test.example.com/jobs/" + uuid.NewString()
}

func cleanupJobs(t *testing.T, db *DB, urls ...string) {
	t.Helper()
	t.Cleanup(func() {
		_, _ = db.pool.Exec(context.Background(), "DELETE FROM jobs WHERE url = ANY($1)", urls)
	})
}

func TestIntegration_CVEmbedding(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()
	user := createTestUser(t, db, "Backend engineer")

	got, err := db.GetCVEmbedding(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, db.SaveCVEmbedding(ctx, user.ID, []float32{1, 0}))
	require.NoError(t, db.SaveCVEmbedding(ctx, user.ID, []float32{0, 1}))

	got, err = db.GetCVEmbedding(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, got)

	err = db.SaveCVEmbedding(ctx, user.ID, []float32{1, 2, 3})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	require.NoError(t, db.UpdateCV(ctx, user.ID, "Data engineer"))
	got, err = db.GetCVEmbedding(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIntegration_ListUsersWithCV(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	withCV := createTestUser(t, db, "Accountant")
	blank := createTestUser(t, db, "   ")

	users, err := db.ListUsersWithCV(ctx)
	require.NoError(t, err)

	ids := make(map[int64]bool)
	for _, u := range users {
		ids[u.ID] = true
	}
	assert.True(t, ids[withCV.ID])
	assert.False(t, ids[blank.ID])
}

func TestIntegration_CommitMatches(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()
	user := createTestUser(t, db, "Driver")

	matched, unmatched := testJobURL(), testJobURL()
	cleanupJobs(t, db, matched, unmatched)

	jobs := []JobUpsert{
		{Title: "Truck Driver", Company: "Unknown", Description: "Heavy goods", URL: matched, Source: "gozambia", Embedding: []float32{1, 0}},
		{Title: "Nurse", Company: "Unknown", URL: unmatched, Source: "gozambia"},
	}
	alerts, err := db.CommitMatches(ctx, user.ID, jobs, []MatchInput{{URL: matched, Score: 0.91}})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, matched, alerts[0].JobURL)
	assert.False(t, alerts[0].EmailSent)

	stored, err := db.GetJobsByURL(ctx, []string{matched, unmatched})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, []float32{1, 0}, stored[matched].Embedding)
	assert.Nil(t, stored[unmatched].Embedding)

	t.Run("second commit inserts no duplicate alert", func(t *testing.T) {
		again, err := db.CommitMatches(ctx, user.ID, nil, []MatchInput{{URL: matched, Score: 0.95}})
		require.NoError(t, err)
		assert.Empty(t, again)

		alerted, err := db.AlertedJobIDs(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, map[int64]bool{stored[matched].ID: true}, alerted)
	})

	t.Run("backfill only fills missing embedding", func(t *testing.T) {
		_, err := db.CommitMatches(ctx, user.ID, []JobUpsert{
			{Title: "Nurse", Company: "Unknown", URL: unmatched, Source: "gozambia", Embedding: []float32{0, 1}},
			{Title: "Truck Driver", Company: "Unknown", URL: matched, Source: "gozambia", Embedding: []float32{0.5, 0.5}},
		}, nil)
		require.NoError(t, err)

		stored, err := db.GetJobsByURL(ctx, []string{matched, unmatched})
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0}, stored[matched].Embedding)
		assert.Equal(t, []float32{0, 1}, stored[unmatched].Embedding)
	})

	t.Run("unknown job fails the whole commit", func(t *testing.T) {
		extra := testJobURL()
		cleanupJobs(t, db, extra)

		_, err := db.CommitMatches(ctx, user.ID,
			[]JobUpsert{{Title: "Clerk", Company: "Unknown", URL: extra, Source: "gozambia"}},
			[]MatchInput{{URL: "https://test.example.com/missing", Score: 0.8}})
		var pe *PersistenceError
		require.ErrorAs(t, err, &pe)

		stored, err := db.GetJobsByURL(ctx, []string{extra})
		require.NoError(t, err)
		assert.Empty(t, stored)
	})

	t.Run("mark sent", func(t *testing.T) {
		since := time.Now().Add(-time.Hour)
		unsent, err := db.ListUnsentAlerts(ctx, user.ID, since)
		require.NoError(t, err)
		require.Len(t, unsent, 1)
		assert.Equal(t, "Truck Driver", unsent[0].JobTitle)
		assert.Equal(t, matched, unsent[0].JobURL)

		later, err := db.ListUnsentAlerts(ctx, user.ID, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, later)

		sentAt := time.Now().UTC().Truncate(time.Second)
		require.NoError(t, db.MarkAlertsSent(ctx, user.ID, []int64{stored[matched].ID}, sentAt))

		unsent, err = db.ListUnsentAlerts(ctx, user.ID, since)
		require.NoError(t, err)
		assert.Empty(t, unsent)
	})
}

func TestIntegration_ListRecentJobs(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()
	user := createTestUser(t, db, "Accountant")

	first, second := testJobURL(), testJobURL()
	cleanupJobs(t, db, first, second)

	_, err := db.CommitMatches(ctx, user.ID, []JobUpsert{
		{Title: "Accountant", Company: "Zesco", URL: first, Source: "gozambia"},
		{Title: "Clerk", Company: "Unknown", URL: second, Source: "greatzambiajobs"},
	}, nil)
	require.NoError(t, err)

	jobs, err := db.ListRecentJobs(ctx, "greatzambiajobs", 500)
	require.NoError(t, err)
	urls := make([]string, 0, len(jobs))
	for _, j := range jobs {
		assert.Equal(t, "greatzambiajobs", j.Source)
		urls = append(urls, j.URL)
	}
	assert.Contains(t, urls, second)
	assert.NotContains(t, urls, first)

	jobs, err = db.ListRecentJobs(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestIntegration_PipelineRuns(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	id, err := db.CreateRun(ctx, "test")
	require.NoError(t, err)
	defer func() { _, _ = db.pool.Exec(ctx, "DELETE FROM pipeline_runs WHERE id = $1", id) }()

	run, err := db.GetRun(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Nil(t, run.CompletedAt)

	require.NoError(t, db.CompleteRun(ctx, &PipelineRun{
		ID: id, Status: RunStatusCompleted, JobsFetched: 12, MatchesFound: 3, EmailsSent: 1, Message: "done",
	}))

	run, err = db.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 12, run.JobsFetched)
	assert.NotNil(t, run.CompletedAt)

	missing, err := db.GetRun(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestIntegration_MigrateLegacyEmbeddings(t *testing.T) {
	base := getTestDB(t)
	defer base.Close()
	ctx := context.Background()

	u, err := url.Parse(os.Getenv("TEST_DATABASE_URL"))
	if err != nil || u.Scheme == "" {
		t.Skip("TEST_DATABASE_URL is not a URL, cannot set search_path")
	}
	schema := "legacy_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	_, err = base.pool.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = base.pool.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
	})

	q := u.Query()
	q.Set("search_path", schema+",public")
	u.RawQuery = q.Encode()
	db, err := Connect(ctx, u.String(), 2)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.pool.Exec(ctx, `
		CREATE TABLE cv_embeddings (user_id BIGINT PRIMARY KEY, embedding TEXT NOT NULL);
		CREATE TABLE jobs (id BIGINT PRIMARY KEY, embedding TEXT);
		INSERT INTO cv_embeddings VALUES (1, '[1, 0]'), (2, 'not json');
		INSERT INTO jobs VALUES (10, '[0, 1]'), (11, NULL), (12, '[1, 2, 3]');`)
	require.NoError(t, err)

	results, err := db.MigrateLegacyEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []LegacyResult{
		{Table: "cv_embeddings", Converted: 1, Dropped: 1},
		{Table: "jobs", Converted: 1, Dropped: 1},
	}, results)

	got, err := db.GetCVEmbedding(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, got)

	got, err = db.GetCVEmbedding(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, got)

	results, err = db.MigrateLegacyEmbeddings(ctx)
	require.NoError(t, err)
	for _, r := range results {
		assert.True(t, r.AlreadyVector, r.Table)
	}
}
