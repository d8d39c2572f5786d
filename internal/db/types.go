package db

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is an alert subscriber.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CVText    *string   `json:"cv_text,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HasCV reports whether the user has non-blank CV text.
func (u *User) HasCV() bool {
	return u.CVText != nil && strings.TrimSpace(*u.CVText) != ""
}

// Job is a persisted listing. URL is its identity.
type Job struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    *string   `json:"location,omitempty"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Embedding   []float32 `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// JobUpsert is a job to insert, or whose missing embedding to backfill.
type JobUpsert struct {
	Title       string
	Company     string
	Location    *string
	Description string
	URL         string
	Source      string
	Embedding   []float32
}

// MatchInput is a scored job to alert on, referenced by URL.
type MatchInput struct {
	URL   string
	Score float64
}

// Alert is a (user, job) match record. Its existence suppresses further
// scoring of the pair.
type Alert struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	JobID     int64      `json:"job_id"`
	JobURL    string     `json:"job_url"`
	Score     float64    `json:"score"`
	EmailSent bool       `json:"email_sent"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`

	// Job details, filled by ListUnsentAlerts.
	JobTitle    string  `json:"job_title,omitempty"`
	JobCompany  string  `json:"job_company,omitempty"`
	JobLocation *string `json:"job_location,omitempty"`
}

// Run status values
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusSkipped   = "skipped"
)

// PipelineRun is the bookkeeping row of one orchestrator run.
type PipelineRun struct {
	ID           uuid.UUID  `json:"id"`
	Trigger      string     `json:"trigger"`
	Status       string     `json:"status"`
	JobsFetched  int        `json:"jobs_fetched"`
	MatchesFound int        `json:"matches_found"`
	EmailsSent   int        `json:"emails_sent"`
	Message      string     `json:"message"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}
