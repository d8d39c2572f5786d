// Package pipeline orchestrates one job-alert run: scrape every source,
// deduplicate, match users and send alert emails.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/smartapply/internal/db"
	"github.com/jonathan/smartapply/internal/matcher"
	"github.com/jonathan/smartapply/internal/observability"
	"github.com/jonathan/smartapply/internal/scraper"
	"go.uber.org/zap"
)

// Summary messages
const (
	MessageNoJobs     = "No jobs found to process from any source"
	MessageInProgress = "A pipeline run is already in progress"
)

// Progress steps
const (
	StepScrape = "scrape"
	StepMatch  = "match"
	StepAlert  = "alert"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// RunOptions holds per-run settings.
type RunOptions struct {
	// MaxPages overrides the page limit per source name.
	MaxPages map[string]int
	// Trigger names what started the run (http, cron, cli).
	Trigger    string
	OnProgress ProgressCallback
}

// Summary is the result of a run.
type Summary struct {
	RunID        uuid.UUID         `json:"run_id"`
	Status       string            `json:"status"`
	JobsFetched  int               `json:"jobs_fetched"`
	MatchesFound int               `json:"matches_found"`
	EmailsSent   int               `json:"emails_sent"`
	Message      string            `json:"message"`
	JobsBySource map[string]int    `json:"jobs_by_source,omitempty"`
	SourceErrors map[string]string `json:"source_errors,omitempty"`
}

// Report converts the summary for the console printer.
func (s *Summary) Report() *observability.RunReport {
	return &observability.RunReport{
		RunID:        s.RunID.String(),
		Status:       s.Status,
		Message:      s.Message,
		JobsFetched:  s.JobsFetched,
		MatchesFound: s.MatchesFound,
		EmailsSent:   s.EmailsSent,
		JobsBySource: s.JobsBySource,
		SourceErrors: s.SourceErrors,
	}
}

// Store is the run bookkeeping and user listing the orchestrator needs.
type Store interface {
	CreateRun(ctx context.Context, trigger string) (uuid.UUID, error)
	CompleteRun(ctx context.Context, run *db.PipelineRun) error
	ListUsersWithCV(ctx context.Context) ([]db.User, error)
}

// Matcher matches candidates against users.
type Matcher interface {
	MatchAllUsers(ctx context.Context, users []db.User, candidates []scraper.RawJob) (map[int64][]matcher.Match, matcher.Stats)
}

// Dispatcher sends alert emails and returns how many were sent.
type Dispatcher interface {
	Dispatch(ctx context.Context, users []db.User, matches map[int64][]matcher.Match) int
}

// Options configures an Orchestrator.
type Options struct {
	Scrapers   []*scraper.Scraper
	Store      Store
	Matcher    Matcher
	Dispatcher Dispatcher
	// Locker is optional; without it runs are not serialised.
	Locker     Locker
	LockTTL    time.Duration
	RunTimeout time.Duration
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// Orchestrator runs the pipeline.
type Orchestrator struct {
	opts   Options
	logger *zap.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.LockTTL <= 0 {
		opts.LockTTL = time.Hour
	}
	return &Orchestrator{opts: opts, logger: observability.OrNop(opts.Logger)}
}

// emitProgress calls the progress callback if configured
func emitProgress(opts RunOptions, runID uuid.UUID, step, message string) {
	if opts.OnProgress != nil {
		opts.OnProgress(ProgressEvent{Step: step, Message: message, RunID: runID.String()})
	}
}

// RunPipeline scrapes all sources, matches every user with a CV and sends
// alerts. Source, user and email failures are isolated and reflected in
// the summary. An error is returned only for failures that stop the run
// as a whole, such as being unable to list users.
func (o *Orchestrator) RunPipeline(ctx context.Context, opts RunOptions) (*Summary, error) {
	start := time.Now()
	if o.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.RunTimeout)
		defer cancel()
	}

	if o.opts.Locker != nil {
		release, err := o.opts.Locker.Acquire(ctx, o.opts.LockTTL)
		if errors.Is(err, ErrRunInProgress) {
			o.logger.Info("pipeline run skipped, another run holds the lock")
			o.countRun(db.RunStatusSkipped, start)
			return &Summary{Status: db.RunStatusSkipped, Message: MessageInProgress}, nil
		}
		if err != nil {
			return nil, err
		}
		defer release()
	}

	runID, err := o.opts.Store.CreateRun(ctx, opts.Trigger)
	if err != nil {
		o.logger.Warn("failed to create run record, continuing without it", zap.Error(err))
		runID = uuid.Nil
	}
	logger := o.logger.With(zap.String("run_id", runID.String()))
	logger.Info("starting job matching pipeline", zap.String("trigger", opts.Trigger))

	summary, err := o.run(ctx, logger, runID, opts)
	status := db.RunStatusFailed
	if summary != nil {
		status = summary.Status
	}
	o.countRun(status, start)

	if runID != uuid.Nil {
		record := &db.PipelineRun{ID: runID, Status: status}
		if summary != nil {
			record.JobsFetched = summary.JobsFetched
			record.MatchesFound = summary.MatchesFound
			record.EmailsSent = summary.EmailsSent
			record.Message = summary.Message
		} else {
			record.Message = err.Error()
		}
		// Record completion even when the run context is done.
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if cerr := o.opts.Store.CompleteRun(recCtx, record); cerr != nil {
			logger.Warn("failed to complete run record", zap.Error(cerr))
		}
		cancel()
	}

	if err != nil {
		logger.Error("pipeline failed", zap.Error(err))
		return nil, err
	}
	logger.Info("pipeline finished",
		zap.Int("jobs", summary.JobsFetched),
		zap.Int("matches", summary.MatchesFound),
		zap.Int("emails", summary.EmailsSent),
		zap.Duration("elapsed", time.Since(start)))
	return summary, nil
}

func (o *Orchestrator) run(ctx context.Context, logger *zap.Logger, runID uuid.UUID, opts RunOptions) (*Summary, error) {
	summary := &Summary{RunID: runID, Status: db.RunStatusCompleted}

	emitProgress(opts, runID, StepScrape, "Fetching jobs from all sources")
	res := scraper.ScrapeAll(ctx, o.opts.Scrapers, opts.MaxPages, logger, o.opts.Metrics)
	batches := make([][]scraper.RawJob, 0, len(res.Sources))
	for _, s := range res.Sources {
		batches = append(batches, s.Jobs)
	}
	jobs := scraper.Merge(batches...)

	summary.JobsFetched = len(jobs)
	summary.JobsBySource = countBySource(jobs)
	if errs := res.Errors(); len(errs) > 0 {
		summary.SourceErrors = errs
	}
	logger.Info("fetched jobs", zap.Int("unique", len(jobs)), zap.Any("by_source", summary.JobsBySource))

	if len(jobs) == 0 {
		summary.Message = MessageNoJobs
		return summary, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline cancelled after scraping: %w", err)
	}

	emitProgress(opts, runID, StepMatch, fmt.Sprintf("Matching %d jobs for users", len(jobs)))
	users, err := o.opts.Store.ListUsersWithCV(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	matches, stats := o.opts.Matcher.MatchAllUsers(ctx, users, jobs)
	summary.MatchesFound = stats.Matches
	logger.Info("matched users",
		zap.Int("users", stats.Users),
		zap.Int("users_failed", stats.UsersFailed),
		zap.Int("matches", stats.Matches),
		zap.Int64("embedding_calls", stats.EmbeddingCalls))

	emitProgress(opts, runID, StepAlert, fmt.Sprintf("Sending alerts for %d users", len(matches)))
	summary.EmailsSent = o.opts.Dispatcher.Dispatch(ctx, users, matches)

	summary.Message = fmt.Sprintf("Successfully processed %d jobs from %d sources, found %d matches, sent %d emails",
		summary.JobsFetched, len(summary.JobsBySource), summary.MatchesFound, summary.EmailsSent)
	return summary, nil
}

func (o *Orchestrator) countRun(status string, start time.Time) {
	if o.opts.Metrics == nil {
		return
	}
	o.opts.Metrics.PipelineRuns.WithLabelValues(status).Inc()
	o.opts.Metrics.RunDuration.Observe(time.Since(start).Seconds())
}

func countBySource(jobs []scraper.RawJob) map[string]int {
	counts := make(map[string]int)
	for _, j := range jobs {
		counts[j.Source]++
	}
	return counts
}
