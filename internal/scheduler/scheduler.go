// Package scheduler runs the job-alert pipeline on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonathan/smartapply/internal/db"
	"github.com/jonathan/smartapply/internal/observability"
	"github.com/jonathan/smartapply/internal/pipeline"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner executes one pipeline run.
type Runner interface {
	RunPipeline(ctx context.Context, opts pipeline.RunOptions) (*pipeline.Summary, error)
}

// Scheduler wraps robfig/cron and triggers pipeline runs.
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	maxPages map[string]int
	spec     string
	logger   *zap.Logger

	// running serializes the startup run with cron ticks.
	running sync.Mutex
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// New creates a Scheduler that fires every interval. maxPages holds the
// per-source page limits passed to each run.
func New(runner Runner, interval time.Duration, maxPages map[string]int, logger *zap.Logger) *Scheduler {
	logger = observability.OrNop(logger).Named("scheduler")
	cronLog := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.SkipIfStillRunning(cronLog))),
		runner:   runner,
		maxPages: maxPages,
		spec:     fmt.Sprintf("@every %s", interval),
		logger:   logger,
	}
}

// Spec returns the cron spec in use.
func (s *Scheduler) Spec() string {
	return s.spec
}

// Start registers the job, starts the cron loop and runs the pipeline
// once immediately without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	if _, err := s.cron.AddFunc(s.spec, func() { s.runOnce(ctx, "cron") }); err != nil {
		s.cancel()
		return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("cron started", zap.String("spec", s.spec))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runOnce(ctx, "startup")
	}()
	return nil
}

// Stop stops scheduling, cancels a run in progress and waits for it.
func (s *Scheduler) Stop() {
	cronCtx := s.cron.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	<-cronCtx.Done()
	s.wg.Wait()
	s.logger.Info("cron stopped")
}

func (s *Scheduler) runOnce(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	if !s.running.TryLock() {
		s.logger.Info("previous run still in progress, skipping", zap.String("trigger", trigger))
		return
	}
	defer s.running.Unlock()
	s.logger.Info("scheduled run started", zap.String("trigger", trigger))

	summary, err := s.runner.RunPipeline(ctx, pipeline.RunOptions{MaxPages: s.maxPages, Trigger: trigger})
	switch {
	case err != nil:
		s.logger.Error("scheduled run failed", zap.Error(err))
	case summary.Status == db.RunStatusSkipped:
		s.logger.Info("scheduled run skipped", zap.String("reason", summary.Message))
	default:
		s.logger.Info("scheduled run complete",
			zap.String("status", summary.Status),
			zap.String("message", summary.Message))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
