package alert

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jonathan/smartapply/internal/db"
	"github.com/jonathan/smartapply/internal/matcher"
	"github.com/jonathan/smartapply/internal/observability"
	"go.uber.org/zap"
)

// Store records confirmed sends and finds earlier alerts that were never
// delivered. *db.DB implements it.
type Store interface {
	MarkAlertsSent(ctx context.Context, userID int64, jobIDs []int64, sentAt time.Time) error
	ListUnsentAlerts(ctx context.Context, userID int64, since time.Time) ([]db.Alert, error)
}

// Dispatcher sends one email per user and marks the alerts as sent.
type Dispatcher struct {
	notifier     Notifier
	store        Store
	logger       *zap.Logger
	metrics      *observability.Metrics
	now          func() time.Time
	resendWindow time.Duration
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(notifier Notifier, store Store, logger *zap.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		store:    store,
		logger:   observability.OrNop(logger),
		metrics:  metrics,
		now:      time.Now,
	}
}

// WithResendWindow makes Dispatch retry alerts younger than window whose
// email previously failed. Zero disables retries.
func (d *Dispatcher) WithResendWindow(window time.Duration) *Dispatcher {
	d.resendWindow = window
	return d
}

// Dispatch emails every user with new matches or undelivered alerts and
// returns the number of emails sent. Alerts are marked sent only after a
// successful send; a failure for one user does not affect the others.
func (d *Dispatcher) Dispatch(ctx context.Context, users []db.User, matches map[int64][]matcher.Match) int {
	ordered := make([]db.User, len(users))
	copy(ordered, users)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	sent := 0
	for _, user := range ordered {
		if ctx.Err() != nil {
			break
		}
		logger := d.logger.With(zap.Int64("user_id", user.ID))

		jobs, jobIDs := fromMatches(matches[user.ID])
		if d.resendWindow > 0 {
			retry := d.unsent(ctx, user.ID, jobIDs, logger)
			for _, a := range retry {
				jobs = append(jobs, fromAlert(a))
				jobIDs = append(jobIDs, a.JobID)
			}
			if len(retry) > 0 {
				logger.Info("retrying undelivered alerts", zap.Int("count", len(retry)))
			}
		}
		if len(jobs) == 0 {
			continue
		}

		err := d.notifier.Send(ctx, Recipient{Name: user.Name, Email: user.Email}, jobs)
		if err != nil {
			if errors.Is(err, ErrNotConfigured) {
				logger.Debug("alert email skipped", zap.Error(err))
			} else {
				logger.Warn("alert email failed", zap.Error(err))
				if d.metrics != nil {
					d.metrics.EmailFailures.Inc()
				}
			}
			continue
		}

		sent++
		if d.metrics != nil {
			d.metrics.EmailsSent.Inc()
		}
		if err := d.store.MarkAlertsSent(ctx, user.ID, jobIDs, d.now().UTC()); err != nil {
			logger.Warn("email sent but alerts not marked", zap.Error(err))
		}
	}
	return sent
}

// unsent returns the user's undelivered alerts inside the resend window
// that are not already part of this run's matches.
func (d *Dispatcher) unsent(ctx context.Context, userID int64, current []int64, logger *zap.Logger) []db.Alert {
	alerts, err := d.store.ListUnsentAlerts(ctx, userID, d.now().Add(-d.resendWindow))
	if err != nil {
		logger.Warn("failed to list undelivered alerts", zap.Error(err))
		return nil
	}

	skip := make(map[int64]bool, len(current))
	for _, id := range current {
		skip[id] = true
	}
	var out []db.Alert
	for _, a := range alerts {
		if !skip[a.JobID] {
			skip[a.JobID] = true
			out = append(out, a)
		}
	}
	return out
}

func fromMatches(matches []matcher.Match) ([]MatchedJob, []int64) {
	jobs := make([]MatchedJob, 0, len(matches))
	jobIDs := make([]int64, 0, len(matches))
	for _, m := range matches {
		jobs = append(jobs, MatchedJob{
			Title:    m.Job.Title,
			Company:  m.Job.Company,
			Location: m.Job.Location,
			URL:      m.Job.URL,
			Score:    m.Score,
		})
		jobIDs = append(jobIDs, m.JobID)
	}
	return jobs, jobIDs
}

func fromAlert(a db.Alert) MatchedJob {
	job := MatchedJob{Title: a.JobTitle, Company: a.JobCompany, URL: a.JobURL, Score: a.Score}
	if a.JobLocation != nil {
		job.Location = *a.JobLocation
	}
	return job
}
