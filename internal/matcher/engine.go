// Package matcher scores scraped jobs against user CVs and records new
// matches. A (user, job) pair is scored at most once: once an alert exists
// for it the job is skipped for that user without any embedding work.
package matcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonathan/smartapply/internal/db"
	"github.com/jonathan/smartapply/internal/embedding"
	"github.com/jonathan/smartapply/internal/ingestion"
	"github.com/jonathan/smartapply/internal/observability"
	"github.com/jonathan/smartapply/internal/ranking"
	"github.com/jonathan/smartapply/internal/scraper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Store is the persistence the engine needs. *db.DB implements it.
type Store interface {
	GetCVEmbedding(ctx context.Context, userID int64) ([]float32, error)
	SaveCVEmbedding(ctx context.Context, userID int64, embedding []float32) error
	GetJobsByURL(ctx context.Context, urls []string) (map[string]*db.Job, error)
	AlertedJobIDs(ctx context.Context, userID int64) (map[int64]bool, error)
	CommitMatches(ctx context.Context, userID int64, jobs []db.JobUpsert, matches []db.MatchInput) ([]db.Alert, error)
	ListUsersWithCV(ctx context.Context) ([]db.User, error)
}

// Match is a newly recorded alert for a user.
type Match struct {
	UserID  int64
	JobID   int64
	AlertID int64
	Job     scraper.RawJob
	Score   float64
}

// Stats summarises a MatchAllUsers call.
type Stats struct {
	Users          int
	UsersFailed    int
	Matches        int
	EmbeddingCalls int64
}

// Options configures an Engine.
type Options struct {
	Threshold   float64
	Concurrency int
	CacheSize   int
	Normalizer  ingestion.Normalizer
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// Engine matches jobs to users.
type Engine struct {
	store       Store
	provider    embedding.Provider
	normalizer  ingestion.Normalizer
	threshold   float64
	concurrency int
	catalog     *catalog
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// NewEngine creates an Engine. A zero threshold uses
// ranking.DefaultThreshold.
func NewEngine(store Store, provider embedding.Provider, opts Options) (*Engine, error) {
	if opts.Threshold <= 0 {
		opts.Threshold = ranking.DefaultThreshold
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Normalizer.MaxEmbedLength == 0 {
		opts.Normalizer = ingestion.DefaultNormalizer()
	}
	cat, err := newCatalog(provider, opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &Engine{
		store:       store,
		provider:    provider,
		normalizer:  opts.Normalizer,
		threshold:   opts.Threshold,
		concurrency: opts.Concurrency,
		catalog:     cat,
		logger:      observability.OrNop(opts.Logger),
		metrics:     opts.Metrics,
	}, nil
}

// EmbeddingCalls returns the job embedding calls made so far.
func (e *Engine) EmbeddingCalls() int64 {
	return e.catalog.Calls()
}

// MatchForUser scores candidates against the user's CV and returns the
// alerts created by this call, highest score first. A user without CV
// text yields no matches and no provider calls. Errors come from the
// store (*db.PersistenceError) or the CV embedding (*embedding.Error);
// nothing is recorded for the user when one is returned.
func (e *Engine) MatchForUser(ctx context.Context, user db.User, candidates []scraper.RawJob) ([]Match, error) {
	if !user.HasCV() {
		return nil, nil
	}
	logger := e.logger.With(zap.Int64("user_id", user.ID))

	cv, err := e.cvEmbedding(ctx, user, logger)
	if err != nil || cv == nil {
		return nil, err
	}

	alerted, err := e.store.AlertedJobIDs(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		urls = append(urls, c.URL)
	}
	persisted, err := e.store.GetJobsByURL(ctx, urls)
	if err != nil {
		return nil, err
	}

	var (
		upserts []db.JobUpsert
		pending []db.MatchInput
		byURL   = make(map[string]scraper.RawJob, len(candidates))
	)
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stored := persisted[c.URL]
		if stored != nil && alerted[stored.ID] {
			continue
		}
		byURL[c.URL] = c

		var vec []float32
		if stored != nil {
			vec = stored.Embedding
		}
		if vec == nil {
			vec, err = e.catalog.Embed(ctx, c.URL, e.jobText(c))
			e.countEmbedding("job", err)
			if err != nil {
				logger.Warn("job embedding failed, skipping job", zap.String("url", c.URL), zap.Error(err))
				if stored == nil {
					upserts = append(upserts, toUpsert(c, nil))
				}
				continue
			}
			upserts = append(upserts, toUpsert(c, vec))
		}

		score := ranking.Cosine(cv, vec)
		if ranking.IsMatch(score, e.threshold) {
			pending = append(pending, db.MatchInput{URL: c.URL, Score: score})
		}
	}

	if len(upserts) == 0 && len(pending) == 0 {
		return nil, nil
	}

	alerts, err := e.store.CommitMatches(ctx, user.ID, upserts, pending)
	if err != nil {
		logger.Warn("failed to persist matches", zap.Error(err))
		return nil, err
	}

	matches := make([]Match, 0, len(alerts))
	for _, a := range alerts {
		matches = append(matches, Match{
			UserID:  user.ID,
			JobID:   a.JobID,
			AlertID: a.ID,
			Job:     byURL[a.JobURL],
			Score:   a.Score,
		})
	}
	ranking.SortByScore(matches, func(m Match) float64 { return m.Score })

	if e.metrics != nil {
		e.metrics.MatchesCreated.Add(float64(len(matches)))
	}
	logger.Info("user matched", zap.Int("candidates", len(candidates)), zap.Int("matches", len(matches)))
	return matches, nil
}

// cvEmbedding returns the stored CV embedding, computing and storing it
// when absent. A CV that normalises to nothing yields nil.
func (e *Engine) cvEmbedding(ctx context.Context, user db.User, logger *zap.Logger) ([]float32, error) {
	vec, err := e.store.GetCVEmbedding(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if vec != nil {
		return vec, nil
	}

	text := e.normalizer.ForEmbedding(*user.CVText)
	if text == "" {
		return nil, nil
	}
	vec, err = e.provider.Embed(ctx, text)
	e.countEmbedding("cv", err)
	if err != nil {
		logger.Warn("cv embedding failed, skipping user", zap.Error(err))
		return nil, err
	}
	if err := e.store.SaveCVEmbedding(ctx, user.ID, vec); err != nil {
		logger.Warn("failed to store cv embedding", zap.Error(err))
	}
	return vec, nil
}

func (e *Engine) jobText(j scraper.RawJob) string {
	return e.normalizer.ForEmbedding(j.Title + " " + j.Description)
}

func (e *Engine) countEmbedding(kind string, err error) {
	if e.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	e.metrics.EmbeddingCalls.WithLabelValues(kind, result).Inc()
}

func toUpsert(j scraper.RawJob, vec []float32) db.JobUpsert {
	var location *string
	if j.Location != "" {
		loc := j.Location
		location = &loc
	}
	return db.JobUpsert{
		Title:       j.Title,
		Company:     j.Company,
		Location:    location,
		Description: j.Description,
		URL:         j.URL,
		Source:      j.Source,
		Embedding:   vec,
	}
}

// MatchAllUsers matches every user concurrently. A failing user is logged
// and counted; other users are unaffected. Users without matches are
// absent from the result.
func (e *Engine) MatchAllUsers(ctx context.Context, users []db.User, candidates []scraper.RawJob) (map[int64][]Match, Stats) {
	var (
		mu      sync.Mutex
		results = make(map[int64][]Match)
		stats   = Stats{Users: len(users)}
	)
	before := e.catalog.Calls()

	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)
	for _, u := range users {
		g.Go(func() error {
			matches, err := e.MatchForUser(ctx, u, candidates)
			if e.metrics != nil {
				e.metrics.UsersProcessed.Inc()
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.logger.Warn("matching failed for user", zap.Int64("user_id", u.ID), zap.Error(err))
				stats.UsersFailed++
				return nil
			}
			if len(matches) > 0 {
				results[u.ID] = matches
				stats.Matches += len(matches)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.EmbeddingCalls = e.catalog.Calls() - before
	return results, stats
}
