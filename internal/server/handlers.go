package server

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jonathan/smartapply/internal/config"
	"github.com/jonathan/smartapply/internal/db"
	"github.com/jonathan/smartapply/internal/pipeline"
	"go.uber.org/zap"
)

// maxPagesParams maps query parameters to source names.
var maxPagesParams = map[string]string{
	"max_pages_gozambia":    config.SourceGoZambia,
	"max_pages_greatzambia": config.SourceGreatZambiaJobs,
}

// RunResponse is the JSON body returned by POST /run_pipeline.
type RunResponse struct {
	Status       string            `json:"status"`
	JobsFetched  int               `json:"jobs_fetched"`
	MatchesFound int               `json:"matches_found"`
	EmailsSent   int               `json:"emails_sent"`
	Message      string            `json:"message"`
	RunID        string            `json:"run_id,omitempty"`
	JobsBySource map[string]int    `json:"jobs_by_source,omitempty"`
	SourceErrors map[string]string `json:"source_errors,omitempty"`
}

func newRunResponse(s *pipeline.Summary) RunResponse {
	resp := RunResponse{
		Status:       s.Status,
		JobsFetched:  s.JobsFetched,
		MatchesFound: s.MatchesFound,
		EmailsSent:   s.EmailsSent,
		Message:      s.Message,
		JobsBySource: s.JobsBySource,
		SourceErrors: s.SourceErrors,
	}
	if s.RunID != uuid.Nil {
		resp.RunID = s.RunID.String()
	}
	return resp
}

// parseMaxPages reads the per-source page overrides from the query. Zero
// skips the source for this run.
func parseMaxPages(r *http.Request) (map[string]int, error) {
	out := make(map[string]int)
	q := r.URL.Query()
	for param, source := range maxPagesParams {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, &ErrValidation{Field: param, Message: "must be a non-negative integer"}
		}
		out[source] = n
	}
	return out, nil
}

// handleRunPipeline runs the pipeline synchronously and returns its summary.
func (s *Server) handleRunPipeline(w http.ResponseWriter, r *http.Request) {
	maxPages, err := parseMaxPages(r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	summary, err := s.runner.RunPipeline(r.Context(), pipeline.RunOptions{MaxPages: maxPages, Trigger: "http"})
	if err != nil {
		s.logger.Error("pipeline run failed", zap.Error(err))
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, newRunResponse(summary))
}

// handleRunPipelineStream runs the pipeline and streams progress as
// Server-Sent Events.
func (s *Server) handleRunPipelineStream(w http.ResponseWriter, r *http.Request) {
	maxPages, err := parseMaxPages(r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	stream, err := NewEventStream(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	summary, err := s.runner.RunPipeline(r.Context(), pipeline.RunOptions{
		MaxPages: maxPages,
		Trigger:  "http",
		OnProgress: func(event pipeline.ProgressEvent) {
			if werr := stream.Send(eventStep, event); werr != nil {
				s.logger.Debug("failed to write progress event", zap.Error(werr))
			}
		},
	})
	if err != nil {
		s.logger.Error("pipeline run failed", zap.Error(err))
		stream.Fail(err.Error())
		return
	}
	stream.Complete(newRunResponse(summary))
}

// handleListRuns lists recent pipeline runs.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 20)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list runs", zap.Error(err))
		s.errorResponse(w, HTTPStatus(err), "failed to list runs")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

// handleGetRun returns one pipeline run.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")
	runID, err := uuid.Parse(idStr)
	if err != nil {
		verr := &ErrValidation{Field: "id", Message: "invalid run ID"}
		s.errorResponse(w, HTTPStatus(verr), verr.Error())
		return
	}

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		s.logger.Error("failed to get run", zap.Error(err))
		s.errorResponse(w, HTTPStatus(err), "failed to get run")
		return
	}
	if run == nil {
		nf := &ErrRunNotFound{RunID: idStr}
		s.errorResponse(w, HTTPStatus(nf), nf.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleListJobs returns the most recently stored jobs, optionally for one
// source.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 50)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	source := r.URL.Query().Get("source")
	if source != "" && source != config.SourceGoZambia && source != config.SourceGreatZambiaJobs {
		verr := &ErrValidation{Field: "source", Message: "unknown source"}
		s.errorResponse(w, HTTPStatus(verr), verr.Error())
		return
	}

	jobs, err := s.store.ListRecentJobs(r.Context(), source, limit)
	if err != nil {
		s.logger.Error("failed to list jobs", zap.Error(err))
		s.errorResponse(w, HTTPStatus(err), "failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []db.Job{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

// parseLimit reads the limit query parameter, bounded to 1..500.
func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 500 {
		return 0, &ErrValidation{Field: "limit", Message: "must be between 1 and 500"}
	}
	return n, nil
}
