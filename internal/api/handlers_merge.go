package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dgallion1/bookweave/internal/assemble"
	"github.com/dgallion1/bookweave/internal/doctree"
	"github.com/dgallion1/bookweave/internal/pipeline"
	"github.com/dgallion1/bookweave/internal/proposal"
	"github.com/dgallion1/bookweave/internal/weave"
	"github.com/go-chi/chi/v5"
)

type mergeRequest struct {
	Base      *doctree.Source   `json:"base"`
	Secondary *doctree.Source   `json:"secondary"`
	Tags      *proposal.TagSet  `json:"tags,omitempty"`
	Hints     *proposal.HintSet `json:"hints,omitempty"`
	Strategy  string            `json:"strategy,omitempty"`
	Generate  string            `json:"generate,omitempty"`
	Force     bool              `json:"force,omitempty"`
	Labels    assemble.Labels   `json:"labels"`
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var body mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonError(w, fmt.Sprintf("request exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.Base == nil || body.Secondary == nil {
		jsonError(w, weave.ErrMissingSource.Error(), http.StatusBadRequest)
		return
	}

	strategy, err := weave.ParseStrategy(body.Strategy)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	generate, err := pipeline.ParseGenerate(body.Generate)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if generate != pipeline.GenerateNone && !s.orchestrator.OracleEnabled() {
		jsonError(w, "generate requires the oracle, which is disabled", http.StatusBadRequest)
		return
	}

	job := pipeline.NewJob(pipeline.Request{
		Base:      body.Base,
		Secondary: body.Secondary,
		Tags:      body.Tags,
		Hints:     body.Hints,
		Strategy:  strategy,
		Labels:    body.Labels,
		Generate:  generate,
		Force:     body.Force,
	})
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	s.log.Info("merge queued",
		"job_id", job.ID,
		"run_id", job.RunID,
		"base", body.Base.ID,
		"secondary", body.Secondary.ID,
		"strategy", strategy,
		"generate", generate,
	)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":   job.ID,
		"run_id":   job.RunID,
		"status":   string(pipeline.StatusQueued),
		"poll_url": fmt.Sprintf("/api/merge/%s/status", job.ID),
	})
}

func (s *Server) handleMergeStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// mergeResult looks up a finished job. It writes the error response and
// returns nil when the job is unknown or has no result yet.
func (s *Server) mergeResult(w http.ResponseWriter, r *http.Request) *weave.Result {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return nil
	}
	res := job.Result()
	if res == nil {
		snap := job.Snapshot()
		jsonError(w, fmt.Sprintf("job has no result (status %s)", snap.Status), http.StatusConflict)
		return nil
	}
	return res
}

func (s *Server) handleMergeDocument(w http.ResponseWriter, r *http.Request) {
	res := s.mergeResult(w, r)
	if res == nil {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(res.Document.Text))
}

func (s *Server) handleMergeManifest(w http.ResponseWriter, r *http.Request) {
	res := s.mergeResult(w, r)
	if res == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":   res.RunID,
		"mode":     res.Mode,
		"manifest": res.Document.Manifest,
	})
}

func (s *Server) handleMergeReport(w http.ResponseWriter, r *http.Request) {
	res := s.mergeResult(w, r)
	if res == nil {
		return
	}
	writeJSON(w, http.StatusOK, res.Report)
}
