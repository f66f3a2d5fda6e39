package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dgallion1/bookweave/internal/pathstore"
	"github.com/go-chi/chi/v5"
)

var runParts = map[string]bool{"meta": true, "manifest": true, "report": true}

// requireRuns writes 503 and returns false when persistence is off.
func (s *Server) requireRuns(w http.ResponseWriter) bool {
	if s.runs == nil {
		jsonError(w, "run persistence is disabled", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// handleListRuns lists the metadata of every stored run.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireRuns(w) {
		return
	}
	children, err := s.runs.ListChildren(r.Context(), pathstore.Prefix+"/runs", 200)
	if err != nil {
		jsonError(w, "failed to list runs: "+err.Error(), http.StatusBadGateway)
		return
	}

	runs := []map[string]any{}
	for _, child := range children {
		if pathstore.LastSegment(child.Key) != "meta" {
			continue
		}
		runs = append(runs, map[string]any{
			"run_id": runIDFromKey(child.Key),
			"meta":   child.Value,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleGetRun returns one stored part of a run.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireRuns(w) {
		return
	}
	runID, part := chi.URLParam(r, "runID"), chi.URLParam(r, "part")
	if !runParts[part] {
		jsonError(w, "unknown run part: "+part, http.StatusNotFound)
		return
	}

	node, err := s.runs.GetNode(r.Context(), pathstore.RunKey(runID, part))
	if err != nil {
		jsonError(w, "failed to read run: "+err.Error(), http.StatusBadGateway)
		return
	}
	if node == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(node.Value)
}

// handleDeleteRun removes a run and its hash index entry, so the same
// input can be merged again without force.
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireRuns(w) {
		return
	}
	ctx := r.Context()
	runID := chi.URLParam(r, "runID")

	meta, err := s.runs.GetNode(ctx, pathstore.RunKey(runID, "meta"))
	if err != nil {
		jsonError(w, "failed to read run: "+err.Error(), http.StatusBadGateway)
		return
	}
	if meta == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}

	hashDeleted := s.deleteHashIndex(ctx, runID, meta.Value)
	if err := s.runs.DeleteNode(ctx, pathstore.Prefix+"/runs/"+runID, true); err != nil {
		jsonError(w, "failed to delete run: "+err.Error(), http.StatusBadGateway)
		return
	}

	s.log.Info("run deleted", "run_id", runID, "hash_index_deleted", hashDeleted)
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":             runID,
		"deleted":            true,
		"hash_index_deleted": hashDeleted,
	})
}

func (s *Server) deleteHashIndex(ctx context.Context, runID string, metaValue json.RawMessage) bool {
	var meta struct {
		InputHash string `json:"input_hash"`
	}
	if err := json.Unmarshal(metaValue, &meta); err != nil || meta.InputHash == "" {
		return false
	}
	if err := s.runs.DeleteNode(ctx, pathstore.HashKey(meta.InputHash)+"/"+runID, false); err != nil {
		s.log.Warn("hash index delete failed", "run_id", runID, "error", err)
		return false
	}
	return true
}

// runIDFromKey extracts the run id from bookweave/runs/<id>/meta.
func runIDFromKey(key string) string {
	rest, ok := strings.CutPrefix(key, pathstore.Prefix+"/runs/")
	if !ok {
		return ""
	}
	if i := strings.IndexAny(rest, "/."); i >= 0 {
		return rest[:i]
	}
	return rest
}
