package api

import (
	"encoding/json"
	"net/http"

	"github.com/dgallion1/bookweave/internal/doctree"
	"github.com/dgallion1/bookweave/internal/proposal"
	"github.com/dgallion1/bookweave/internal/weave"
)

type coverageRequest struct {
	Source *doctree.Source  `json:"source"`
	Tags   *proposal.TagSet `json:"tags"`
}

// handleCoverage reports how completely tags cover each tagged page of a
// source. It does not merge anything.
func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var body coverageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.Source == nil {
		jsonError(w, "source is required", http.StatusBadRequest)
		return
	}

	pages := weave.Coverage(body.Source, body.Tags)
	full := true
	for _, p := range pages {
		if !p.Coverage.FullyTagged() {
			full = false
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source_id":    body.Source.ID,
		"pages":        pages,
		"fully_tagged": full,
	})
}
