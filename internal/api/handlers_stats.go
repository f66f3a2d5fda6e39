package api

import "net/http"

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.oracle == nil || s.oracle.Stats == nil {
		jsonError(w, "llm stats unavailable: oracle disabled", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"model": s.oracle.Model(),
		"stats": s.oracle.Stats.Snapshot(),
	})
}
