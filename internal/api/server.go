package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/bookweave/internal/config"
	"github.com/dgallion1/bookweave/internal/oracle"
	"github.com/dgallion1/bookweave/internal/pathstore"
	"github.com/dgallion1/bookweave/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RunStore reads and removes persisted runs. *pathstore.Client implements it.
type RunStore interface {
	GetNode(ctx context.Context, key string) (*pathstore.NodeResponse, error)
	ListChildren(ctx context.Context, key string, limit int) ([]pathstore.ListChildrenResponse, error)
	DeleteNode(ctx context.Context, key string, recursive bool) error
}

// Server is the HTTP API server for bookweave.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	runs         RunStore
	oracle       *oracle.Client
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. runs and oc may be
// nil when persistence or the oracle is disabled.
func NewServer(orch *pipeline.Orchestrator, runs RunStore, oc *oracle.Client, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		runs:         runs,
		oracle:       oc,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/merge", s.handleMerge)
		r.Route("/api/merge/{jobID}", func(r chi.Router) {
			r.Get("/status", s.handleMergeStatus)
			r.Get("/document", s.handleMergeDocument)
			r.Get("/manifest", s.handleMergeManifest)
			r.Get("/report", s.handleMergeReport)
		})

		r.Post("/api/sources", s.handleUploadSource)
		r.Post("/api/coverage", s.handleCoverage)
		r.Get("/api/stats/llm", s.handleLLMStats)

		r.Get("/api/runs", s.handleListRuns)
		r.Get("/api/runs/{runID}/{part}", s.handleGetRun)
		r.Delete("/api/runs/{runID}", s.handleDeleteRun)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
		"jobs":        s.orchestrator.JobCounts(),
		"oracle":      s.orchestrator.OracleEnabled(),
		"persistence": s.runs != nil,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
