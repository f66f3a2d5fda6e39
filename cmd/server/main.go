package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/bookweave/internal/api"
	"github.com/dgallion1/bookweave/internal/config"
	"github.com/dgallion1/bookweave/internal/oracle"
	"github.com/dgallion1/bookweave/internal/pathstore"
	"github.com/dgallion1/bookweave/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional clients. The pipeline takes interfaces, so a disabled
	// client must stay a nil interface rather than a typed nil.
	var (
		oc    *oracle.Client
		orc   pipeline.Oracle
		ps    *pathstore.Client
		store pipeline.Store
		runs  api.RunStore
	)
	if cfg.OracleEnabled {
		oc = oracle.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.OracleOptions()...)
		orc = oc
	}
	if cfg.PersistenceEnabled() {
		ps = pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
		store, runs = ps, ps
	}

	orch := pipeline.NewOrchestrator(cfg, orc, store, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, runs, oc, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if oc != nil {
			oc.Close()
		}
		if ps != nil {
			ps.Close()
		}
	}()

	log.Info("starting bookweave",
		"port", cfg.Port,
		"oracle", cfg.OracleEnabled,
		"persistence", cfg.PersistenceEnabled(),
		"workers", cfg.WorkerCount,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
