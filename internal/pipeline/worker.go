package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/bookweave/internal/pathstore"
	"github.com/dgallion1/bookweave/internal/report"
	"github.com/dgallion1/bookweave/internal/weave"
)

// Store persists finished runs. *pathstore.Client implements it.
type Store interface {
	PutNode(ctx context.Context, key string, req pathstore.NodeRequest) error
	ListChildren(ctx context.Context, key string, limit int) ([]pathstore.ListChildrenResponse, error)
}

var _ Store = (*pathstore.Client)(nil)

// Worker processes a single merge job.
type Worker struct {
	oracle Oracle
	store  Store
	log    *slog.Logger

	maxConcurrentOracle int
	wait                func(int) time.Duration
}

// NewWorker builds a worker. oracle and store may be nil: jobs that ask
// for generated proposals then fail, and results are kept in memory only.
func NewWorker(oracle Oracle, store Store, log *slog.Logger, maxOracle int) *Worker {
	return &Worker{
		oracle:              oracle,
		store:               store,
		log:                 log,
		maxConcurrentOracle: maxOracle,
	}
}

// Process runs the full merge pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "run_id", job.RunID)
	req := job.Request()

	// Phase 1: check inputs and dedup
	job.SetStatus(StatusLoading, "loading")
	if req.Base == nil || req.Secondary == nil {
		w.fail(log, job, "loading", weave.ErrMissingSource)
		return
	}
	hash, err := InputHash(req)
	if err != nil {
		w.fail(log, job, "loading", err)
		return
	}
	job.mu.Lock()
	job.InputHash = hash
	job.mu.Unlock()

	if w.store != nil && !req.Force {
		exists, existingRun, err := w.checkDuplicate(ctx, hash)
		if err != nil {
			log.Warn("dedup check failed, proceeding", "error", err)
		} else if exists {
			log.Info("duplicate input, skipping", "existing_run_id", existingRun)
			job.AddError("identical input already merged as run " + existingRun)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	// Phase 2: oracle proposals
	var failures []PageFailure
	if req.Generate != GenerateNone {
		if w.oracle == nil {
			w.fail(log, job, "oracle", errors.New("oracle is not configured"))
			return
		}
		fan := &Fanout{
			Oracle: w.oracle,
			Limit:  w.maxConcurrentOracle,
			Log:    log,
			OnPage: job.PageDone,
			wait:   w.wait,
		}
		switch req.Generate {
		case GenerateTags:
			job.SetStatus(StatusTagging, "tagging")
			job.SetOraclePages(len(req.Base.Pages) + len(req.Secondary.Pages))
			req.Tags, failures = fan.Tags(ctx, req.Base, req.Secondary)
		case GenerateHints:
			job.SetStatus(StatusPlacing, "placing")
			job.SetOraclePages(len(req.Secondary.Pages))
			req.Hints, failures = fan.Hints(ctx, req.Base, req.Secondary)
		}
		for _, f := range failures {
			job.AddError(f.Error())
		}
		log.Info("oracle complete", "mode", req.Generate, "failures", len(failures))
		if err := ctx.Err(); err != nil {
			w.fail(log, job, "oracle", err)
			return
		}
		job.setRequest(req)
	}

	// Phase 3: merge
	job.SetStatus(StatusMerging, "merging")
	res, err := weave.Run(weave.Input{
		RunID:     job.RunID,
		Base:      req.Base,
		Secondary: req.Secondary,
		Hints:     req.Hints,
		Tags:      req.Tags,
		Strategy:  req.Strategy,
		Labels:    req.Labels,
	})
	if err != nil {
		w.fail(log, job, "merging", err)
		return
	}
	rep := res.Report
	for _, f := range failures {
		rep.Add(f.Issue())
	}
	job.SetResult(res)
	log.Info("merge complete",
		"mode", res.Mode,
		"segments", len(res.Document.Blocks),
		"input_validation", rep.Count(report.InputValidation),
		"resolution_failure", rep.Count(report.ResolutionFailure),
		"skipped", rep.Skipped(),
	)

	// Phase 4: persist
	if w.store != nil {
		job.SetStatus(StatusStoring, "storing")
		if err := w.persist(ctx, job, res, hash); err != nil {
			log.Error("store failed", "error", err)
			job.AddError(fmt.Sprintf("store: %s", err))
			job.SetStatus(StatusPartial, "done")
			return
		}
	}

	if len(failures) > 0 {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}

func (w *Worker) fail(log *slog.Logger, job *Job, phase string, err error) {
	log.Error("job failed", "phase", phase, "error", err)
	job.AddError(fmt.Sprintf("%s: %s", phase, err))
	job.SetStatus(StatusFailed, phase)
}

// persist writes run metadata, manifest and report, then the hash index
// entry that later dedup checks look for.
func (w *Worker) persist(ctx context.Context, job *Job, res *weave.Result, hash string) error {
	source := "bookweave:" + res.RunID
	req := job.Request()
	nodes := []struct {
		key   string
		value any
	}{
		{pathstore.RunKey(res.RunID, "meta"), map[string]any{
			"job_id":         job.ID,
			"mode":           res.Mode,
			"books":          []string{req.Base.DisplayName(), req.Secondary.DisplayName()},
			"total_segments": len(res.Document.Blocks),
			"input_hash":     hash,
			"created_at":     job.CreatedAt.Format(time.RFC3339),
		}},
		{pathstore.RunKey(res.RunID, "manifest"), res.Document.Manifest},
		{pathstore.RunKey(res.RunID, "report"), res.Report},
	}
	for _, n := range nodes {
		if err := w.store.PutNode(ctx, n.key, pathstore.NodeRequest{Value: n.value, Source: source}); err != nil {
			return err
		}
	}

	return w.store.PutNode(ctx, pathstore.HashKey(hash)+"/"+res.RunID, pathstore.NodeRequest{
		Value: map[string]any{
			"run_id":     res.RunID,
			"created_at": job.CreatedAt.Format(time.RFC3339),
		},
		Source: source,
	})
}

// checkDuplicate looks for a stored run with the same input hash.
func (w *Worker) checkDuplicate(ctx context.Context, hash string) (bool, string, error) {
	children, err := w.store.ListChildren(ctx, pathstore.HashKey(hash), 1)
	if err != nil {
		return false, "", err
	}
	if len(children) > 0 {
		return true, pathstore.LastSegment(children[0].Key), nil
	}
	return false, "", nil
}
