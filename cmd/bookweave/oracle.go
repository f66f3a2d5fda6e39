package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/dgallion1/bookweave/internal/config"
	"github.com/dgallion1/bookweave/internal/doctree"
	"github.com/dgallion1/bookweave/internal/oracle"
	"github.com/dgallion1/bookweave/internal/pipeline"
	"github.com/dgallion1/bookweave/internal/weave"
)

// newOracle builds the oracle client from the environment.
func newOracle(cfg config.Config) (*oracle.Client, error) {
	if cfg.AnthropicAPIKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY is required")
	}
	return oracle.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.OracleOptions()...), nil
}

func fanout(oc *oracle.Client, cfg config.Config, log *slog.Logger, total int) *pipeline.Fanout {
	var done, failed atomic.Int32
	return &pipeline.Fanout{
		Oracle: oc,
		Limit:  cfg.MaxConcurrentOracle,
		Log:    log,
		OnPage: func(f bool) {
			n := done.Add(1)
			if f {
				failed.Add(1)
			}
			log.Debug("oracle progress", "done", n, "total", total, "failed", failed.Load())
		},
	}
}

func reportFailures(failures []pipeline.PageFailure, log *slog.Logger) {
	for _, f := range failures {
		log.Warn("page not processed", "source_id", f.SourceID, "page", f.Page, "error", f.Err)
	}
}

func writeJSONOut(path string, v any, stdout io.Writer) error {
	if path == "" || path == "-" {
		return encodeJSON(stdout, v)
	}
	return weave.WriteJSON(path, v)
}

func cmdTag(ctx context.Context, args []string, stdout io.Writer, log *slog.Logger) error {
	fs := flag.NewFlagSet("tag", flag.ContinueOnError)
	in := fs.String("in", "", "comma-separated lined-page JSON files to tag")
	out := fs.String("out", "", "tag set output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("tag needs -in")
	}

	var srcs []*doctree.Source
	total := 0
	for _, path := range strings.Split(*in, ",") {
		src, err := weave.ReadSource(strings.TrimSpace(path))
		if err != nil {
			return err
		}
		srcs = append(srcs, src)
		total += len(src.Pages)
	}

	cfg := config.Load()
	oc, err := newOracle(cfg)
	if err != nil {
		return err
	}
	defer oc.Close()

	log.Info("tagging", "sources", len(srcs), "pages", total, "model", oc.Model())
	tags, failures := fanout(oc, cfg, log, total).Tags(ctx, srcs...)
	reportFailures(failures, log)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeJSONOut(*out, tags, stdout); err != nil {
		return err
	}
	log.Info("tagging done", "pages", len(tags.Pages), "tags", tags.TagCount(), "failed_pages", len(failures))
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d pages could not be tagged", len(failures), total)
	}
	return nil
}

func cmdPlace(ctx context.Context, args []string, stdout io.Writer, log *slog.Logger) error {
	fs := flag.NewFlagSet("place", flag.ContinueOnError)
	basePath := fs.String("base", "", "base source lined-page JSON")
	secondaryPath := fs.String("secondary", "", "secondary source lined-page JSON")
	out := fs.String("out", "", "hint set output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *basePath == "" || *secondaryPath == "" {
		return errors.New("place needs -base and -secondary")
	}

	base, err := weave.ReadSource(*basePath)
	if err != nil {
		return err
	}
	secondary, err := weave.ReadSource(*secondaryPath)
	if err != nil {
		return err
	}

	cfg := config.Load()
	oc, err := newOracle(cfg)
	if err != nil {
		return err
	}
	defer oc.Close()

	total := len(secondary.Pages)
	log.Info("placing", "base", base.ID, "secondary", secondary.ID, "pages", total, "model", oc.Model())
	hints, failures := fanout(oc, cfg, log, total).Hints(ctx, base, secondary)
	reportFailures(failures, log)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeJSONOut(*out, hints, stdout); err != nil {
		return err
	}
	log.Info("placing done", "hints", hints.Len(), "failed_pages", len(failures))
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d pages could not be placed", len(failures), total)
	}
	return nil
}
