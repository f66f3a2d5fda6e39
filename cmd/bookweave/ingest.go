package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/bookweave/internal/config"
	"github.com/dgallion1/bookweave/internal/doctree"
	"github.com/dgallion1/bookweave/internal/ingest"
	"github.com/dgallion1/bookweave/internal/paginate"
	"github.com/dgallion1/bookweave/internal/parser"
)

func cmdIngest(ctx context.Context, args []string, stdout io.Writer, log *slog.Logger) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	project := fs.String("config", "", "project file (bookweave.yaml)")
	sourceID := fs.String("source", "", "with -config: the source to ingest (default: all of them)")
	in := fs.String("in", "", "page directory or book file to ingest")
	id := fs.String("id", "", "with -in: source id")
	name := fs.String("name", "", "with -in: display name")
	linesPerPage := fs.Int("lines-per-page", 0, "page length for files without page breaks")
	clean := fs.Bool("clean", false, "with -in: drop running headers and bare page numbers")
	out := fs.String("out", "", "output file, or directory when ingesting several sources (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Load()
	parserOpts := parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext}

	if *project == "" {
		if *in == "" || *id == "" {
			return errors.New("ingest needs -config, or -in and -id")
		}
		opts := ingest.Options{
			ID:        *id,
			Name:      *name,
			Normalize: true,
			Paginate:  paginate.DefaultConfig(),
			Parser:    parserOpts,
		}
		opts.Paginate.LinesPerPage = cfg.LinesPerPage
		if *linesPerPage > 0 {
			opts.Paginate.LinesPerPage = *linesPerPage
		}
		if *clean {
			c := ingest.DefaultCleaning()
			opts.Cleaning = &c
		}
		src, err := loadSource(ctx, *in, opts, log)
		if err != nil {
			return err
		}
		return writeSource(*out, src, stdout)
	}

	p, err := config.LoadProject(*project)
	if err != nil {
		return err
	}
	targets := p.Sources
	if *sourceID != "" {
		s, ok := p.Source(*sourceID)
		if !ok {
			return fmt.Errorf("source %q is not in %s", *sourceID, *project)
		}
		targets = []config.SourceConfig{s}
	}
	if len(targets) > 1 && *out == "" {
		return errors.New("ingesting several sources needs -out DIR")
	}

	srcs, err := loadProjectSources(ctx, p, targets, parserOpts, *linesPerPage, log)
	if err != nil {
		return err
	}
	if len(srcs) == 1 {
		return writeSource(*out, srcs[0], stdout)
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}
	for _, src := range srcs {
		path := filepath.Join(*out, src.ID+".json")
		if err := writeSource(path, src, stdout); err != nil {
			return err
		}
		fmt.Fprintln(stdout, path)
	}
	return nil
}

// loadProjectSources loads targets concurrently, keeping their order.
func loadProjectSources(ctx context.Context, p *config.Project, targets []config.SourceConfig, parserOpts parser.Options, linesPerPage int, log *slog.Logger) ([]*doctree.Source, error) {
	srcs := make([]*doctree.Source, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range targets {
		opts, err := p.IngestOptions(s)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", s.ID, err)
		}
		opts.Parser = parserOpts
		if linesPerPage > 0 {
			opts.Paginate.LinesPerPage = linesPerPage
		}
		g.Go(func() error {
			src, err := loadSource(gctx, p.Resolve(s.Path), opts, log)
			if err != nil {
				return fmt.Errorf("source %s: %w", s.ID, err)
			}
			srcs[i] = src
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return srcs, nil
}

func loadSource(ctx context.Context, path string, opts ingest.Options, log *slog.Logger) (*doctree.Source, error) {
	src, sum, err := ingest.Load(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	log.Info("source loaded",
		"source_id", sum.SourceID,
		"pages", sum.Pages,
		"lines", sum.Lines,
		"headers_dropped", sum.HeadersDropped,
		"page_numbers_dropped", sum.PageNumbersDropped,
		"corrections_applied", sum.CorrectionsApplied,
	)
	if sum.UnusedCorrections > 0 {
		log.Warn("corrections matched nothing", "source_id", sum.SourceID, "count", sum.UnusedCorrections)
	}
	for _, f := range sum.Skipped {
		log.Debug("file skipped", "source_id", sum.SourceID, "file", f)
	}
	return src, nil
}

// writeSource writes src as lined JSON to path, or to stdout when path
// is empty or "-".
func writeSource(path string, src *doctree.Source, stdout io.Writer) error {
	if path == "" || path == "-" {
		return doctree.EncodeSource(stdout, src)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := doctree.EncodeSource(f, src); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
