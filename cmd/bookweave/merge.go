package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dgallion1/bookweave/internal/assemble"
	"github.com/dgallion1/bookweave/internal/config"
	"github.com/dgallion1/bookweave/internal/doctree"
	"github.com/dgallion1/bookweave/internal/mcptools"
	"github.com/dgallion1/bookweave/internal/parser"
	"github.com/dgallion1/bookweave/internal/report"
	"github.com/dgallion1/bookweave/internal/weave"
)

func cmdMerge(ctx context.Context, args []string, stdout io.Writer, log *slog.Logger) error {
	fs := flag.NewFlagSet("merge", flag.ContinueOnError)
	project := fs.String("config", "", "project file; ingests both sources instead of reading lined JSON")
	basePath := fs.String("base", "", "base source lined-page JSON")
	secondaryPath := fs.String("secondary", "", "secondary source lined-page JSON")
	tagsPath := fs.String("tags", "", "tag set JSON")
	hintsPath := fs.String("hints", "", "placement hint set JSON")
	strategyFlag := fs.String("strategy", "", "auto, splice or grouped (default: auto, or the project's)")
	outDir := fs.String("out", "", "output directory (default: the project's output, else current dir)")
	strict := fs.Bool("strict", false, "exit non-zero when any proposal was skipped")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var base, secondary *doctree.Source
	var labels assemble.Labels
	strategyName, dir := *strategyFlag, *outDir
	if *project != "" {
		p, err := config.LoadProject(*project)
		if err != nil {
			return err
		}
		base, secondary, err = projectPair(ctx, p, log)
		if err != nil {
			return err
		}
		labels = p.Labels
		if strategyName == "" {
			strategyName = p.Strategy
		}
		if dir == "" {
			dir = p.Resolve(p.Output)
		}
	} else {
		if *basePath == "" || *secondaryPath == "" {
			return errors.New("merge needs -config, or -base and -secondary")
		}
		var err error
		if base, err = weave.ReadSource(*basePath); err != nil {
			return err
		}
		if secondary, err = weave.ReadSource(*secondaryPath); err != nil {
			return err
		}
	}
	if dir == "" {
		dir = "."
	}

	strategy, err := weave.ParseStrategy(strategyName)
	if err != nil {
		return err
	}
	tags, err := weave.ReadTags(*tagsPath)
	if err != nil {
		return err
	}
	hints, err := weave.ReadHints(*hintsPath)
	if err != nil {
		return err
	}

	res, err := weave.Run(weave.Input{
		Base:      base,
		Secondary: secondary,
		Tags:      tags,
		Hints:     hints,
		Strategy:  strategy,
		Labels:    labels,
	})
	if err != nil {
		return err
	}

	books := []string{base.DisplayName(), secondary.DisplayName()}
	paths, err := weave.WriteOutputs(dir, res, books, time.Now())
	if err != nil {
		return err
	}
	log.Info("merge written", "run_id", res.RunID, "mode", res.Mode, "files", paths)

	fmt.Fprintln(stdout, report.RenderTerminal(res.Report))
	if *strict && res.Report.Skipped() > 0 {
		return fmt.Errorf("%d proposals were skipped", res.Report.Skipped())
	}
	return nil
}

// projectPair ingests the base and secondary sources a project names.
func projectPair(ctx context.Context, p *config.Project, log *slog.Logger) (*doctree.Source, *doctree.Source, error) {
	baseCfg, ok := p.Role(config.RoleBase)
	if !ok {
		return nil, nil, errors.New("project names no base source")
	}
	secCfg, ok := p.Role(config.RoleSecondary)
	if !ok {
		return nil, nil, errors.New("project names no secondary source")
	}
	cfg := config.Load()
	srcs, err := loadProjectSources(ctx, p, []config.SourceConfig{baseCfg, secCfg},
		parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext}, 0, log)
	if err != nil {
		return nil, nil, err
	}
	return srcs[0], srcs[1], nil
}

func cmdCoverage(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("coverage", flag.ContinueOnError)
	in := fs.String("in", "", "source lined-page JSON")
	tagsPath := fs.String("tags", "", "tag set JSON")
	asJSON := fs.Bool("json", false, "print coverage as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *tagsPath == "" {
		return errors.New("coverage needs -in and -tags")
	}

	src, err := weave.ReadSource(*in)
	if err != nil {
		return err
	}
	tags, err := weave.ReadTags(*tagsPath)
	if err != nil {
		return err
	}

	pages := weave.Coverage(src, tags)
	if *asJSON {
		return encodeJSON(stdout, pages)
	}

	full := 0
	for _, pc := range pages {
		c := pc.Coverage
		state := "ok"
		if !c.FullyTagged() {
			state = "INCOMPLETE"
		} else {
			full++
		}
		fmt.Fprintf(stdout, "page %d: %d/%d lines covered, %d missing, %d overlaps, %d invalid  %s\n",
			c.Page, len(c.Covered), c.Lines, len(c.Gaps), len(c.Overlaps), len(c.Invalid), state)
		if len(c.Gaps) > 0 {
			fmt.Fprintf(stdout, "  missing lines: %v\n", c.Gaps)
		}
	}
	fmt.Fprintf(stdout, "%s: %d of %d tagged pages fully covered\n", src.ID, full, len(pages))
	return nil
}

func cmdMCP(ctx context.Context, log *slog.Logger) error {
	return mcptools.Run(ctx, log)
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
