package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/bookweave/internal/doctree"
	"github.com/dgallion1/bookweave/internal/oracle"
	"github.com/dgallion1/bookweave/internal/proposal"
	"github.com/dgallion1/bookweave/internal/report"
)

// Oracle proposes tags and placements for single pages. *oracle.Client
// implements it.
type Oracle interface {
	TagPage(ctx context.Context, src *doctree.Source, page *doctree.Page) (proposal.TaggedPage, error)
	PlacePage(ctx context.Context, secondary *doctree.Source, page *doctree.Page, baseContext string) ([]proposal.Hint, error)
}

var _ Oracle = (*oracle.Client)(nil)

// PageFailure is an oracle page that failed after retries.
type PageFailure struct {
	SourceID string
	Page     int
	Err      error
}

func (f PageFailure) Error() string {
	return fmt.Sprintf("%s page %d: %s", f.SourceID, f.Page, f.Err)
}

// Issue turns the failure into a run report entry.
func (f PageFailure) Issue() report.Issue {
	return report.Issue{
		Kind:     report.OracleFailure,
		Stage:    report.StageOracle,
		SourceID: f.SourceID,
		Index:    -1,
		Page:     f.Page,
		Detail:   f.Err.Error(),
	}
}

// Fanout runs oracle calls for many pages with bounded concurrency.
// A failed page never stops the others.
type Fanout struct {
	Oracle Oracle
	Limit  int
	Log    *slog.Logger

	// OnPage is called after every page; failed reports the outcome.
	OnPage func(failed bool)

	wait func(int) time.Duration
}

type pageRef struct {
	src  *doctree.Source
	page *doctree.Page
}

func (f *Fanout) run(ctx context.Context, pages []pageRef, call func(ctx context.Context, i int) error) []PageFailure {
	limit := f.Limit
	if limit <= 0 {
		limit = 1
	}
	wait := f.wait
	if wait == nil {
		wait = Backoff
	}
	log := f.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	errs := make([]error, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range pages {
		g.Go(func() error {
			plog := log.With("source_id", p.src.ID, "page", p.page.Number)
			errs[i] = retry(gctx, plog, wait, func() error { return call(gctx, i) })
			if errs[i] != nil {
				plog.Error("oracle page failed", "error", errs[i])
			}
			if f.OnPage != nil {
				f.OnPage(errs[i] != nil)
			}
			return nil
		})
	}
	_ = g.Wait()

	var failures []PageFailure
	for i, err := range errs {
		if err != nil {
			failures = append(failures, PageFailure{SourceID: pages[i].src.ID, Page: pages[i].page.Number, Err: err})
		}
	}
	return failures
}

// Tags asks for line tags on every page of every source. Tagged pages
// come back in source then page order.
func (f *Fanout) Tags(ctx context.Context, sources ...*doctree.Source) (*proposal.TagSet, []PageFailure) {
	var pages []pageRef
	for _, src := range sources {
		for i := range src.Pages {
			pages = append(pages, pageRef{src: src, page: &src.Pages[i]})
		}
	}

	out := make([]*proposal.TaggedPage, len(pages))
	failures := f.run(ctx, pages, func(ctx context.Context, i int) error {
		tp, err := f.Oracle.TagPage(ctx, pages[i].src, pages[i].page)
		if err != nil {
			return err
		}
		out[i] = &tp
		return nil
	})

	set := &proposal.TagSet{}
	for _, tp := range out {
		if tp != nil {
			set.Pages = append(set.Pages, *tp)
		}
	}
	return set, failures
}

// Hints asks where every secondary page belongs in base. Hints come back
// in secondary page order.
func (f *Fanout) Hints(ctx context.Context, base, secondary *doctree.Source) (*proposal.HintSet, []PageFailure) {
	baseContext := oracle.BaseContext(base)
	pages := make([]pageRef, len(secondary.Pages))
	for i := range secondary.Pages {
		pages[i] = pageRef{src: secondary, page: &secondary.Pages[i]}
	}

	out := make([][]proposal.Hint, len(pages))
	failures := f.run(ctx, pages, func(ctx context.Context, i int) error {
		hints, err := f.Oracle.PlacePage(ctx, secondary, pages[i].page, baseContext)
		if err != nil {
			return err
		}
		out[i] = hints
		return nil
	})

	set := &proposal.HintSet{}
	for _, hints := range out {
		set.InsertionPoints = append(set.InsertionPoints, hints...)
	}
	return set, failures
}
