// Package weave runs one merge: it checks both sources, reports tag
// coverage, picks the merge strategy, and assembles the document. A run is
// a pure function of its input apart from the run id.
package weave

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dgallion1/bookweave/internal/assemble"
	"github.com/dgallion1/bookweave/internal/doctree"
	"github.com/dgallion1/bookweave/internal/merge"
	"github.com/dgallion1/bookweave/internal/placement"
	"github.com/dgallion1/bookweave/internal/proposal"
	"github.com/dgallion1/bookweave/internal/rangecheck"
	"github.com/dgallion1/bookweave/internal/report"
	"github.com/dgallion1/bookweave/internal/segment"
)

// Strategy selects the merge engine.
type Strategy string

const (
	StrategyAuto    Strategy = "auto"
	StrategySplice  Strategy = "splice"
	StrategyGrouped Strategy = "grouped"
)

// ParseStrategy accepts auto, splice or grouped; empty means auto.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyAuto:
		return StrategyAuto, nil
	case StrategySplice:
		return StrategySplice, nil
	case StrategyGrouped:
		return StrategyGrouped, nil
	}
	return "", fmt.Errorf("unknown strategy %q (want auto, splice or grouped)", s)
}

// Input is everything one merge run consumes.
type Input struct {
	RunID     string // generated when empty
	Base      *doctree.Source
	Secondary *doctree.Source
	Hints     *proposal.HintSet
	Tags      *proposal.TagSet
	Strategy  Strategy
	Labels    assemble.Labels
}

// Result is the merged document and its report.
type Result struct {
	RunID    string                   `json:"run_id"`
	Mode     Strategy                 `json:"mode"`
	Document *assemble.MergedDocument `json:"document"`
	Report   *report.Report           `json:"report"`
}

// ErrMissingSource is returned when either source is absent.
var ErrMissingSource = errors.New("base and secondary sources are required")

// NewRunID returns a time-ordered run id.
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Run merges in. Only a structurally broken source is an error; every
// other problem is recorded in the report and the run completes.
func Run(in Input) (*Result, error) {
	if in.Base == nil || in.Secondary == nil {
		return nil, ErrMissingSource
	}
	if err := in.Base.Check(); err != nil {
		return nil, fmt.Errorf("base source: %w", err)
	}
	if err := in.Secondary.Check(); err != nil {
		return nil, fmt.Errorf("secondary source: %w", err)
	}
	if in.Base.ID == in.Secondary.ID {
		return nil, &doctree.InvariantError{
			SourceID: in.Base.ID,
			Detail:   "base and secondary sources share an id",
		}
	}

	mode, err := choose(in)
	if err != nil {
		return nil, err
	}
	runID := in.RunID
	if runID == "" {
		runID = NewRunID()
	}

	rep := report.New(runID)
	rep.Mode = string(mode)
	rep.BasePages = len(in.Base.Pages)
	rep.HintsTotal = in.Hints.Len()
	rep.TagsTotal = in.Tags.TagCount()

	sources := []*doctree.Source{in.Base, in.Secondary}
	if in.Tags != nil {
		for _, src := range sources {
			for _, pc := range Coverage(src, in.Tags) {
				rep.AddCoverage(pc.SourceID, pc.Coverage)
			}
		}
	}

	var entries []assemble.Entry
	switch mode {
	case StrategySplice:
		var hints []proposal.Hint
		if in.Hints != nil {
			hints = in.Hints.InsertionPoints
		}
		placed := placement.Resolve(hints, in.Secondary, rep)
		entries = merge.Splice(in.Base, placed, rep)
		rep.PlacementsResolved = countKind(entries, segment.KindPlaced)
	case StrategyGrouped:
		entries = merge.Grouped(sources, in.Tags.Pages, rep)
		rep.TagsUsed = len(entries)
	}

	doc := assemble.Assemble(entries, in.Labels)
	rep.Stats = stats(entries, doc)

	return &Result{RunID: runID, Mode: mode, Document: doc, Report: rep}, nil
}

func choose(in Input) (Strategy, error) {
	s, err := ParseStrategy(string(in.Strategy))
	if err != nil {
		return "", err
	}
	switch s {
	case StrategyGrouped:
		if in.Tags == nil {
			return "", errors.New("grouped strategy needs a tag set")
		}
		return s, nil
	case StrategySplice:
		return s, nil
	}
	if in.Hints.Len() > 0 {
		return StrategySplice, nil
	}
	if in.Tags.TagCount() > 0 {
		return StrategyGrouped, nil
	}
	return StrategySplice, nil
}

// Coverage computes tag coverage for every page of src that tags mentions.
// Tag pages naming other sources, or pages src lacks, are ignored.
func Coverage(src *doctree.Source, tags *proposal.TagSet) []report.PageCoverage {
	out := []report.PageCoverage{}
	if tags == nil {
		return out
	}
	for _, tp := range tags.Pages {
		if tp.SourceID != src.ID || !tp.PageNumber.Valid {
			continue
		}
		page, ok := src.Page(tp.PageNumber.Value)
		if !ok {
			continue
		}
		out = append(out, report.PageCoverage{
			SourceID: src.ID,
			Coverage: rangecheck.ComputeCoverage(page, tp.Ranges()),
		})
	}
	return out
}

func countKind(entries []assemble.Entry, k segment.Kind) int {
	n := 0
	for _, e := range entries {
		if e.Segment.Kind == k {
			n++
		}
	}
	return n
}

func stats(entries []assemble.Entry, doc *assemble.MergedDocument) report.Stats {
	years := map[string]int{}
	locations := map[string]int{}
	confidence := map[string]int{}
	for _, e := range entries {
		s := e.Segment
		if s.Kind == segment.KindBase {
			continue
		}
		confidence[string(s.Confidence)]++
		if s.Kind != segment.KindTagged {
			continue
		}
		if s.Tags.Year > 0 {
			years[fmt.Sprint(s.Tags.Year)]++
		} else {
			years["unknown"]++
		}
		if s.Tags.Location != "" {
			locations[s.Tags.Location]++
		}
	}
	return report.Stats{
		Segments:     len(entries),
		TextLength:   utf8.RuneCountInString(doc.Text),
		ByYear:       report.Tally(years, 0),
		ByLocation:   report.Tally(locations, 10),
		ByConfidence: report.Tally(confidence, 0),
	}
}
