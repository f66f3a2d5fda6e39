// Package placement turns placement hints into placed segments of the
// secondary source.
package placement

import (
	"fmt"

	"github.com/dgallion1/bookweave/internal/doctree"
	"github.com/dgallion1/bookweave/internal/proposal"
	"github.com/dgallion1/bookweave/internal/rangecheck"
	"github.com/dgallion1/bookweave/internal/report"
	"github.com/dgallion1/bookweave/internal/segment"
)

// Resolve validates every hint against the secondary source and extracts
// its text. Hints are processed in input order and a (page, start, end)
// triple is resolved at most once; later duplicates are reported, as is
// every hint that cannot be resolved. Whether the anchor's base page exists
// is checked by the splice engine, which owns the base source.
func Resolve(hints []proposal.Hint, secondary *doctree.Source, rep *report.Report) []segment.Segment {
	placed := make([]segment.Segment, 0, len(hints))
	firstSeen := make(map[string]int, len(hints))

	for i, h := range hints {
		p, err := h.Resolve()
		if err != nil {
			rep.Add(report.Issue{
				Kind:     report.InputValidation,
				Stage:    report.StagePlacement,
				SourceID: secondary.ID,
				Index:    i,
				Page:     h.SourcePage.Value,
				Detail:   err.Error(),
			})
			continue
		}

		r := p.Range
		page, ok := secondary.Page(r.Page)
		if !ok {
			rep.Add(report.Issue{
				Kind:     report.ResolutionFailure,
				Stage:    report.StagePlacement,
				SourceID: secondary.ID,
				Index:    i,
				Page:     r.Page,
				Start:    r.Start,
				End:      r.End,
				Detail:   fmt.Sprintf("source page %d not found in %s", r.Page, secondary.ID),
			})
			continue
		}

		if err := rangecheck.Validate(page, r.Start, r.End); err != nil {
			rep.Add(report.Issue{
				Kind:     report.InputValidation,
				Stage:    report.StagePlacement,
				SourceID: secondary.ID,
				Index:    i,
				Page:     r.Page,
				Start:    r.Start,
				End:      r.End,
				Reason:   string(rangecheck.ReasonOf(err)),
				Detail:   err.Error(),
			})
			continue
		}

		if first, dup := firstSeen[r.Key()]; dup {
			rep.Add(report.Issue{
				Kind:     report.DuplicateSkipped,
				Stage:    report.StagePlacement,
				SourceID: secondary.ID,
				Index:    i,
				Page:     r.Page,
				Start:    r.Start,
				End:      r.End,
				Detail:   fmt.Sprintf("%s already placed by hint %d", r, first),
			})
			continue
		}
		firstSeen[r.Key()] = i

		placed = append(placed, segment.Segment{
			Kind:       segment.KindPlaced,
			SourceID:   secondary.ID,
			SourceName: secondary.DisplayName(),
			Page:       page.Number,
			Chapter:    page.Chapter,
			Start:      r.Start,
			End:        r.End,
			Text:       segment.ExtractText(page, r.Start, r.End),
			Anchor:     p.Anchor,
			Origin:     i,
			Reason:     p.Reason,
			Confidence: p.Confidence,
		})
	}
	return placed
}
