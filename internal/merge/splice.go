// Package merge orders segments into a single narrative, either by
// splicing placed ranges into the base source or, without placements, by
// grouping tagged ranges chronologically.
package merge

import (
	"fmt"
	"sort"

	"github.com/dgallion1/bookweave/internal/assemble"
	"github.com/dgallion1/bookweave/internal/doctree"
	"github.com/dgallion1/bookweave/internal/report"
	"github.com/dgallion1/bookweave/internal/segment"
)

// Tiers order base and placed segments that share a position.
const (
	tierBase   = 0
	tierPlaced = 1
)

type spliceKey struct {
	page, line, tier int
}

func (a spliceKey) less(b spliceKey) bool {
	if a.page != b.page {
		return a.page < b.page
	}
	if a.line != b.line {
		return a.line < b.line
	}
	return a.tier < b.tier
}

// Splice emits every base page once, in page order, with each placed
// segment following the base page its anchor names. On one page, end-of-page
// placements come first, then line anchors by line. Placed segments sharing
// a position keep their resolution order. A placement whose anchor page
// does not exist in base is reported and left out.
func Splice(base *doctree.Source, placed []segment.Segment, rep *report.Report) []assemble.Entry {
	type keyed struct {
		key spliceKey
		seg segment.Segment
	}
	all := make([]keyed, 0, len(base.Pages)+len(placed))

	for i := range base.Pages {
		p := &base.Pages[i]
		all = append(all, keyed{spliceKey{p.Number, 0, tierBase}, segment.Base(base, p)})
	}

	for _, s := range placed {
		target, ok := base.Page(s.Anchor.Page)
		if !ok {
			rep.Add(report.Issue{
				Kind:     report.ResolutionFailure,
				Stage:    report.StageSplice,
				SourceID: s.SourceID,
				Index:    s.Origin,
				Page:     s.Page,
				Start:    s.Start,
				End:      s.End,
				Detail:   fmt.Sprintf("target page %d not found in %s", s.Anchor.Page, base.ID),
			})
			continue
		}
		line, clamped := s.Anchor.Position(target.LineCount())
		if clamped {
			rep.Add(report.Issue{
				Kind:     report.AnchorClamped,
				Stage:    report.StageSplice,
				SourceID: s.SourceID,
				Index:    s.Origin,
				Page:     s.Page,
				Start:    s.Start,
				End:      s.End,
				Detail:   fmt.Sprintf("anchor %s is past the last line (%d); placed at end of page", s.Anchor, target.LineCount()),
			})
		}
		all = append(all, keyed{spliceKey{target.Number, line, tierPlaced}, s})
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].key.less(all[j].key) })

	out := make([]assemble.Entry, len(all))
	for i, k := range all {
		out[i] = assemble.Entry{Segment: k.seg}
	}
	return out
}
