package merge

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dgallion1/bookweave/internal/assemble"
	"github.com/dgallion1/bookweave/internal/doctree"
	"github.com/dgallion1/bookweave/internal/proposal"
	"github.com/dgallion1/bookweave/internal/rangecheck"
	"github.com/dgallion1/bookweave/internal/report"
	"github.com/dgallion1/bookweave/internal/segment"
)

type groupKey struct {
	year      int // 0 unknown
	monthRank int
	month     string
	location  string // "" unknown
	page      int
	start     int
	end       int
	source    int
	index     int
}

// less is a strict total order: the input index makes every key distinct.
func (a groupKey) less(b groupKey) bool {
	if (a.year == 0) != (b.year == 0) {
		return a.year != 0
	}
	if a.year != b.year {
		return a.year < b.year
	}
	if a.monthRank != b.monthRank {
		return a.monthRank < b.monthRank
	}
	if a.month != b.month {
		return a.month < b.month
	}
	if (a.location == "") != (b.location == "") {
		return a.location != ""
	}
	if a.location != b.location {
		return a.location < b.location
	}
	if a.page != b.page {
		return a.page < b.page
	}
	if a.start != b.start {
		return a.start < b.start
	}
	if a.end != b.end {
		return a.end < b.end
	}
	if a.source != b.source {
		return a.source < b.source
	}
	return a.index < b.index
}

// Grouped orders every valid tagged range of sources by year, month and
// location, unknowns last at each level, then by page and line. Tag pages
// are matched to sources by id; the position of a source in sources breaks
// ties between identical positions in different sources. The returned
// entries carry a banner at each group transition.
func Grouped(sources []*doctree.Source, pages []proposal.TaggedPage, rep *report.Report) []assemble.Entry {
	byID := make(map[string]int, len(sources))
	for i, s := range sources {
		byID[s.ID] = i
	}

	type keyed struct {
		key groupKey
		seg segment.Segment
	}
	var all []keyed
	index := 0

	for _, tp := range pages {
		srcRank, ok := byID[tp.SourceID]
		if !ok {
			rep.Add(report.Issue{
				Kind:     report.ResolutionFailure,
				Stage:    report.StageTags,
				SourceID: tp.SourceID,
				Index:    -1,
				Page:     tp.PageNumber.Value,
				Detail:   fmt.Sprintf("unknown source %q for %d tags", tp.SourceID, len(tp.LineTags)),
			})
			index += len(tp.LineTags)
			continue
		}
		src := sources[srcRank]
		page, ok := src.Page(tp.PageNumber.Value)
		if !tp.PageNumber.Valid || !ok {
			rep.Add(report.Issue{
				Kind:     report.ResolutionFailure,
				Stage:    report.StageTags,
				SourceID: src.ID,
				Index:    -1,
				Page:     tp.PageNumber.Value,
				Detail:   fmt.Sprintf("page %s not found for %d tags", pageDesc(tp.PageNumber), len(tp.LineTags)),
			})
			index += len(tp.LineTags)
			continue
		}

		for _, t := range tp.LineTags {
			i := index
			index++

			r, tags, conf, err := t.Labels(page.Number)
			if err != nil {
				rep.Add(report.Issue{
					Kind:     report.InputValidation,
					Stage:    report.StageTags,
					SourceID: src.ID,
					Index:    i,
					Page:     page.Number,
					Detail:   err.Error(),
				})
				continue
			}
			if err := rangecheck.Validate(page, r.Start, r.End); err != nil {
				rep.Add(report.Issue{
					Kind:     report.InputValidation,
					Stage:    report.StageTags,
					SourceID: src.ID,
					Index:    i,
					Page:     page.Number,
					Start:    r.Start,
					End:      r.End,
					Reason:   string(rangecheck.ReasonOf(err)),
					Detail:   err.Error(),
				})
				continue
			}
			text := segment.ExtractText(page, r.Start, r.End)
			if strings.TrimSpace(text) == "" {
				rep.Add(report.Issue{
					Kind:     report.EmptyRangeSkipped,
					Stage:    report.StageTags,
					SourceID: src.ID,
					Index:    i,
					Page:     page.Number,
					Start:    r.Start,
					End:      r.End,
					Detail:   "tagged lines hold no text",
				})
				continue
			}

			all = append(all, keyed{
				key: groupKey{
					year:      tags.Year,
					monthRank: MonthRank(tags.Month),
					month:     tags.Month,
					location:  tags.Location,
					page:      page.Number,
					start:     r.Start,
					end:       r.End,
					source:    srcRank,
					index:     i,
				},
				seg: segment.Segment{
					Kind:       segment.KindTagged,
					SourceID:   src.ID,
					SourceName: src.DisplayName(),
					Page:       page.Number,
					Chapter:    page.Chapter,
					Start:      r.Start,
					End:        r.End,
					Text:       text,
					Origin:     i,
					Confidence: conf,
					Tags:       tags,
				},
			})
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].key.less(all[j].key) })

	out := make([]assemble.Entry, len(all))
	for i, k := range all {
		var banners []assemble.Banner
		prev := groupKey{year: -1}
		if i > 0 {
			prev = all[i-1].key
		}
		newYear := i == 0 || prev.year != k.key.year
		newMonth := newYear || prev.month != k.key.month
		newLocation := newMonth || prev.location != k.key.location
		if newYear {
			banners = append(banners, assemble.Banner{Level: assemble.BannerYear, Value: yearLabel(k.key.year)})
		}
		if newMonth {
			banners = append(banners, assemble.Banner{Level: assemble.BannerMonth, Value: k.key.month})
		}
		if newLocation {
			banners = append(banners, assemble.Banner{Level: assemble.BannerLocation, Value: k.key.location})
		}
		out[i] = assemble.Entry{Banners: banners, Segment: k.seg}
	}
	return out
}

func yearLabel(y int) string {
	if y == 0 {
		return ""
	}
	return strconv.Itoa(y)
}

func pageDesc(n proposal.Int) string {
	if !n.Valid {
		return "(missing)"
	}
	return strconv.Itoa(n.Value)
}
