// Package segment holds the units the merge engines order and render.
package segment

import (
	"strings"

	"github.com/dgallion1/bookweave/internal/doctree"
)

// Kind distinguishes the segment variants.
type Kind int

const (
	// KindBase is a whole base-source page.
	KindBase Kind = iota
	// KindPlaced is a secondary-source range spliced at an anchor.
	KindPlaced
	// KindTagged is a range from either source ordered by its tags.
	KindTagged
)

func (k Kind) String() string {
	switch k {
	case KindBase:
		return "base"
	case KindPlaced:
		return "placed"
	case KindTagged:
		return "tagged"
	default:
		return "unknown"
	}
}

// Tags are the chronology labels a tagged segment was grouped by.
type Tags struct {
	Year       int      // 0 when unknown
	Month      string   // "" when unknown
	Location   string   // "" when unknown
	Locations  []string
	Characters []string
}

// Segment is an immutable, already-validated unit of merged output.
type Segment struct {
	Kind       Kind
	SourceID   string
	SourceName string
	Page       int
	Chapter    string
	Start      int // first line; 0 for base segments
	End        int // last line; 0 for base segments
	Text       string

	Anchor     Anchor // placed only
	Origin     int    // index of the hint or tag it came from
	Reason     string
	Confidence doctree.Confidence
	Tags       Tags // tagged only
}

// Range returns the line range a placed or tagged segment was cut from.
func (s Segment) Range() doctree.LineRange {
	return doctree.LineRange{Page: s.Page, Start: s.Start, End: s.End}
}

// Base wraps an entire page of the base source.
func Base(src *doctree.Source, p *doctree.Page) Segment {
	return Segment{
		Kind:       KindBase,
		SourceID:   src.ID,
		SourceName: src.DisplayName(),
		Page:       p.Number,
		Chapter:    p.Chapter,
		Text:       p.FullText(),
	}
}

// ExtractText returns lines start..end of page joined by "\n", verbatim.
// The range must already be validated; lines outside the page contribute nothing.
func ExtractText(page *doctree.Page, start, end int) string {
	var sb strings.Builder
	first := true
	for _, l := range page.Lines {
		if l.Number < start || l.Number > end {
			continue
		}
		if !first {
			sb.WriteByte('\n')
		}
		sb.WriteString(l.Text)
		first = false
	}
	return sb.String()
}
