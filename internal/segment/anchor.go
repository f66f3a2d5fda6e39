package segment

import "fmt"

// AnchorKind says where on the target page a placed segment goes.
type AnchorKind int

const (
	// EndOfPage places the segment after the whole target page.
	EndOfPage AnchorKind = iota
	// AfterLine places the segment after a specific line of the target page.
	AfterLine
)

// Anchor is a base-source insertion point. It replaces the overloaded
// "line 0 means whole page" convention with an explicit variant.
type Anchor struct {
	Page int
	Kind AnchorKind
	Line int // meaningful only for AfterLine
}

// AtEndOf anchors after the whole page.
func AtEndOf(page int) Anchor {
	return Anchor{Page: page, Kind: EndOfPage}
}

// After anchors after line n of page.
func After(page, n int) Anchor {
	return Anchor{Page: page, Kind: AfterLine, Line: n}
}

// Position resolves the anchor to a sortable line on a page with lineCount
// lines. EndOfPage sorts at line 0, ahead of every AfterLine anchor on the
// same page. AfterLine past the end clamps to the end of the page; the
// second return value reports whether that happened.
func (a Anchor) Position(lineCount int) (line int, clamped bool) {
	if a.Kind == EndOfPage {
		return 0, false
	}
	if a.Line > lineCount {
		return lineCount, true
	}
	return a.Line, false
}

// WireLine is the insertAfterLine value of the original hint format.
func (a Anchor) WireLine() int {
	if a.Kind == EndOfPage {
		return 0
	}
	return a.Line
}

func (a Anchor) String() string {
	if a.Kind == EndOfPage {
		return fmt.Sprintf("end of page %d", a.Page)
	}
	return fmt.Sprintf("page %d after line %d", a.Page, a.Line)
}
