package doctree

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Line is a single numbered line of a page. Numbers are 1-based and dense.
type Line struct {
	Number int
	Text   string
	Empty  bool
}

// Page is an ordered run of numbered lines belonging to one source.
type Page struct {
	Number  int
	Chapter string
	Lines   []Line
}

// Source is one book: an ordered set of pages with unique page numbers.
type Source struct {
	ID    string
	Name  string
	Pages []Page

	index map[int]int
}

// LineRange addresses lines Start..End (inclusive) on one page.
type LineRange struct {
	Page  int `json:"page"`
	Start int `json:"start"`
	End   int `json:"end"`
}

// Key identifies the range for deduplication.
func (r LineRange) Key() string {
	return fmt.Sprintf("%d:%d-%d", r.Page, r.Start, r.End)
}

func (r LineRange) String() string {
	return fmt.Sprintf("page %d lines %d-%d", r.Page, r.Start, r.End)
}

// NewLine builds a line and derives its Empty flag.
func NewLine(number int, text string) Line {
	return Line{Number: number, Text: text, Empty: strings.TrimSpace(text) == ""}
}

// LinesFromText numbers each "\n"-separated line of text starting at 1.
// A trailing newline does not produce an extra empty line.
func LinesFromText(text string) []Line {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	raw := strings.Split(text, "\n")
	lines := make([]Line, len(raw))
	for i, l := range raw {
		lines[i] = NewLine(i+1, strings.TrimSuffix(l, "\r"))
	}
	return lines
}

// LineCount returns the highest line number on the page.
func (p *Page) LineCount() int {
	return len(p.Lines)
}

// Line returns line n, or false when n is outside 1..LineCount.
func (p *Page) Line(n int) (Line, bool) {
	if n < 1 || n > len(p.Lines) {
		return Line{}, false
	}
	return p.Lines[n-1], true
}

// FullText joins every line of the page with "\n".
func (p *Page) FullText() string {
	var sb strings.Builder
	for i, l := range p.Lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(l.Text)
	}
	return sb.String()
}

// NonEmptyLines counts lines with visible text.
func (p *Page) NonEmptyLines() int {
	n := 0
	for _, l := range p.Lines {
		if !l.Empty {
			n++
		}
	}
	return n
}

// NewSource sorts a copy of pages by number, checks the addressing
// invariants and indexes the pages. The caller's slice is left as is.
func NewSource(id, name string, pages []Page) (*Source, error) {
	s := &Source{ID: id, Name: name, Pages: slices.Clone(pages)}
	sort.SliceStable(s.Pages, func(i, j int) bool { return s.Pages[i].Number < s.Pages[j].Number })
	index, err := s.check()
	if err != nil {
		return nil, err
	}
	s.index = index
	return s, nil
}

// Check verifies the invariants the line addressing scheme depends on:
// a non-empty id, non-negative unique page numbers, and lines numbered
// exactly 1..N on every page. It only reads s, so a source shared by
// concurrent runs may be checked by each of them.
func (s *Source) Check() error {
	_, err := s.check()
	return err
}

func (s *Source) check() (map[int]int, error) {
	if strings.TrimSpace(s.ID) == "" {
		return nil, &InvariantError{Detail: "source id is empty"}
	}
	index := make(map[int]int, len(s.Pages))
	for i := range s.Pages {
		p := &s.Pages[i]
		if p.Number < 0 {
			return nil, &InvariantError{SourceID: s.ID, Page: p.Number, Detail: "negative page number"}
		}
		if _, dup := index[p.Number]; dup {
			return nil, &InvariantError{SourceID: s.ID, Page: p.Number, Detail: "duplicate page number"}
		}
		index[p.Number] = i
		for j, l := range p.Lines {
			if l.Number != j+1 {
				return nil, &InvariantError{
					SourceID: s.ID,
					Page:     p.Number,
					Line:     l.Number,
					Detail:   fmt.Sprintf("line numbering is not contiguous: expected %d", j+1),
				}
			}
		}
	}
	return index, nil
}

// Page looks up a page by its number.
func (s *Source) Page(number int) (*Page, bool) {
	if s.index == nil {
		for i := range s.Pages {
			if s.Pages[i].Number == number {
				return &s.Pages[i], true
			}
		}
		return nil, false
	}
	i, ok := s.index[number]
	if !ok {
		return nil, false
	}
	return &s.Pages[i], true
}

// DisplayName returns Name, falling back to ID.
func (s *Source) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}
