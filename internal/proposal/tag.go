package proposal

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/bookweave/internal/doctree"
	"github.com/dgallion1/bookweave/internal/segment"
)

// TagSet is the tagging oracle's output, one entry per tagged page.
type TagSet struct {
	Pages []TaggedPage `json:"pages"`
}

// TaggedPage holds the line tags proposed for one page of one source.
type TaggedPage struct {
	SourceID   string `json:"sourceId"`
	PageNumber Int    `json:"pageNumber"`
	LineTags   []Tag  `json:"lineTags"`
}

// Tag labels a line range with chronology metadata.
type Tag struct {
	LineStart  Int      `json:"lineStart"`
	LineEnd    Int      `json:"lineEnd"`
	Year       Int      `json:"year"`
	Month      string   `json:"month,omitempty"`
	Location   string   `json:"location,omitempty"`
	Locations  []string `json:"locations,omitempty"`
	Characters []string `json:"characters,omitempty"`
	Confidence string   `json:"confidence,omitempty"`
}

func (s *TagSet) UnmarshalJSON(b []byte) error {
	var f fields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	var pages []TaggedPage
	if err := f.list(&pages, "pages"); err != nil {
		return err
	}
	s.Pages = pages
	return nil
}

func (p *TaggedPage) UnmarshalJSON(b []byte) error {
	*p = TaggedPage{}
	var f fields
	if err := json.Unmarshal(b, &f); err != nil {
		return nil
	}
	p.SourceID = f.getString("sourceId", "source_id", "book_id")
	f.get(&p.PageNumber, "pageNumber", "page_number")
	if err := f.list(&p.LineTags, "lineTags", "line_tags"); err != nil {
		return fmt.Errorf("page %d: %w", p.PageNumber.Value, err)
	}
	return nil
}

func (t *Tag) UnmarshalJSON(b []byte) error {
	*t = Tag{}
	var f fields
	if err := json.Unmarshal(b, &f); err != nil {
		return nil
	}
	f.get(&t.LineStart, "lineStart", "line_start")
	f.get(&t.LineEnd, "lineEnd", "line_end")
	f.get(&t.Year, "year")
	t.Month = f.getString("month")
	t.Location = f.getString("location")
	t.Locations = f.getStrings("locations")
	t.Characters = f.getStrings("characters")
	t.Confidence = f.getString("confidence")
	return nil
}

// Labels types the tag's range and metadata for page. A year that is
// missing, non-numeric or not positive is unknown rather than an error,
// and so are the literal month/location values "unknown" and "null".
func (t Tag) Labels(page int) (doctree.LineRange, segment.Tags, doctree.Confidence, error) {
	var problems []string
	if !t.LineStart.Valid {
		problems = append(problems, "lineStart "+t.LineStart.describe())
	}
	if !t.LineEnd.Valid {
		problems = append(problems, "lineEnd "+t.LineEnd.describe())
	}
	if len(problems) > 0 {
		return doctree.LineRange{}, segment.Tags{}, "", &FieldError{Problems: problems}
	}

	tags := segment.Tags{
		Month:      known(t.Month),
		Location:   known(t.Location),
		Locations:  t.Locations,
		Characters: t.Characters,
	}
	if t.Year.Valid && t.Year.Value > 0 {
		tags.Year = t.Year.Value
	}
	r := doctree.LineRange{Page: page, Start: t.LineStart.Value, End: t.LineEnd.Value}
	return r, tags, doctree.ParseConfidence(t.Confidence), nil
}

func known(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown", "null", "none":
		return ""
	}
	return strings.TrimSpace(s)
}

// Ranges lists the typed ranges of the page's tags for coverage checks.
// A bound that is not an integer becomes 0 so the range shows up as invalid.
func (p TaggedPage) Ranges() []doctree.LineRange {
	out := make([]doctree.LineRange, 0, len(p.LineTags))
	for _, t := range p.LineTags {
		out = append(out, doctree.LineRange{Page: p.PageNumber.Value, Start: t.LineStart.Value, End: t.LineEnd.Value})
	}
	return out
}

// TagCount returns the number of line tags across all pages.
func (s *TagSet) TagCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, p := range s.Pages {
		n += len(p.LineTags)
	}
	return n
}

// DecodeTags reads a tag set.
func DecodeTags(r io.Reader) (*TagSet, error) {
	var set TagSet
	if err := json.NewDecoder(r).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode tag set: %w", err)
	}
	return &set, nil
}
