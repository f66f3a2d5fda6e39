package doctree

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Wire shape of a lined-page set as produced by the OCR/line-numbering stage.
type linedSet struct {
	SourceID string      `json:"sourceId"`
	Name     string      `json:"name,omitempty"`
	Pages    []linedPage `json:"pages"`
}

type linedPage struct {
	PageNumber   int         `json:"pageNumber"`
	ChapterLabel string      `json:"chapterLabel,omitempty"`
	Lines        []linedLine `json:"lines"`
}

type linedLine struct {
	LineNumber int    `json:"lineNumber"`
	Text       string `json:"text"`
	IsEmpty    bool   `json:"isEmpty"`
}

// DecodeSource reads a lined-page set. The inbound isEmpty flag is ignored
// and recomputed from the text.
func DecodeSource(r io.Reader) (*Source, error) {
	var set linedSet
	if err := json.NewDecoder(r).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode lined pages: %w", err)
	}
	return set.toSource()
}

// UnmarshalJSON lets a Source be embedded in request bodies.
func (s *Source) UnmarshalJSON(data []byte) error {
	var set linedSet
	if err := json.Unmarshal(data, &set); err != nil {
		return err
	}
	src, err := set.toSource()
	if err != nil {
		return err
	}
	*s = *src
	return nil
}

// MarshalJSON writes the lined-page set shape.
func (s *Source) MarshalJSON() ([]byte, error) {
	set := linedSet{SourceID: s.ID, Name: s.Name, Pages: make([]linedPage, len(s.Pages))}
	for i, p := range s.Pages {
		lp := linedPage{PageNumber: p.Number, ChapterLabel: p.Chapter, Lines: make([]linedLine, len(p.Lines))}
		for j, l := range p.Lines {
			lp.Lines[j] = linedLine{LineNumber: l.Number, Text: l.Text, IsEmpty: l.Empty}
		}
		set.Pages[i] = lp
	}
	return json.Marshal(set)
}

// EncodeSource writes s as an indented lined-page set.
func EncodeSource(w io.Writer, s *Source) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func (set linedSet) toSource() (*Source, error) {
	pages := make([]Page, len(set.Pages))
	for i, lp := range set.Pages {
		p := Page{Number: lp.PageNumber, Chapter: lp.ChapterLabel, Lines: make([]Line, len(lp.Lines))}
		for j, ll := range lp.Lines {
			p.Lines[j] = NewLine(ll.LineNumber, ll.Text)
		}
		sort.SliceStable(p.Lines, func(a, b int) bool { return p.Lines[a].Number < p.Lines[b].Number })
		pages[i] = p
	}
	return NewSource(set.SourceID, set.Name, pages)
}
