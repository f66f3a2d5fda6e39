// Package proposal decodes the tag and placement data an AI oracle supplies.
// Proposals are untrusted: they carry raw values until Resolve turns them
// into typed references, and even then the ranges still need rangecheck.
package proposal

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/bookweave/internal/doctree"
	"github.com/dgallion1/bookweave/internal/segment"
)

// HintSet is the placement oracle's output.
type HintSet struct {
	InsertionPoints []Hint `json:"insertionPoints"`
}

// Hint proposes inserting a secondary-source range after a base-source position.
type Hint struct {
	SourcePage      Int    `json:"sourcePage"`
	SourceLineStart Int    `json:"sourceLineStart"`
	SourceLineEnd   Int    `json:"sourceLineEnd"`
	InsertAfterPage Int    `json:"insertAfterPage"`
	InsertAfterLine Int    `json:"insertAfterLine"`
	InsertReason    string `json:"insertReason,omitempty"`
	Confidence      string `json:"confidence,omitempty"`
}

func (s *HintSet) UnmarshalJSON(b []byte) error {
	var f fields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	var hints []Hint
	if err := f.list(&hints, "insertionPoints", "insertion_points", "paragraphs"); err != nil {
		return err
	}
	s.InsertionPoints = hints
	return nil
}

func (h *Hint) UnmarshalJSON(b []byte) error {
	var f fields
	if err := json.Unmarshal(b, &f); err != nil {
		// A hint that is not even an object is kept as an all-missing hint
		// so it is reported rather than aborting the whole set.
		*h = Hint{}
		return nil
	}
	*h = Hint{
		InsertReason: f.getString("insertReason", "insert_reason"),
		Confidence:   f.getString("confidence"),
	}
	f.get(&h.SourcePage, "sourcePage", "source_page")
	f.get(&h.SourceLineStart, "sourceLineStart", "source_line_start")
	f.get(&h.SourceLineEnd, "sourceLineEnd", "source_line_end")
	f.get(&h.InsertAfterPage, "insertAfterPage", "insert_after_page")
	f.get(&h.InsertAfterLine, "insertAfterLine", "insert_after_line")
	return nil
}

// Placement is a hint whose fields are all present and typed.
type Placement struct {
	Range      doctree.LineRange
	Anchor     segment.Anchor
	Reason     string
	Confidence doctree.Confidence
}

// FieldError lists the fields of a proposal that could not be used.
type FieldError struct {
	Problems []string
}

func (e *FieldError) Error() string {
	return "malformed proposal: " + strings.Join(e.Problems, "; ")
}

// Resolve types the hint. An absent or zero insertAfterLine means the end
// of the target page; a negative one is rejected.
func (h Hint) Resolve() (Placement, error) {
	var problems []string
	need := func(name string, v Int) {
		if !v.Valid {
			problems = append(problems, fmt.Sprintf("%s %s", name, v.describe()))
		}
	}
	need("sourcePage", h.SourcePage)
	need("sourceLineStart", h.SourceLineStart)
	need("sourceLineEnd", h.SourceLineEnd)
	need("insertAfterPage", h.InsertAfterPage)
	if h.InsertAfterLine.Set && !h.InsertAfterLine.Valid {
		problems = append(problems, "insertAfterLine "+h.InsertAfterLine.describe())
	}
	if h.InsertAfterLine.Valid && h.InsertAfterLine.Value < 0 {
		problems = append(problems, fmt.Sprintf("insertAfterLine is negative: %d", h.InsertAfterLine.Value))
	}
	if len(problems) > 0 {
		return Placement{}, &FieldError{Problems: problems}
	}

	anchor := segment.AtEndOf(h.InsertAfterPage.Value)
	if h.InsertAfterLine.Valid && h.InsertAfterLine.Value > 0 {
		anchor = segment.After(h.InsertAfterPage.Value, h.InsertAfterLine.Value)
	}
	return Placement{
		Range: doctree.LineRange{
			Page:  h.SourcePage.Value,
			Start: h.SourceLineStart.Value,
			End:   h.SourceLineEnd.Value,
		},
		Anchor:     anchor,
		Reason:     h.InsertReason,
		Confidence: doctree.ParseConfidence(h.Confidence),
	}, nil
}

// DecodeHints reads a placement hint set.
func DecodeHints(r io.Reader) (*HintSet, error) {
	var set HintSet
	if err := json.NewDecoder(r).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode placement hints: %w", err)
	}
	return &set, nil
}

// Len returns the number of hints; a nil set has none.
func (s *HintSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.InsertionPoints)
}
