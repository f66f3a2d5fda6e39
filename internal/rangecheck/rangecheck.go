// Package rangecheck validates line ranges against a page and reports how a
// set of ranges covers it. Nothing here mutates its input or panics on
// malformed oracle data.
package rangecheck

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dgallion1/bookweave/internal/doctree"
)

// Reason classifies why a range was rejected.
type Reason string

const (
	NonPositiveBound Reason = "non_positive_bound"
	InvertedRange    Reason = "inverted_range"
	OutOfBounds      Reason = "out_of_bounds"
)

// ErrInvalidRange is matched by every *RangeError.
var ErrInvalidRange = errors.New("invalid line range")

// RangeError describes a rejected range. Ranges are never clamped.
type RangeError struct {
	Page   int
	Start  int
	End    int
	Max    int
	Reason Reason
}

func (e *RangeError) Error() string {
	switch e.Reason {
	case NonPositiveBound:
		return fmt.Sprintf("page %d lines %d-%d: line numbers must be >= 1", e.Page, e.Start, e.End)
	case InvertedRange:
		return fmt.Sprintf("page %d: line_start (%d) > line_end (%d)", e.Page, e.Start, e.End)
	default:
		return fmt.Sprintf("page %d: line_end (%d) > max line (%d)", e.Page, e.End, e.Max)
	}
}

func (e *RangeError) Is(target error) bool {
	return target == ErrInvalidRange
}

// Validate checks that start..end is a well-formed, in-bounds range of page.
func Validate(page *doctree.Page, start, end int) error {
	if start < 1 || end < 1 {
		return &RangeError{Page: page.Number, Start: start, End: end, Max: page.LineCount(), Reason: NonPositiveBound}
	}
	if start > end {
		return &RangeError{Page: page.Number, Start: start, End: end, Max: page.LineCount(), Reason: InvertedRange}
	}
	if end > page.LineCount() {
		return &RangeError{Page: page.Number, Start: start, End: end, Max: page.LineCount(), Reason: OutOfBounds}
	}
	return nil
}

// ReasonOf extracts the rejection reason from err, or "" if err is not a range error.
func ReasonOf(err error) Reason {
	var re *RangeError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}

// OverlapPair is two valid ranges that share at least one line.
type OverlapPair struct {
	A      doctree.LineRange `json:"a"`
	B      doctree.LineRange `json:"b"`
	Shared []int             `json:"shared"`
}

// InvalidRange is a rejected range with its position in the input.
type InvalidRange struct {
	Index  int               `json:"index"`
	Range  doctree.LineRange `json:"range"`
	Reason Reason            `json:"reason"`
	Error  string            `json:"error"`
}

// Coverage is the pre-merge quality picture of one page.
type Coverage struct {
	Page     int            `json:"page"`
	Lines    int            `json:"total_lines"`
	Covered  []int          `json:"covered_lines"`
	Gaps     []int          `json:"missing_lines"`
	Overlaps []OverlapPair  `json:"overlapping_ranges"`
	Invalid  []InvalidRange `json:"invalid_ranges"`
}

// FullyTagged reports whether every non-empty line is covered exactly once.
func (c Coverage) FullyTagged() bool {
	return len(c.Gaps) == 0 && len(c.Overlaps) == 0
}

// ComputeCoverage reports which lines of page the ranges cover, which
// non-empty lines they miss, and which valid ranges overlap pairwise.
// Invalid ranges are listed and otherwise ignored.
func ComputeCoverage(page *doctree.Page, ranges []doctree.LineRange) Coverage {
	cov := Coverage{
		Page:     page.Number,
		Lines:    page.LineCount(),
		Overlaps: []OverlapPair{},
		Invalid:  []InvalidRange{},
	}

	valid := make([]doctree.LineRange, 0, len(ranges))
	covered := make(map[int]bool)
	for i, r := range ranges {
		if err := Validate(page, r.Start, r.End); err != nil {
			cov.Invalid = append(cov.Invalid, InvalidRange{
				Index:  i,
				Range:  r,
				Reason: ReasonOf(err),
				Error:  err.Error(),
			})
			continue
		}
		for _, prev := range valid {
			if shared := sharedLines(prev, r); len(shared) > 0 {
				cov.Overlaps = append(cov.Overlaps, OverlapPair{A: prev, B: r, Shared: shared})
			}
		}
		valid = append(valid, r)
		for n := r.Start; n <= r.End; n++ {
			covered[n] = true
		}
	}

	cov.Covered = make([]int, 0, len(covered))
	for n := range covered {
		cov.Covered = append(cov.Covered, n)
	}
	sort.Ints(cov.Covered)

	cov.Gaps = []int{}
	for _, l := range page.Lines {
		if !l.Empty && !covered[l.Number] {
			cov.Gaps = append(cov.Gaps, l.Number)
		}
	}
	return cov
}

func sharedLines(a, b doctree.LineRange) []int {
	lo, hi := max(a.Start, b.Start), min(a.End, b.End)
	if lo > hi {
		return nil
	}
	shared := make([]int, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		shared = append(shared, n)
	}
	return shared
}
