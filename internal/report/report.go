// Package report accumulates everything a merge run skipped, rejected or
// noticed, for human review after the run.
package report

import (
	"fmt"
	"sort"

	"github.com/dgallion1/bookweave/internal/rangecheck"
)

// Kind classifies a report entry.
type Kind string

const (
	// InputValidation is a malformed page/line reference; the unit is skipped.
	InputValidation Kind = "input_validation"
	// ResolutionFailure is a reference that does not match real content.
	ResolutionFailure Kind = "resolution_failure"
	// StructuralInvariant is a broken source; the run aborts.
	StructuralInvariant Kind = "structural_invariant"
	// DuplicateSkipped is a placement already resolved earlier in the run.
	DuplicateSkipped Kind = "duplicate_skipped"
	// EmptyRangeSkipped is a valid tag whose lines hold no text.
	EmptyRangeSkipped Kind = "empty_range_skipped"
	// AnchorClamped is a placement whose target line was past the end of its page.
	AnchorClamped Kind = "anchor_clamped"
	// OracleFailure is a page the tagging/placement oracle gave no usable answer for.
	OracleFailure Kind = "oracle_failure"
)

// Stage names where an issue was raised.
const (
	StagePlacement = "placement"
	StageSplice    = "splice"
	StageTags      = "tags"
	StageOracle    = "oracle"
	StageSource    = "source"
)

// Issue is one reported unit.
type Issue struct {
	Kind     Kind   `json:"kind"`
	Stage    string `json:"stage"`
	SourceID string `json:"source_id,omitempty"`
	Index    int    `json:"index"` // position in the hint or tag list; -1 if not applicable
	Page     int    `json:"page"`
	Start    int    `json:"line_start,omitempty"`
	End      int    `json:"line_end,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Detail   string `json:"detail"`
}

func (i Issue) String() string {
	loc := fmt.Sprintf("page %d", i.Page)
	if i.Start > 0 || i.End > 0 {
		loc = fmt.Sprintf("page %d lines %d-%d", i.Page, i.Start, i.End)
	}
	if i.SourceID != "" {
		loc = i.SourceID + " " + loc
	}
	return fmt.Sprintf("[%s/%s] %s: %s", i.Stage, i.Kind, loc, i.Detail)
}

// PageCoverage ties a coverage result to its source.
type PageCoverage struct {
	SourceID string              `json:"source_id"`
	Coverage rangecheck.Coverage `json:"coverage"`
}

// Count is a labelled tally.
type Count struct {
	Label string `json:"label"`
	N     int    `json:"count"`
}

// Stats summarizes the assembled document.
type Stats struct {
	Segments     int     `json:"segments"`
	TextLength   int     `json:"text_length"`
	ByYear       []Count `json:"by_year,omitempty"`
	ByLocation   []Count `json:"by_location,omitempty"`
	ByConfidence []Count `json:"by_confidence,omitempty"`
}

// Report is the run report.
type Report struct {
	RunID string `json:"run_id"`
	Mode  string `json:"mode"`

	BasePages          int `json:"base_pages"`
	HintsTotal         int `json:"hints_total"`
	PlacementsResolved int `json:"placements_resolved"`
	TagsTotal          int `json:"tags_total"`
	TagsUsed           int `json:"tags_used"`

	InvalidRanges int `json:"invalid_ranges"`
	Overlaps      int `json:"overlapping_ranges"`
	CoverageGaps  int `json:"coverage_gaps"`

	Coverage []PageCoverage `json:"coverage"`
	Issues   []Issue        `json:"issues"`
	Stats    Stats          `json:"stats"`
}

// New returns an empty report for a run.
func New(runID string) *Report {
	return &Report{RunID: runID, Coverage: []PageCoverage{}, Issues: []Issue{}}
}

// Add records an issue.
func (r *Report) Add(i Issue) {
	r.Issues = append(r.Issues, i)
}

// AddCoverage records a page's coverage and folds it into the totals.
func (r *Report) AddCoverage(sourceID string, cov rangecheck.Coverage) {
	r.Coverage = append(r.Coverage, PageCoverage{SourceID: sourceID, Coverage: cov})
	r.InvalidRanges += len(cov.Invalid)
	r.Overlaps += len(cov.Overlaps)
	r.CoverageGaps += len(cov.Gaps)
}

// Count returns how many issues of kind k were recorded.
func (r *Report) Count(k Kind) int {
	n := 0
	for _, i := range r.Issues {
		if i.Kind == k {
			n++
		}
	}
	return n
}

// Skipped counts every unit left out of the document.
func (r *Report) Skipped() int {
	n := 0
	for _, i := range r.Issues {
		if i.Kind != AnchorClamped {
			n++
		}
	}
	return n
}

// Clean reports whether the run had nothing to flag.
func (r *Report) Clean() bool {
	return len(r.Issues) == 0 && r.InvalidRanges == 0 && r.Overlaps == 0 && r.CoverageGaps == 0
}

// Tally turns a label->count map into counts sorted by count desc, then label.
// limit <= 0 keeps everything.
func Tally(m map[string]int, limit int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Label: k, N: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Label < out[j].Label
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
