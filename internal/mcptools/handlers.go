package mcptools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dgallion1/bookweave/internal/assemble"
	"github.com/dgallion1/bookweave/internal/weave"
)

// MergeSourcesInput is the input for the merge_sources tool.
type MergeSourcesInput struct {
	BasePath      string `json:"basePath" jsonschema:"path to the base source as lined-page JSON"`
	SecondaryPath string `json:"secondaryPath" jsonschema:"path to the secondary source as lined-page JSON"`
	TagsPath      string `json:"tagsPath,omitempty" jsonschema:"path to a tag set JSON file"`
	HintsPath     string `json:"hintsPath,omitempty" jsonschema:"path to a placement hint set JSON file"`
	Strategy      string `json:"strategy,omitempty" jsonschema:"auto, splice or grouped (default: auto)"`
	OutDir        string `json:"outDir,omitempty" jsonschema:"directory to write merged.txt, structure.json and report.json into"`
}

// MergeSourcesOutput is the result of the merge_sources tool.
type MergeSourcesOutput struct {
	RunID    string            `json:"runId"`
	Mode     string            `json:"mode"`
	Text     string            `json:"text"`
	Manifest []assemble.Record `json:"manifest"`
	Report   ReportSummary     `json:"report"`
	Written  []string          `json:"written,omitempty"`
}

// ReportSummary is the part of the run report an agent acts on.
type ReportSummary struct {
	Segments           int      `json:"segments"`
	PlacementsResolved int      `json:"placementsResolved"`
	TagsUsed           int      `json:"tagsUsed"`
	Skipped            int      `json:"skipped"`
	Clean              bool     `json:"clean"`
	Issues             []string `json:"issues"`
}

// CheckCoverageInput is the input for the check_coverage tool.
type CheckCoverageInput struct {
	SourcePath string `json:"sourcePath" jsonschema:"path to the source as lined-page JSON"`
	TagsPath   string `json:"tagsPath" jsonschema:"path to the tag set JSON file"`
}

// PageCoverage summarizes one tagged page.
type PageCoverage struct {
	Page        int   `json:"page"`
	TotalLines  int   `json:"totalLines"`
	Covered     int   `json:"covered"`
	Missing     []int `json:"missingLines"`
	Overlaps    int   `json:"overlaps"`
	Invalid     int   `json:"invalidRanges"`
	FullyTagged bool  `json:"fullyTagged"`
}

// CheckCoverageOutput is the result of the check_coverage tool.
type CheckCoverageOutput struct {
	SourceID    string         `json:"sourceId"`
	Pages       []PageCoverage `json:"pages"`
	FullyTagged bool           `json:"fullyTagged"`
}

// Service holds what the tool handlers share.
type Service struct {
	log *slog.Logger
	now func() time.Time
}

// NewService creates the tool service.
func NewService(log *slog.Logger) *Service {
	return &Service{log: log, now: time.Now}
}

// MergeSources runs one merge over files on disk.
func (s *Service) MergeSources(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input MergeSourcesInput,
) (*mcp.CallToolResult, MergeSourcesOutput, error) {
	if input.BasePath == "" || input.SecondaryPath == "" {
		return nil, MergeSourcesOutput{}, fmt.Errorf("basePath and secondaryPath are required")
	}
	strategy, err := weave.ParseStrategy(input.Strategy)
	if err != nil {
		return nil, MergeSourcesOutput{}, err
	}

	base, err := weave.ReadSource(input.BasePath)
	if err != nil {
		return nil, MergeSourcesOutput{}, fmt.Errorf("base: %w", err)
	}
	secondary, err := weave.ReadSource(input.SecondaryPath)
	if err != nil {
		return nil, MergeSourcesOutput{}, fmt.Errorf("secondary: %w", err)
	}
	tags, err := weave.ReadTags(input.TagsPath)
	if err != nil {
		return nil, MergeSourcesOutput{}, fmt.Errorf("tags: %w", err)
	}
	hints, err := weave.ReadHints(input.HintsPath)
	if err != nil {
		return nil, MergeSourcesOutput{}, fmt.Errorf("hints: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, MergeSourcesOutput{}, err
	}

	res, err := weave.Run(weave.Input{
		Base:      base,
		Secondary: secondary,
		Tags:      tags,
		Hints:     hints,
		Strategy:  strategy,
	})
	if err != nil {
		return nil, MergeSourcesOutput{}, err
	}

	rep := res.Report
	out := MergeSourcesOutput{
		RunID:    res.RunID,
		Mode:     string(res.Mode),
		Text:     res.Document.Text,
		Manifest: res.Document.Manifest,
		Report: ReportSummary{
			Segments:           rep.Stats.Segments,
			PlacementsResolved: rep.PlacementsResolved,
			TagsUsed:           rep.TagsUsed,
			Skipped:            rep.Skipped(),
			Clean:              rep.Clean(),
			Issues:             make([]string, 0, len(rep.Issues)),
		},
	}
	for _, i := range rep.Issues {
		out.Report.Issues = append(out.Report.Issues, i.String())
	}

	if input.OutDir != "" {
		books := []string{base.DisplayName(), secondary.DisplayName()}
		out.Written, err = weave.WriteOutputs(input.OutDir, res, books, s.now())
		if err != nil {
			return nil, MergeSourcesOutput{}, fmt.Errorf("write outputs: %w", err)
		}
	}

	s.log.Info("merge_sources complete",
		"run_id", res.RunID,
		"mode", res.Mode,
		"segments", len(res.Document.Manifest),
		"skipped", out.Report.Skipped,
	)
	return nil, out, nil
}

// CheckCoverage reports tag coverage without merging.
func (s *Service) CheckCoverage(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input CheckCoverageInput,
) (*mcp.CallToolResult, CheckCoverageOutput, error) {
	if input.SourcePath == "" || input.TagsPath == "" {
		return nil, CheckCoverageOutput{}, fmt.Errorf("sourcePath and tagsPath are required")
	}
	src, err := weave.ReadSource(input.SourcePath)
	if err != nil {
		return nil, CheckCoverageOutput{}, err
	}
	tags, err := weave.ReadTags(input.TagsPath)
	if err != nil {
		return nil, CheckCoverageOutput{}, err
	}

	out := CheckCoverageOutput{SourceID: src.ID, Pages: []PageCoverage{}, FullyTagged: true}
	for _, pc := range weave.Coverage(src, tags) {
		c := pc.Coverage
		pcov := PageCoverage{
			Page:        c.Page,
			TotalLines:  c.Lines,
			Covered:     len(c.Covered),
			Missing:     append([]int{}, c.Gaps...),
			Overlaps:    len(c.Overlaps),
			Invalid:     len(c.Invalid),
			FullyTagged: c.FullyTagged(),
		}
		out.FullyTagged = out.FullyTagged && pcov.FullyTagged
		out.Pages = append(out.Pages, pcov)
	}
	return nil, out, nil
}
