package weave

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/bookweave/internal/assemble"
	"github.com/dgallion1/bookweave/internal/doctree"
	"github.com/dgallion1/bookweave/internal/proposal"
)

// Output file names written by WriteOutputs.
const (
	TextFile      = "merged.txt"
	StructureFile = "structure.json"
	ReportFile    = "report.json"
)

// ReadSource reads a lined-page set from path.
func ReadSource(path string) (*doctree.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	src, err := doctree.DecodeSource(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

// ReadTags reads a tag set. An empty path yields nil.
func ReadTags(path string) (*proposal.TagSet, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tags, err := proposal.DecodeTags(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tags, nil
}

// ReadHints reads a placement hint set. An empty path yields nil.
func ReadHints(path string) (*proposal.HintSet, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	hints, err := proposal.DecodeHints(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return hints, nil
}

// StructureMeta heads the structure file.
type StructureMeta struct {
	GeneratedAt   string   `json:"generatedAt"`
	RunID         string   `json:"runId"`
	Mode          Strategy `json:"mode"`
	Books         []string `json:"books"`
	TotalSegments int      `json:"totalSegments"`
}

// Structure is the manifest file written next to the merged text.
type Structure struct {
	Metadata  StructureMeta     `json:"metadata"`
	Structure []assemble.Record `json:"structure"`
}

// NewStructure wraps a result's manifest with run metadata.
func NewStructure(res *Result, books []string, now time.Time) Structure {
	return Structure{
		Metadata: StructureMeta{
			GeneratedAt:   now.UTC().Format(time.RFC3339),
			RunID:         res.RunID,
			Mode:          res.Mode,
			Books:         books,
			TotalSegments: len(res.Document.Manifest),
		},
		Structure: res.Document.Manifest,
	}
}

// WriteOutputs writes the merged text, the structure file and the report
// into dir, creating it if needed. It returns the written paths.
func WriteOutputs(dir string, res *Result, books []string, now time.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	textPath := filepath.Join(dir, TextFile)
	if err := os.WriteFile(textPath, []byte(res.Document.Text), 0o644); err != nil {
		return nil, err
	}
	paths := []string{textPath}

	for _, out := range []struct {
		name  string
		value any
	}{
		{StructureFile, NewStructure(res, books, now)},
		{ReportFile, res.Report},
	} {
		path := filepath.Join(dir, out.name)
		if err := WriteJSON(path, out.value); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteJSON writes v to path as indented JSON with Hebrew left unescaped.
func WriteJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
