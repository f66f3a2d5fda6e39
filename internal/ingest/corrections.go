package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Correction replaces Find with Replace. Page and Line narrow it to one
// page or one line of a page; nil means every page or line.
type Correction struct {
	Page    *int   `yaml:"page,omitempty" json:"page,omitempty"`
	Line    *int   `yaml:"line,omitempty" json:"line,omitempty"`
	Find    string `yaml:"find" json:"find"`
	Replace string `yaml:"replace" json:"replace"`
}

func (c Correction) matches(page, line int) bool {
	if c.Page != nil && *c.Page != page {
		return false
	}
	if c.Line != nil && *c.Line != line {
		return false
	}
	return true
}

// Validate rejects corrections that could not apply or would change the
// line structure.
func (c Correction) Validate() error {
	if c.Find == "" {
		return errors.New("correction has an empty find string")
	}
	if strings.ContainsAny(c.Find+c.Replace, "\n\f") {
		return fmt.Errorf("correction %q: line breaks are not allowed", c.Find)
	}
	if c.Line != nil && c.Page == nil {
		return fmt.Errorf("correction %q: line given without page", c.Find)
	}
	return nil
}

// applyCorrections rewrites lines in place and returns how many
// replacements were made per correction index.
func applyCorrections(corrections []Correction, pageNumber int, lines []string) []int {
	counts := make([]int, len(corrections))
	for i, c := range corrections {
		for j := range lines {
			if !c.matches(pageNumber, j+1) {
				continue
			}
			if n := strings.Count(lines[j], c.Find); n > 0 {
				lines[j] = strings.ReplaceAll(lines[j], c.Find, c.Replace)
				counts[i] += n
			}
		}
	}
	return counts
}

// LoadCorrections reads a correction table from a .csv, .yaml or .yml file.
func LoadCorrections(path string) ([]Correction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ParseCorrectionsCSV(f)
	case ".yaml", ".yml":
		return ParseCorrectionsYAML(f)
	default:
		return nil, fmt.Errorf("unsupported correction table: %s", path)
	}
}

// ParseCorrectionsYAML reads a YAML list of corrections.
func ParseCorrectionsYAML(r io.Reader) ([]Correction, error) {
	var out []Correction
	if err := yaml.NewDecoder(r).Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse corrections yaml: %w", err)
	}
	for i, c := range out {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("correction %d: %w", i+1, err)
		}
	}
	return out, nil
}

// ParseCorrectionsCSV reads a correction table whose header row names the
// columns find, replace and optionally page and line.
func ParseCorrectionsCSV(r io.Reader) ([]Correction, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	col := map[string]int{}
	for i, h := range records[0] {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := col["find"]; !ok {
		return nil, errors.New("parse csv: missing find column")
	}
	if _, ok := col["replace"]; !ok {
		return nil, errors.New("parse csv: missing replace column")
	}

	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
	optInt := func(row []string, name string, rowNum int) (*int, error) {
		v := strings.TrimSpace(cell(row, name))
		if v == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %s %q is not a number", rowNum, name, v)
		}
		return &n, nil
	}

	var out []Correction
	for i, row := range records[1:] {
		rowNum := i + 2 // 1-indexed, skip header
		c := Correction{Find: cell(row, "find"), Replace: cell(row, "replace")}
		if c.Page, err = optInt(row, "page", rowNum); err != nil {
			return nil, err
		}
		if c.Line, err = optInt(row, "line", rowNum); err != nil {
			return nil, err
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}
		out = append(out, c)
	}
	return out, nil
}
