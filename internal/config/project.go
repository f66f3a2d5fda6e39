package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/bookweave/internal/assemble"
	"github.com/dgallion1/bookweave/internal/ingest"
	"github.com/dgallion1/bookweave/internal/paginate"
)

// Source roles in a project.
const (
	RoleBase      = "base"
	RoleSecondary = "secondary"
)

// Project is a bookweave.yaml file: the two books, how to clean them and
// how to label the merged text. Relative paths resolve against the
// directory holding the file.
type Project struct {
	Sources      []SourceConfig   `yaml:"sources"`
	Cleaning     *ingest.Cleaning `yaml:"cleaning"`
	Normalize    *bool            `yaml:"normalize"`
	LinesPerPage int              `yaml:"lines_per_page"`
	Labels       assemble.Labels  `yaml:"labels"`
	Strategy     string           `yaml:"strategy"`
	Output       string           `yaml:"output"`

	dir string
}

// SourceConfig describes one book. Corrections address the book's own
// page files.
type SourceConfig struct {
	ID              string              `yaml:"id"`
	Name            string              `yaml:"name"`
	Role            string              `yaml:"role"`
	Path            string              `yaml:"path"`
	Chapters        []paginate.Chapter  `yaml:"chapters"`
	MaxPage         int                 `yaml:"max_page"`
	Corrections     []ingest.Correction `yaml:"corrections"`
	CorrectionsFile string              `yaml:"corrections_file"`
}

// LoadProject reads and validates a project file.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := ParseProject(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.dir = filepath.Dir(path)
	return p, nil
}

// ParseProject decodes project YAML. Unknown keys are rejected.
func ParseProject(data []byte) (*Project, error) {
	var p Project
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse project: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks source ids, roles and correction entries.
func (p *Project) Validate() error {
	if len(p.Sources) == 0 {
		return errors.New("project has no sources")
	}
	seen := map[string]bool{}
	roles := map[string]int{}
	for i, s := range p.Sources {
		if s.ID == "" {
			return fmt.Errorf("source %d: id is required", i+1)
		}
		if seen[s.ID] {
			return fmt.Errorf("source %q: duplicate id", s.ID)
		}
		seen[s.ID] = true
		if s.Path == "" {
			return fmt.Errorf("source %q: path is required", s.ID)
		}
		switch s.Role {
		case RoleBase, RoleSecondary:
			roles[s.Role]++
		case "":
		default:
			return fmt.Errorf("source %q: unknown role %q", s.ID, s.Role)
		}
	}
	if roles[RoleBase] > 1 || roles[RoleSecondary] > 1 {
		return errors.New("at most one base and one secondary source")
	}
	for _, s := range p.Sources {
		for i, c := range s.Corrections {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("source %q: correction %d: %w", s.ID, i+1, err)
			}
		}
	}
	return nil
}

// Source returns the source with id.
func (p *Project) Source(id string) (SourceConfig, bool) {
	for _, s := range p.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return SourceConfig{}, false
}

// Role returns the source playing role. Without explicit roles the first
// source is the base and the second the secondary.
func (p *Project) Role(role string) (SourceConfig, bool) {
	for _, s := range p.Sources {
		if s.Role == role {
			return s, true
		}
	}
	i := 0
	if role == RoleSecondary {
		i = 1
	}
	if i < len(p.Sources) && p.Sources[i].Role == "" {
		return p.Sources[i], true
	}
	return SourceConfig{}, false
}

// Resolve makes a project-relative path absolute.
func (p *Project) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || p.dir == "" {
		return path
	}
	return filepath.Join(p.dir, path)
}

// IngestOptions builds the loader options for s, reading the corrections
// file if one is named.
func (p *Project) IngestOptions(s SourceConfig) (ingest.Options, error) {
	opts := ingest.Options{
		ID:        s.ID,
		Name:      s.Name,
		Chapters:  s.Chapters,
		MaxPage:   s.MaxPage,
		Normalize: p.Normalize == nil || *p.Normalize,
		Paginate:  paginate.DefaultConfig(),
	}
	if p.LinesPerPage > 0 {
		opts.Paginate.LinesPerPage = p.LinesPerPage
	}
	if p.Cleaning != nil {
		c := *p.Cleaning
		opts.Cleaning = &c
	}

	opts.Corrections = append(opts.Corrections, s.Corrections...)
	if s.CorrectionsFile != "" {
		extra, err := ingest.LoadCorrections(p.Resolve(s.CorrectionsFile))
		if err != nil {
			return opts, fmt.Errorf("load corrections: %w", err)
		}
		opts.Corrections = append(opts.Corrections, extra...)
	}
	return opts, nil
}
