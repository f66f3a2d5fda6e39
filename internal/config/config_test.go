package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "WORKER_COUNT", "MAX_QUEUE_SIZE", "JOB_TTL", "ORACLE_ENABLED", "LINES_PER_PAGE"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Port != "8090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.WorkerCount != 2 || cfg.MaxQueueSize != 50 || cfg.MaxConcurrentOracle != 3 {
		t.Errorf("pool = %d/%d/%d", cfg.WorkerCount, cfg.MaxQueueSize, cfg.MaxConcurrentOracle)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("JobTTL = %v", cfg.JobTTL)
	}
	if cfg.LinesPerPage != 40 {
		t.Errorf("LinesPerPage = %d", cfg.LinesPerPage)
	}
	if cfg.OracleEnabled {
		t.Error("oracle should default to off")
	}
}

func TestLoadOverridesAndFallbacks(t *testing.T) {
	t.Setenv("WORKER_COUNT", "-3")
	t.Setenv("MAX_QUEUE_SIZE", "abc")
	t.Setenv("JOB_TTL", "90s")
	t.Setenv("ORACLE_ENABLED", "true")
	cfg := Load()
	if cfg.WorkerCount != 2 {
		t.Errorf("WorkerCount = %d, want fallback 2", cfg.WorkerCount)
	}
	if cfg.MaxQueueSize != 50 {
		t.Errorf("MaxQueueSize = %d, want fallback 50", cfg.MaxQueueSize)
	}
	if cfg.JobTTL != 90*time.Second {
		t.Errorf("JobTTL = %v", cfg.JobTTL)
	}
	if !cfg.OracleEnabled {
		t.Error("OracleEnabled not read")
	}
}

func TestOracleOptions(t *testing.T) {
	if opts := (Config{}).OracleOptions(); len(opts) != 0 {
		t.Errorf("no endpoint should mean no options, got %d", len(opts))
	}
	t.Setenv("ANTHROPIC_ENDPOINT", "http://localhost:9999/v1/messages")
	cfg := Load()
	if len(cfg.OracleOptions()) != 1 {
		t.Error("endpoint override should yield one option")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"missing api key", Config{}, true},
		{"oracle off", Config{APIKey: "k"}, false},
		{"oracle without key", Config{APIKey: "k", OracleEnabled: true}, true},
		{"oracle with key", Config{APIKey: "k", OracleEnabled: true, AnthropicAPIKey: "a"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

const projectYAML = `
sources:
  - id: sadot
    name: שדות ראשונים
    role: base
    path: books/sadot
    max_page: 222
    chapters:
      - {name: ראשית, page: 0}
      - {name: מטולה, page: 9}
  - id: beit
    name: בית אבא
    role: secondary
    path: /data/beit
    corrections_file: fixes.csv
    corrections:
      - {page: 10, line: 11, find: קיבל אנא, replace: קיבל אבא}
cleaning:
  header_marker: "●"
  max_header_length: 30
  strip_page_numbers: true
  max_page_number_digits: 3
lines_per_page: 35
labels:
  unknown_year: year unknown
strategy: auto
output: out
`

func TestLoadProject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bookweave.yaml")
	if err := os.WriteFile(path, []byte(projectYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "fixes.csv"), []byte("find,replace\nזויים,זרים\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProject(path)
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}

	base, ok := p.Role(RoleBase)
	if !ok || base.ID != "sadot" {
		t.Fatalf("base = %+v, %v", base, ok)
	}
	if got := p.Resolve(base.Path); got != filepath.Join(dir, "books/sadot") {
		t.Errorf("Resolve = %q", got)
	}
	sec, _ := p.Role(RoleSecondary)
	if got := p.Resolve(sec.Path); got != "/data/beit" {
		t.Errorf("absolute path rewritten: %q", got)
	}

	opts, err := p.IngestOptions(sec)
	if err != nil {
		t.Fatalf("IngestOptions: %v", err)
	}
	if len(opts.Corrections) != 2 {
		t.Fatalf("corrections = %d, want inline + file", len(opts.Corrections))
	}
	if opts.Corrections[1].Find != "זויים" {
		t.Errorf("file correction = %+v", opts.Corrections[1])
	}
	if !opts.Normalize {
		t.Error("normalize should default on")
	}
	if opts.Paginate.LinesPerPage != 35 {
		t.Errorf("LinesPerPage = %d", opts.Paginate.LinesPerPage)
	}
	if opts.Cleaning == nil || opts.Cleaning.HeaderMarker != "●" {
		t.Errorf("cleaning = %+v", opts.Cleaning)
	}

	bopts, _ := p.IngestOptions(base)
	if bopts.MaxPage != 222 || len(bopts.Chapters) != 2 {
		t.Errorf("base options = %+v", bopts)
	}
	if p.Labels.WithDefaults().UnknownYear != "year unknown" {
		t.Errorf("labels = %+v", p.Labels)
	}
}

func TestProjectRolesByPosition(t *testing.T) {
	p, err := ParseProject([]byte("sources:\n  - {id: a, path: a}\n  - {id: b, path: b}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := p.Role(RoleBase); s.ID != "a" {
		t.Errorf("base = %q", s.ID)
	}
	if s, _ := p.Role(RoleSecondary); s.ID != "b" {
		t.Errorf("secondary = %q", s.ID)
	}
}

func TestParseProjectErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no sources", "output: x\n"},
		{"missing id", "sources:\n  - {path: a}\n"},
		{"duplicate id", "sources:\n  - {id: a, path: a}\n  - {id: a, path: b}\n"},
		{"missing path", "sources:\n  - {id: a}\n"},
		{"bad role", "sources:\n  - {id: a, path: a, role: tertiary}\n"},
		{"two bases", "sources:\n  - {id: a, path: a, role: base}\n  - {id: b, path: b, role: base}\n"},
		{"unknown key", "sources:\n  - {id: a, path: a}\nfoo: 1\n"},
		{"bad correction", "sources:\n  - {id: a, path: a, corrections: [{find: ''}]}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseProject([]byte(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
