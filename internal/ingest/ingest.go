// Package ingest loads a book into a line-addressable source: from a
// directory of per-page text files or from a single book file, with
// corrections, Unicode normalization and page cleaning applied.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dgallion1/bookweave/internal/doctree"
	"github.com/dgallion1/bookweave/internal/paginate"
	"github.com/dgallion1/bookweave/internal/parser"
)

// Options describes one source to load.
type Options struct {
	ID          string
	Name        string
	Chapters    []paginate.Chapter
	MaxPage     int // ignore page files above this number; 0 means no limit
	Cleaning    *Cleaning
	Corrections []Correction
	Normalize   bool
	Paginate    paginate.Config
	Parser      parser.Options
}

// Summary reports what loading did.
type Summary struct {
	SourceID           string   `json:"source_id"`
	Pages              int      `json:"pages"`
	Lines              int      `json:"lines"`
	NonEmptyLines      int      `json:"non_empty_lines"`
	HeadersDropped     int      `json:"headers_dropped"`
	PageNumbersDropped int      `json:"page_numbers_dropped"`
	CorrectionsApplied int      `json:"corrections_applied"`
	UnusedCorrections  int      `json:"unused_corrections"`
	Skipped            []string `json:"skipped,omitempty"`
}

type rawPage struct {
	number  int
	chapter string
	lines   []string
}

var pageFile = regexp.MustCompile(`^(\d+)\.txt$`)

// Load reads path, a directory of NNN.txt page files or a single book file
// in any format the parser package handles.
func Load(ctx context.Context, path string, opts Options) (*doctree.Source, Summary, error) {
	sum := Summary{SourceID: opts.ID}
	info, err := os.Stat(path)
	if err != nil {
		return nil, sum, err
	}

	var pages []rawPage
	name := opts.Name
	if info.IsDir() {
		pages, sum.Skipped, err = readDir(ctx, path, opts.MaxPage)
	} else {
		var title string
		pages, title, err = readFile(path, opts)
		if name == "" {
			name = title
		}
	}
	if err != nil {
		return nil, sum, err
	}

	src, err := build(opts.ID, name, pages, opts, &sum)
	if err != nil {
		return nil, sum, err
	}
	return src, sum, nil
}

// build applies corrections, normalization, cleaning and the chapter table
// to raw pages, then numbers their lines. Pages left without text are
// dropped.
func build(id, name string, pages []rawPage, opts Options, sum *Summary) (*doctree.Source, error) {
	for _, c := range opts.Corrections {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	used := make([]int, len(opts.Corrections))

	out := make([]doctree.Page, 0, len(pages))
	for _, p := range pages {
		lines := append([]string(nil), p.lines...)
		for i, n := range applyCorrections(opts.Corrections, p.number, lines) {
			used[i] += n
			sum.CorrectionsApplied += n
		}
		if opts.Normalize {
			for i := range lines {
				lines[i] = Normalize(lines[i])
			}
		}
		if opts.Cleaning != nil {
			var headers, numbers int
			lines, headers, numbers = opts.Cleaning.Clean(lines)
			sum.HeadersDropped += headers
			sum.PageNumbersDropped += numbers
		}
		for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
			lines = lines[:len(lines)-1]
		}
		if len(lines) == 0 {
			continue
		}

		page := doctree.Page{Number: p.number, Chapter: p.chapter, Lines: make([]doctree.Line, len(lines))}
		if len(opts.Chapters) > 0 {
			page.Chapter = paginate.ChapterFor(opts.Chapters, p.number)
		}
		for i, l := range lines {
			page.Lines[i] = doctree.NewLine(i+1, l)
		}
		sum.Lines += page.LineCount()
		sum.NonEmptyLines += page.NonEmptyLines()
		out = append(out, page)
	}

	for _, n := range used {
		if n == 0 {
			sum.UnusedCorrections++
		}
	}
	sum.Pages = len(out)

	src, err := doctree.NewSource(id, name, out)
	if err != nil {
		return nil, fmt.Errorf("build source %s: %w", id, err)
	}
	return src, nil
}

// readDir reads page files named by page number, such as 007.txt.
func readDir(ctx context.Context, dir string, maxPage int) ([]rawPage, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	var pages []rawPage
	var skipped []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if e.IsDir() {
			continue
		}
		m := pageFile.FindStringSubmatch(e.Name())
		if m == nil {
			skipped = append(skipped, e.Name())
			continue
		}
		number, err := strconv.Atoi(m[1])
		if err != nil || (maxPage > 0 && number > maxPage) {
			skipped = append(skipped, e.Name())
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, nil, fmt.Errorf("read page %s: %w", e.Name(), err)
		}
		pages = append(pages, rawPage{number: number, lines: splitLines(string(data))})
	}

	sort.SliceStable(pages, func(i, j int) bool { return pages[i].number < pages[j].number })
	return pages, skipped, nil
}

func readFile(path string, opts Options) ([]rawPage, string, error) {
	p, err := parser.ForFile(path, opts.Parser)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	tree, err := p.Parse(f, filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("parse %s: %w", path, err)
	}

	cfg := opts.Paginate
	cfg.Chapters = opts.Chapters
	var pages []rawPage
	for _, pg := range paginate.Pages(tree, cfg) {
		lines := make([]string, len(pg.Lines))
		for i, l := range pg.Lines {
			lines[i] = l.Text
		}
		pages = append(pages, rawPage{number: pg.Number, chapter: pg.Chapter, lines: lines})
	}
	return pages, tree.Title, nil
}

func splitLines(s string) []string {
	s = strings.TrimPrefix(strings.ReplaceAll(s, "\r\n", "\n"), "\ufeff")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
