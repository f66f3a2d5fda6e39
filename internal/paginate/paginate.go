// Package paginate cuts a parsed DocTree into numbered pages of numbered
// lines, the addressing every later stage relies on.
package paginate

import (
	"strings"

	"github.com/dgallion1/bookweave/internal/doctree"
)

// Config controls pagination.
type Config struct {
	LinesPerPage  int       // Page length for text that carries no page breaks.
	FirstPage     int       // Number of the first generated page.
	RunOnChapters bool      // Let a new chapter continue the current page.
	Chapters      []Chapter // Start-page table; when set it replaces heading labels.
}

// Chapter names the chapter that starts at Page.
type Chapter struct {
	Name string `yaml:"name" json:"name"`
	Page int    `yaml:"page" json:"page"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{LinesPerPage: 40, FirstPage: 1}
}

// PageBreak splits pages inside node text.
const PageBreak = "\f"

type pager struct {
	cfg     Config
	pages   []doctree.Page
	next    int
	chapter string
	buf     []string
}

// Pages walks tree and produces pages in reading order. Nodes that already
// are physical pages keep their number unless it would repeat or go
// backwards; other text is cut at page breaks, at chapter starts and every
// LinesPerPage lines. Pages with no text are dropped.
func Pages(tree *doctree.DocTree, cfg Config) []doctree.Page {
	if cfg.LinesPerPage <= 0 {
		cfg.LinesPerPage = 40
	}
	if cfg.FirstPage < 0 {
		cfg.FirstPage = 1
	}
	p := &pager{cfg: cfg, next: cfg.FirstPage}

	for _, child := range tree.Children {
		p.walkNode(child, "")
	}
	p.flush()

	if len(cfg.Chapters) > 0 {
		for i := range p.pages {
			p.pages[i].Chapter = ChapterFor(cfg.Chapters, p.pages[i].Number)
		}
	}
	return p.pages
}

// Source paginates tree into a checked source.
func Source(id, name string, tree *doctree.DocTree, cfg Config) (*doctree.Source, error) {
	if name == "" {
		name = tree.Title
	}
	return doctree.NewSource(id, name, Pages(tree, cfg))
}

// walkNode recursively visits DocNodes; the innermost heading is the chapter.
func (p *pager) walkNode(node *doctree.DocNode, chapter string) {
	if node.Title != "" {
		chapter = node.Title
	}

	if node.Paged {
		p.flush()
		number := node.Page
		if number < p.next {
			number = p.next
		}
		p.chapter = chapter
		p.buf = splitLines(node.Text)
		p.emit(number)
	} else if node.Text != "" {
		if chapter != p.chapter && !p.cfg.RunOnChapters {
			p.flush()
		}
		p.chapter = chapter
		for i, part := range strings.Split(node.Text, PageBreak) {
			if i > 0 {
				p.flush()
			}
			for _, line := range splitLines(part) {
				p.buf = append(p.buf, line)
				if len(p.buf) >= p.cfg.LinesPerPage {
					p.flush()
				}
			}
		}
	}

	for _, child := range node.Children {
		p.walkNode(child, chapter)
	}
}

func (p *pager) flush() {
	p.emit(p.next)
}

// emit turns the buffer into page number, trimming blank lines at its edges.
func (p *pager) emit(number int) {
	buf := p.buf
	p.buf = nil
	for len(buf) > 0 && strings.TrimSpace(buf[0]) == "" {
		buf = buf[1:]
	}
	for len(buf) > 0 && strings.TrimSpace(buf[len(buf)-1]) == "" {
		buf = buf[:len(buf)-1]
	}
	if len(buf) == 0 {
		return
	}
	lines := make([]doctree.Line, len(buf))
	for i, l := range buf {
		lines[i] = doctree.NewLine(i+1, l)
	}
	p.pages = append(p.pages, doctree.Page{Number: number, Chapter: p.chapter, Lines: lines})
	p.next = number + 1
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// ChapterFor returns the chapter whose start page is the greatest one not
// after page, or "" when page precedes every chapter.
func ChapterFor(chapters []Chapter, page int) string {
	best, name := -1, ""
	for _, c := range chapters {
		if c.Page <= page && c.Page > best {
			best, name = c.Page, c.Name
		}
	}
	return name
}
