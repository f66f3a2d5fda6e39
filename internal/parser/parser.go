// Package parser turns book files into a DocTree of chapters whose text
// keeps one physical line per "\n". A form feed ("\f") inside node text
// marks a page break for the paginator.
package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/bookweave/internal/doctree"
)

// PageBreak separates pages inside node text.
const PageBreak = "\f"

// Parser converts raw document bytes into a DocTree.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.DocTree, error)
}

// Options tune individual parsers.
type Options struct {
	PDFFallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".xhtml":    true,
	".pdf":      true,
	".docx":     true,
	".epub":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm", ".xhtml":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".epub":
		return &EPUBParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func titleFrom(filename string) string {
	return strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
}

// headingTree nests text under headings by level. Text added before any
// heading belongs to the root and is returned as a leading untitled node.
type headingTree struct {
	root  *doctree.DocNode
	stack []headingEntry
	text  strings.Builder
}

type headingEntry struct {
	node  *doctree.DocNode
	level int
}

func newHeadingTree() *headingTree {
	root := &doctree.DocNode{}
	return &headingTree{root: root, stack: []headingEntry{{node: root, level: 0}}}
}

// heading opens a section at level, closing deeper or equal ones.
func (h *headingTree) heading(level int, title string) {
	h.flush()
	n := &doctree.DocNode{Title: title}
	for len(h.stack) > 1 && h.stack[len(h.stack)-1].level >= level {
		h.stack = h.stack[:len(h.stack)-1]
	}
	parent := h.stack[len(h.stack)-1].node
	parent.Children = append(parent.Children, n)
	h.stack = append(h.stack, headingEntry{node: n, level: level})
}

// block appends a block of text separated from the previous one by a blank line.
func (h *headingTree) block(t string) {
	t = strings.Trim(t, "\n")
	if strings.TrimSpace(t) == "" {
		return
	}
	if h.text.Len() > 0 && !strings.HasSuffix(h.text.String(), PageBreak) {
		h.text.WriteString("\n\n")
	}
	h.text.WriteString(t)
}

// pageBreak forces the next block onto a new page.
func (h *headingTree) pageBreak() {
	if h.text.Len() > 0 {
		h.text.WriteString(PageBreak)
	}
}

func (h *headingTree) flush() {
	t := strings.Trim(h.text.String(), "\n"+PageBreak)
	h.text.Reset()
	if strings.TrimSpace(t) == "" {
		return
	}
	top := h.stack[len(h.stack)-1].node
	if top.Text != "" {
		top.Text += "\n\n" + t
	} else {
		top.Text = t
	}
}

// children returns the finished sections, with any text that preceded the
// first heading as an untitled first node.
func (h *headingTree) children() []*doctree.DocNode {
	h.flush()
	out := h.root.Children
	if h.root.Text != "" {
		out = append([]*doctree.DocNode{{Text: h.root.Text}}, out...)
	}
	return out
}
