package parser

import (
	"io"
	"strings"

	"github.com/dgallion1/bookweave/internal/doctree"
)

// TextParser handles plain text files. Lines are kept verbatim; form
// feeds, as written by pdftotext, separate pages.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	text = strings.TrimPrefix(text, "\ufeff")

	tree := &doctree.DocTree{Title: titleFrom(filename)}
	if strings.TrimSpace(strings.ReplaceAll(text, PageBreak, "")) == "" {
		return tree, nil
	}
	tree.Children = []*doctree.DocNode{{Text: strings.TrimRight(text, "\n")}}
	return tree, nil
}
