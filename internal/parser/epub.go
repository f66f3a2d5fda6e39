package parser

import (
	"fmt"
	"io"
	"os"

	"github.com/dgallion1/bookweave/internal/doctree"
	"github.com/taylorskalyo/goreader/epub"
	"golang.org/x/net/html"
)

// EPUBParser handles EPUB books. Spine items are read in order; their
// headings become chapters.
type EPUBParser struct{}

func (p *EPUBParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	// goreader opens archives by path.
	tmp, err := os.CreateTemp("", "bookweave-epub-*.epub")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	rc, err := epub.OpenReader(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("open epub: %w", err)
	}
	defer rc.Close()

	if len(rc.Rootfiles) == 0 {
		return nil, fmt.Errorf("no rootfiles found in epub")
	}
	book := rc.Rootfiles[0]

	tree := &doctree.DocTree{Title: titleFrom(filename)}
	if book.Metadata.Title != "" {
		tree.Title = book.Metadata.Title
	}

	h := newHeadingTree()
	for _, ref := range book.Spine.Itemrefs {
		if ref.Item == nil {
			continue
		}
		item, err := ref.Item.Open()
		if err != nil {
			continue
		}
		doc, err := html.Parse(item)
		item.Close()
		if err != nil {
			continue
		}
		walkHTML(doc, h)
		h.pageBreak()
	}

	tree.Children = h.children()
	return tree, nil
}
