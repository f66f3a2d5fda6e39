package parser

import (
	"strings"
	"testing"
)

func TestTextParser_PreservesLines(t *testing.T) {
	input := "First line.\nSecond line.\n\n   indented\n"
	p := &TextParser{}
	tree, err := p.Parse(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tree.Title != "notes" {
		t.Errorf("expected title %q, got %q", "notes", tree.Title)
	}
	if len(tree.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(tree.Children))
	}
	want := "First line.\nSecond line.\n\n   indented"
	if tree.Children[0].Text != want {
		t.Errorf("expected %q, got %q", want, tree.Children[0].Text)
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	p := &TextParser{}
	for _, input := range []string{"", "\n\n", "\f\f"} {
		tree, err := p.Parse(strings.NewReader(input), "empty.txt")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tree.Title != "empty" {
			t.Errorf("expected title %q, got %q", "empty", tree.Title)
		}
		if len(tree.Children) != 0 {
			t.Errorf("input %q: expected 0 children, got %d", input, len(tree.Children))
		}
	}
}

func TestTextParser_CRLFAndFormFeed(t *testing.T) {
	p := &TextParser{}
	tree, err := p.Parse(strings.NewReader("\ufeffpage one\r\nmore\fpage two\r\n"), "dir/book.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "book" {
		t.Errorf("expected title %q, got %q", "book", tree.Title)
	}
	want := "page one\nmore\fpage two"
	if tree.Children[0].Text != want {
		t.Errorf("expected %q, got %q", want, tree.Children[0].Text)
	}
}

func TestForFile(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"a.txt", false},
		{"a.MD", false},
		{"a.xhtml", false},
		{"a.pdf", false},
		{"a.docx", false},
		{"a.epub", false},
		{"a.csv", true},
		{"a", true},
	}
	for _, tt := range tests {
		_, err := ForFile(tt.name, Options{})
		if (err != nil) != tt.wantErr {
			t.Errorf("ForFile(%q) err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if IsSupportedExtension(tt.name) == tt.wantErr {
			t.Errorf("IsSupportedExtension(%q) disagrees with ForFile", tt.name)
		}
	}
}

func TestPDFParser_FallbackFlag(t *testing.T) {
	p, err := ForFile("book.pdf", Options{PDFFallbackPdftotext: true})
	if err != nil {
		t.Fatal(err)
	}
	if !p.(*PDFParser).FallbackPdftotext {
		t.Error("expected fallback to be enabled")
	}
}
