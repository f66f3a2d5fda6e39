package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgallion1/bookweave/internal/doctree"
)

// Base context limits for placement prompts.
const (
	PreviewRunes = 500
	ContextRunes = 20000
)

const TagInstructions = `You are tagging one page of a Hebrew memoir about life in the Galilee colonies, 1900-1921.
Split the page into runs of consecutive lines that share the same time and place, and label each run.

Return a JSON object:
{"line_tags": [{"line_start": <int>, "line_end": <int>, "year": <int or null>, "month": <string or null>,
"location": <string or null>, "locations": [<string>], "characters": [<string>], "confidence": "high"|"medium"|"low"}]}

Rules:
- Use the line numbers exactly as shown. A run may be a single line (line_start == line_end).
- Cover every non-empty line, and do not let runs overlap.
- "month" is a month name as written (Hebrew or Gregorian, e.g. "ניסן", "ינואר").
- "location" is the main place as a short lowercase id such as "metula", "jaffa", "tel_hai".
- Infer dates from events the text mentions, but use null rather than guess.

Respond with ONLY the JSON object, no other text.`

const PlaceInstructions = `You are interleaving two Hebrew memoirs of the same years. The base book keeps its own order.
Divide the secondary page below into paragraphs that each tell one coherent moment, and for each
paragraph choose the base page and line after which it belongs chronologically.

Return a JSON object:
{"paragraphs": [{"source_line_start": <int>, "source_line_end": <int>, "insert_after_page": <int>,
"insert_after_line": <int, 0 for the end of the page>, "insert_reason": <short string>,
"confidence": "high"|"medium"|"low"}]}

Rules:
- Use the secondary line numbers exactly as shown and the base page numbers from the base context.
- Paragraphs must not overlap.
- Place a paragraph before, beside or after the base passage that describes the same event.

Respond with ONLY the JSON object, no other text.`

// NumberedLines renders the non-empty lines of page as "  7: text".
func NumberedLines(page *doctree.Page) string {
	var sb strings.Builder
	for _, l := range page.Lines {
		if l.Empty {
			continue
		}
		fmt.Fprintf(&sb, "%3d: %s\n", l.Number, l.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func pageHeader(sb *strings.Builder, src *doctree.Source, page *doctree.Page) {
	fmt.Fprintf(sb, "Book: %s\n", src.DisplayName())
	if page.Chapter != "" {
		fmt.Fprintf(sb, "Chapter: %s\n", page.Chapter)
	}
	fmt.Fprintf(sb, "Page: %d\n", page.Number)
	fmt.Fprintf(sb, "Lines: %d\n", page.LineCount())
}

// TagPrompt builds the tagging request for one page.
func TagPrompt(src *doctree.Source, page *doctree.Page) string {
	var sb strings.Builder
	sb.WriteString(TagInstructions)
	sb.WriteString("\n\n---\n")
	pageHeader(&sb, src, page)
	sb.WriteString("---\n")
	sb.WriteString(NumberedLines(page))
	return sb.String()
}

// PlacePrompt builds the placement request for one secondary page.
func PlacePrompt(secondary *doctree.Source, page *doctree.Page, baseContext string) string {
	var sb strings.Builder
	sb.WriteString(PlaceInstructions)
	sb.WriteString("\n\n--- base book ---\n")
	sb.WriteString(baseContext)
	sb.WriteString("\n\n--- secondary page ---\n")
	pageHeader(&sb, secondary, page)
	sb.WriteString("---\n")
	sb.WriteString(NumberedLines(page))
	return sb.String()
}

type pagePreview struct {
	PageNumber int    `json:"page_number"`
	Chapter    string `json:"chapter,omitempty"`
	Text       string `json:"text"`
}

// BaseContext previews every base page, PreviewRunes each, as JSON cut
// to ContextRunes.
func BaseContext(base *doctree.Source) string {
	previews := make([]pagePreview, 0, len(base.Pages))
	for i := range base.Pages {
		p := &base.Pages[i]
		text := p.FullText()
		if r := []rune(text); len(r) > PreviewRunes {
			text = string(r[:PreviewRunes]) + "..."
		}
		previews = append(previews, pagePreview{PageNumber: p.Number, Chapter: p.Chapter, Text: text})
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Book: %s\n", base.DisplayName())
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(previews); err != nil {
		return ""
	}
	s := strings.TrimRight(buf.String(), "\n")
	if r := []rune(s); len(r) > ContextRunes {
		s = string(r[:ContextRunes])
	}
	return s
}
