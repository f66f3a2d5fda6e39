// Package assemble renders an ordered segment list into the merged text and
// its structure manifest. Ordering and content decisions are made upstream;
// this package only formats.
package assemble

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/bookweave/internal/segment"
)

// BannerLevel is the grouping level a banner opens.
type BannerLevel int

const (
	BannerYear BannerLevel = iota
	BannerMonth
	BannerLocation
)

// Banner opens a group in grouped output. An empty Value is the unknown group.
type Banner struct {
	Level BannerLevel
	Value string
}

// Entry is one segment in emission order with the banners printed before it.
type Entry struct {
	Banners []Banner
	Segment segment.Segment
}

// Block is one rendered segment.
type Block struct {
	Banners string `json:"banners,omitempty"`
	Header  string `json:"header"`
	Text    string `json:"text"`
}

// Record is the manifest entry for one block.
type Record struct {
	Kind              string `json:"kind"`
	Book              string `json:"book"`
	BookName          string `json:"bookName,omitempty"`
	Chapter           string `json:"chapter,omitempty"`
	Page              int    `json:"page"`
	LineStart         int    `json:"lineStart,omitempty"`
	LineEnd           int    `json:"lineEnd,omitempty"`
	InsertedAfterPage *int   `json:"insertedAfterPage,omitempty"`
	InsertedAfterLine *int   `json:"insertedAfterLine,omitempty"`
	Anchor            string `json:"anchor,omitempty"`
	InsertReason      string `json:"insertReason,omitempty"`
	Confidence        string `json:"confidence,omitempty"`
	Year              int    `json:"year,omitempty"`
	Month             string `json:"month,omitempty"`
	Location          string `json:"location,omitempty"`
	TextLength        int    `json:"textLength"`
}

// MergedDocument is the flat text plus the index-aligned manifest.
type MergedDocument struct {
	Text     string   `json:"text"`
	Blocks   []Block  `json:"blocks"`
	Manifest []Record `json:"manifest"`
}

const rule = "============================================================"

// Assemble renders entries in order. Blocks and Manifest have one element
// per entry.
func Assemble(entries []Entry, labels Labels) *MergedDocument {
	labels = labels.WithDefaults()
	doc := &MergedDocument{
		Blocks:   make([]Block, 0, len(entries)),
		Manifest: make([]Record, 0, len(entries)),
	}

	var sb strings.Builder
	for _, e := range entries {
		b := Block{
			Banners: renderBanners(e.Banners, labels),
			Header:  Header(e.Segment, labels),
			Text:    e.Segment.Text,
		}
		sb.WriteString(b.Banners)
		sb.WriteString("\n")
		sb.WriteString(b.Header)
		sb.WriteString("\n")
		sb.WriteString(b.Text)
		sb.WriteString("\n")

		doc.Blocks = append(doc.Blocks, b)
		doc.Manifest = append(doc.Manifest, record(e.Segment))
	}
	doc.Text = sb.String()
	return doc
}

func renderBanners(banners []Banner, l Labels) string {
	var sb strings.Builder
	for _, b := range banners {
		switch b.Level {
		case BannerYear:
			title := l.UnknownYear
			if b.Value != "" {
				title = l.Year + ": " + b.Value
			}
			fmt.Fprintf(&sb, "\n\n%s\n%s\n%s\n", rule, title, rule)
		case BannerMonth:
			if b.Value != "" {
				fmt.Fprintf(&sb, "\n--- %s: %s ---\n", l.Month, b.Value)
			}
		case BannerLocation:
			if b.Value != "" {
				fmt.Fprintf(&sb, "\n### %s: %s ###\n", l.Location, b.Value)
			}
		}
	}
	return sb.String()
}

// Header renders the bracketed provenance line of a segment.
func Header(s segment.Segment, l Labels) string {
	l = l.WithDefaults()
	var sb strings.Builder
	sb.WriteString("[" + l.From + s.SourceName)
	if s.Chapter != "" {
		sb.WriteString(" - " + s.Chapter)
	}
	fmt.Fprintf(&sb, ", %s %d", l.Page, s.Page)

	switch s.Kind {
	case segment.KindPlaced:
		fmt.Fprintf(&sb, ", %s %d-%d", l.Lines, s.Start, s.End)
		if s.Reason != "" {
			sb.WriteString(" | " + s.Reason)
		}
		if s.Confidence != "" {
			fmt.Fprintf(&sb, " (%s)", s.Confidence)
		}
	case segment.KindTagged:
		if s.Start == s.End {
			fmt.Fprintf(&sb, ", %s %d", l.Line, s.Start)
		} else {
			fmt.Fprintf(&sb, ", %s %d-%d", l.Lines, s.Start, s.End)
		}
		var tags []string
		if s.Tags.Year > 0 {
			tags = append(tags, l.Year+": "+strconv.Itoa(s.Tags.Year))
		}
		if s.Tags.Month != "" {
			tags = append(tags, l.Month+": "+s.Tags.Month)
		}
		if s.Tags.Location != "" {
			tags = append(tags, l.Location+": "+s.Tags.Location)
		}
		if len(tags) > 0 {
			sb.WriteString(" | " + strings.Join(tags, ", "))
		}
	}
	sb.WriteString("]")
	return sb.String()
}

func record(s segment.Segment) Record {
	r := Record{
		Kind:       s.Kind.String(),
		Book:       s.SourceID,
		BookName:   s.SourceName,
		Chapter:    s.Chapter,
		Page:       s.Page,
		TextLength: utf8.RuneCountInString(s.Text),
	}
	switch s.Kind {
	case segment.KindPlaced:
		page, line := s.Anchor.Page, s.Anchor.WireLine()
		r.LineStart, r.LineEnd = s.Start, s.End
		r.InsertedAfterPage, r.InsertedAfterLine = &page, &line
		r.Anchor = s.Anchor.String()
		r.InsertReason = s.Reason
		r.Confidence = string(s.Confidence)
	case segment.KindTagged:
		r.LineStart, r.LineEnd = s.Start, s.End
		r.Confidence = string(s.Confidence)
		r.Year = s.Tags.Year
		r.Month = s.Tags.Month
		r.Location = s.Tags.Location
	}
	return r
}
