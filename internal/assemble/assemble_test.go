package assemble

import (
	"strings"
	"testing"

	"github.com/dgallion1/bookweave/internal/doctree"
	"github.com/dgallion1/bookweave/internal/segment"
)

func TestHeader(t *testing.T) {
	l := DefaultLabels()
	tests := []struct {
		name string
		seg  segment.Segment
		want string
	}{
		{
			name: "base",
			seg:  segment.Segment{Kind: segment.KindBase, SourceName: "שדות ראשונים", Chapter: "פרק א", Page: 12},
			want: "[משדות ראשונים - פרק א, עמוד 12]",
		},
		{
			name: "base without chapter",
			seg:  segment.Segment{Kind: segment.KindBase, SourceName: "שדות ראשונים", Page: 3},
			want: "[משדות ראשונים, עמוד 3]",
		},
		{
			name: "placed",
			seg: segment.Segment{
				Kind: segment.KindPlaced, SourceName: "בית מרקובסקי", Chapter: "ב", Page: 4, Start: 2, End: 7,
				Reason: "אותו חורף", Confidence: doctree.ConfidenceHigh,
			},
			want: "[מבית מרקובסקי - ב, עמוד 4, שורות 2-7 | אותו חורף (high)]",
		},
		{
			name: "tagged single line",
			seg: segment.Segment{
				Kind: segment.KindTagged, SourceName: "בית מרקובסקי", Page: 4, Start: 5, End: 5,
				Tags: segment.Tags{Year: 1904, Location: "metula"},
			},
			want: "[מבית מרקובסקי, עמוד 4, שורה 5 | שנה: 1904, מיקום: metula]",
		},
		{
			name: "tagged no tags",
			seg:  segment.Segment{Kind: segment.KindTagged, SourceName: "x", Page: 1, Start: 1, End: 3},
			want: "[מx, עמוד 1, שורות 1-3]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Header(tt.seg, l); got != tt.want {
				t.Errorf("Header() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAssemble_ManifestAligned(t *testing.T) {
	entries := []Entry{
		{Segment: segment.Segment{Kind: segment.KindBase, SourceID: "sadot", SourceName: "S", Page: 1, Text: "עמוד"}},
		{Segment: segment.Segment{
			Kind: segment.KindPlaced, SourceID: "beit", SourceName: "B", Page: 9, Start: 1, End: 2,
			Text: "ab\ncd", Anchor: segment.AtEndOf(1), Confidence: doctree.ConfidenceMedium,
		}},
	}
	doc := Assemble(entries, Labels{})

	if len(doc.Blocks) != 2 || len(doc.Manifest) != 2 {
		t.Fatalf("blocks=%d manifest=%d, want 2/2", len(doc.Blocks), len(doc.Manifest))
	}
	want := "\n[מS, עמוד 1]\nעמוד\n\n[מB, עמוד 9, שורות 1-2 (medium)]\nab\ncd\n"
	if doc.Text != want {
		t.Errorf("Text = %q, want %q", doc.Text, want)
	}

	base := doc.Manifest[0]
	if base.Kind != "base" || base.Book != "sadot" || base.InsertedAfterPage != nil || base.TextLength != 4 {
		t.Errorf("base record = %+v", base)
	}
	p := doc.Manifest[1]
	if p.InsertedAfterPage == nil || *p.InsertedAfterPage != 1 || p.InsertedAfterLine == nil || *p.InsertedAfterLine != 0 {
		t.Errorf("placed record anchor = %+v", p)
	}
	if p.Anchor != "end of page 1" || p.LineStart != 1 || p.LineEnd != 2 || p.TextLength != 5 {
		t.Errorf("placed record = %+v", p)
	}
}

func TestAssemble_Banners(t *testing.T) {
	entries := []Entry{
		{
			Banners: []Banner{{BannerYear, "1904"}, {BannerMonth, ""}, {BannerLocation, "jaffa"}},
			Segment: segment.Segment{Kind: segment.KindTagged, SourceName: "S", Page: 1, Start: 1, End: 1, Text: "x"},
		},
		{
			Banners: []Banner{{BannerYear, ""}, {BannerMonth, ""}, {BannerLocation, ""}},
			Segment: segment.Segment{Kind: segment.KindTagged, SourceName: "S", Page: 2, Start: 1, End: 1, Text: "y"},
		},
	}
	doc := Assemble(entries, DefaultLabels())

	if !strings.Contains(doc.Blocks[0].Banners, "שנה: 1904") || !strings.Contains(doc.Blocks[0].Banners, "### מיקום: jaffa ###") {
		t.Errorf("first banners = %q", doc.Blocks[0].Banners)
	}
	if strings.Contains(doc.Blocks[0].Banners, "חודש") {
		t.Errorf("unknown month should print no banner: %q", doc.Blocks[0].Banners)
	}
	if !strings.Contains(doc.Blocks[1].Banners, "שנה לא ידועה") {
		t.Errorf("second banners = %q", doc.Blocks[1].Banners)
	}
	if strings.Index(doc.Text, "שנה: 1904") > strings.Index(doc.Text, "x") {
		t.Error("banner must precede its segment")
	}
}

func TestLabelsWithDefaults(t *testing.T) {
	l := Labels{From: "from ", Page: "page"}.WithDefaults()
	if l.From != "from " || l.Page != "page" || l.Lines != "שורות" {
		t.Errorf("WithDefaults() = %+v", l)
	}
}
