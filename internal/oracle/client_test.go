package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgallion1/bookweave/internal/doctree"
)

func testSource(t *testing.T) *doctree.Source {
	t.Helper()
	src, err := doctree.NewSource("beit", "בית אבא", []doctree.Page{
		{Number: 7, Chapter: "ילדות", Lines: doctree.LinesFromText("שורה א\n\nשורה ג")},
	})
	if err != nil {
		t.Fatal(err)
	}
	return src
}

// fakeClaude answers every request with status and a single text block.
func fakeClaude(t *testing.T, status int, text string, got *anthropicRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "key" {
			t.Errorf("missing api key header")
		}
		if got != nil {
			_ = json.NewDecoder(r.Body).Decode(got)
		}
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"type":"x","message":"nope"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": text}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTagPage(t *testing.T) {
	reply := "```json\n{\"page_number\": 99, \"line_tags\": [{\"line_start\": 1, \"line_end\": \"3\", \"year\": 1904, \"month\": \"ניסן\", \"location\": \"Tel Hai\", \"characters\": [\"Yehuda\", \"yehuda\"], \"confidence\": \"HIGH\"}]}\n```"
	var req anthropicRequest
	srv := fakeClaude(t, http.StatusOK, reply, &req)
	c := NewClient("key", "test-model", WithEndpoint(srv.URL))

	src := testSource(t)
	page, _ := src.Page(7)
	tp, err := c.TagPage(context.Background(), src, page)
	if err != nil {
		t.Fatalf("TagPage: %v", err)
	}
	if tp.SourceID != "beit" || tp.PageNumber.Value != 7 {
		t.Errorf("page identity = %s/%d, want beit/7", tp.SourceID, tp.PageNumber.Value)
	}
	if len(tp.LineTags) != 1 {
		t.Fatalf("tags = %d", len(tp.LineTags))
	}
	tag := tp.LineTags[0]
	if tag.LineEnd.Value != 3 || tag.Year.Value != 1904 {
		t.Errorf("tag = %+v", tag)
	}
	if tag.Location != "tel_hai" || len(tag.Characters) != 1 || tag.Confidence != "high" {
		t.Errorf("tidy = %q %v %q", tag.Location, tag.Characters, tag.Confidence)
	}
	if req.Model != "test-model" || len(req.Messages) != 1 {
		t.Errorf("request = %+v", req)
	}
	if snap := c.Stats.Snapshot(); snap.Count != 1 || snap.Failures != 0 {
		t.Errorf("stats = %+v", snap)
	}
}

func TestTagPage_BareArray(t *testing.T) {
	srv := fakeClaude(t, http.StatusOK, `[{"line_start":1,"line_end":1}]`, nil)
	c := NewClient("key", "m", WithEndpoint(srv.URL))
	src := testSource(t)
	page, _ := src.Page(7)
	tp, err := c.TagPage(context.Background(), src, page)
	if err != nil {
		t.Fatal(err)
	}
	if len(tp.LineTags) != 1 || tp.PageNumber.Value != 7 {
		t.Errorf("got %+v", tp)
	}
}

func TestPlacePage(t *testing.T) {
	reply := `{"paragraphs": [
		{"source_page": 1, "source_line_start": 1, "source_line_end": 3, "insert_after_page": 12, "insert_after_line": 0,
		 "insert_reason": "same\nwinter", "confidence": "Medium"}]}`
	var req anthropicRequest
	srv := fakeClaude(t, http.StatusOK, reply, &req)
	c := NewClient("key", "m", WithEndpoint(srv.URL))

	src := testSource(t)
	page, _ := src.Page(7)
	hints, err := c.PlacePage(context.Background(), src, page, "BASE-CONTEXT")
	if err != nil {
		t.Fatalf("PlacePage: %v", err)
	}
	if len(hints) != 1 {
		t.Fatalf("hints = %d", len(hints))
	}
	h := hints[0]
	if h.SourcePage.Value != 7 {
		t.Errorf("source page = %d, want the page asked about", h.SourcePage.Value)
	}
	if h.InsertReason != "same winter" || h.Confidence != "medium" {
		t.Errorf("tidy = %q %q", h.InsertReason, h.Confidence)
	}
	p, err := h.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Anchor.Page != 12 {
		t.Errorf("anchor = %+v", p.Anchor)
	}
	if got := req.Messages[0].Content; !strings.Contains(got, "BASE-CONTEXT") || !strings.Contains(got, "  3: שורה ג") {
		t.Errorf("prompt lacks context or numbered lines:\n%s", got)
	}
}

func TestComplete_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		text      string
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, "", true},
		{"server error", http.StatusBadGateway, "", true},
		{"bad request", http.StatusBadRequest, "", false},
		{"empty answer", http.StatusOK, "  ", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeClaude(t, tt.status, tt.text, nil)
			c := NewClient("key", "m", WithEndpoint(srv.URL))
			_, err := c.complete(context.Background(), "prompt")
			if err == nil {
				t.Fatal("expected error")
			}
			var re *RetryableError
			if errors.As(err, &re) != tt.retryable {
				t.Errorf("retryable = %v, want %v (%v)", !tt.retryable, tt.retryable, err)
			}
		})
	}
}

func TestTagPage_NotJSON(t *testing.T) {
	srv := fakeClaude(t, http.StatusOK, "I could not tag this page.", nil)
	c := NewClient("key", "m", WithEndpoint(srv.URL))
	src := testSource(t)
	page, _ := src.Page(7)
	if _, err := c.TagPage(context.Background(), src, page); err == nil {
		t.Error("expected parse error")
	}
}

func TestStripCodeBlock(t *testing.T) {
	tests := []struct{ in, want string }{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n[1]\n```", `[1]`},
		{"Here you go:\n```json\n{\"a\":1}\n```\nDone.", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripCodeBlock(tt.in); got != tt.want {
			t.Errorf("stripCodeBlock(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
