package proposal

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/bookweave/internal/doctree"
	"github.com/dgallion1/bookweave/internal/segment"
)

func TestIntLoose(t *testing.T) {
	tests := []struct {
		in    string
		set   bool
		valid bool
		value int
	}{
		{`{"v": 7}`, true, true, 7},
		{`{"v": "12"}`, true, true, 12},
		{`{"v": 3.0}`, true, true, 3},
		{`{"v": 3.5}`, true, false, 0},
		{`{"v": null}`, false, false, 0},
		{`{}`, false, false, 0},
		{`{"v": "abc"}`, true, false, 0},
		{`{"v": ""}`, false, false, 0},
		{`{"v": [1]}`, true, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got struct {
				V Int `json:"v"`
			}
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.set, got.V.Set)
			assert.Equal(t, tt.valid, got.V.Valid)
			assert.Equal(t, tt.value, got.V.Value)
		})
	}
}

func TestDecodeHintsBothSpellings(t *testing.T) {
	in := `{"insertion_points": [
		{"source_page": 3, "source_line_start": 1, "source_line_end": 4, "insert_after_page": 10, "insert_after_line": 0, "insert_reason": "same day", "confidence": "high"},
		{"sourcePage": "5", "sourceLineStart": 2, "sourceLineEnd": 2, "insertAfterPage": 11, "insertAfterLine": 6}
	]}`
	set, err := DecodeHints(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())

	p, err := set.InsertionPoints[0].Resolve()
	require.NoError(t, err)
	assert.Equal(t, doctree.LineRange{Page: 3, Start: 1, End: 4}, p.Range)
	assert.Equal(t, segment.AtEndOf(10), p.Anchor)
	assert.Equal(t, "same day", p.Reason)
	assert.Equal(t, doctree.ConfidenceHigh, p.Confidence)

	p, err = set.InsertionPoints[1].Resolve()
	require.NoError(t, err)
	assert.Equal(t, 5, p.Range.Page)
	assert.Equal(t, segment.After(11, 6), p.Anchor)
	assert.Equal(t, doctree.ConfidenceMedium, p.Confidence)
}

func TestHintResolveRejects(t *testing.T) {
	tests := []struct {
		name string
		hint string
		want string
	}{
		{"missing page", `{"sourceLineStart": 1, "sourceLineEnd": 2, "insertAfterPage": 1}`, "sourcePage missing"},
		{"junk start", `{"sourcePage": 1, "sourceLineStart": "x", "sourceLineEnd": 2, "insertAfterPage": 1}`, "sourceLineStart not an integer"},
		{"negative anchor", `{"sourcePage": 1, "sourceLineStart": 1, "sourceLineEnd": 2, "insertAfterPage": 1, "insertAfterLine": -2}`, "negative"},
		{"not an object", `"hello"`, "sourcePage missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := DecodeHints(strings.NewReader(`{"insertionPoints": [` + tt.hint + `]}`))
			require.NoError(t, err)
			require.Equal(t, 1, set.Len())
			_, err = set.InsertionPoints[0].Resolve()
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeTags(t *testing.T) {
	in := `{"pages": [{"book_id": "beit", "page_number": 4, "line_tags": [
		{"line_start": 1, "line_end": 3, "year": "1905", "month": "ניסן", "location": "metula", "characters": ["yehuda", 5], "confidence": "HIGH"},
		{"line_start": 4, "line_end": 6, "year": null, "month": null, "location": "unknown"},
		{"line_start": "?", "line_end": 8}
	]}]}`
	set, err := DecodeTags(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, set.Pages, 1)
	assert.Equal(t, 3, set.TagCount())

	page := set.Pages[0]
	assert.Equal(t, "beit", page.SourceID)
	assert.Equal(t, 4, page.PageNumber.Value)

	r, tags, conf, err := page.LineTags[0].Labels(4)
	require.NoError(t, err)
	assert.Equal(t, doctree.LineRange{Page: 4, Start: 1, End: 3}, r)
	assert.Equal(t, 1905, tags.Year)
	assert.Equal(t, "ניסן", tags.Month)
	assert.Equal(t, "metula", tags.Location)
	assert.Equal(t, []string{"yehuda"}, tags.Characters)
	assert.Equal(t, doctree.ConfidenceHigh, conf)

	_, tags, conf, err = page.LineTags[1].Labels(4)
	require.NoError(t, err)
	assert.Zero(t, tags.Year)
	assert.Empty(t, tags.Month)
	assert.Empty(t, tags.Location)
	assert.Equal(t, doctree.ConfidenceMedium, conf)

	_, _, _, err = page.LineTags[2].Labels(4)
	assert.Error(t, err)

	ranges := page.Ranges()
	require.Len(t, ranges, 3)
	assert.Equal(t, doctree.LineRange{Page: 4, Start: 0, End: 8}, ranges[2])
}

func TestDecodeMalformedLists(t *testing.T) {
	tests := []struct {
		name   string
		decode func(string) error
		in     string
		want   string
	}{
		{"hints object", decodeHints, `{"insertionPoints": {"sourcePage": 1}}`, "insertionPoints is not a list"},
		{"hints snake", decodeHints, `{"insertion_points": 7}`, "insertion_points is not a list"},
		{"tags string", decodeTags, `{"pages": "oops"}`, "pages is not a list"},
		{"line tags object", decodeTags, `{"pages": [{"pageNumber": 2, "lineTags": {"lineStart": 1}}]}`, "page 2: lineTags is not a list"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decode(tt.in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeNullListsAreEmpty(t *testing.T) {
	hints, err := DecodeHints(strings.NewReader(`{"insertionPoints": null}`))
	require.NoError(t, err)
	assert.Zero(t, hints.Len())

	tags, err := DecodeTags(strings.NewReader(`{"pages": [{"pageNumber": 1, "lineTags": null}]}`))
	require.NoError(t, err)
	require.Len(t, tags.Pages, 1)
	assert.Zero(t, tags.TagCount())
}

func decodeHints(s string) error {
	_, err := DecodeHints(strings.NewReader(s))
	return err
}

func decodeTags(s string) error {
	_, err := DecodeTags(strings.NewReader(s))
	return err
}

func TestNilSets(t *testing.T) {
	var h *HintSet
	var s *TagSet
	assert.Zero(t, h.Len())
	assert.Zero(t, s.TagCount())
}
