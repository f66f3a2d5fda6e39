package oracle

import (
	"strings"
	"unicode"

	"github.com/dgallion1/bookweave/internal/proposal"
)

const (
	maxReasonRunes = 300
	maxNames       = 20
)

// tidyTag normalizes the free-text fields of a proposed tag. Line numbers
// and years are left alone; they are validated downstream.
func tidyTag(t *proposal.Tag) {
	t.Month = singleLine(t.Month, 40)
	t.Location = Slugify(t.Location)
	t.Locations = slugs(t.Locations)
	t.Characters = slugs(t.Characters)
	t.Confidence = strings.ToLower(strings.TrimSpace(t.Confidence))
}

// tidyHint keeps the insertion reason printable on one header line.
func tidyHint(h *proposal.Hint) {
	h.InsertReason = singleLine(h.InsertReason, maxReasonRunes)
	h.Confidence = strings.ToLower(strings.TrimSpace(h.Confidence))
}

func singleLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > max {
		s = string(r[:max])
	}
	return s
}

func slugs(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, s := range in {
		s = Slugify(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == maxNames {
			break
		}
	}
	return out
}

// Slugify turns a place or person name into a lowercase id. Letters of
// any script are kept; runs of other characters become one underscore.
func Slugify(s string) string {
	var sb strings.Builder
	gap := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) {
			if gap && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			gap = false
			sb.WriteRune(r)
			continue
		}
		gap = true
	}
	out := sb.String()
	if r := []rune(out); len(r) > 50 {
		out = string(r[:50])
	}
	return out
}
