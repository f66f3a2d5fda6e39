package ingest

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Cleaning strips OCR page furniture: running headers such as
// "מטולה ● 27" and bare page numbers.
type Cleaning struct {
	HeaderMarker        string `yaml:"header_marker" json:"headerMarker"`
	MaxHeaderLength     int    `yaml:"max_header_length" json:"maxHeaderLength"`
	StripPageNumbers    bool   `yaml:"strip_page_numbers" json:"stripPageNumbers"`
	MaxPageNumberDigits int    `yaml:"max_page_number_digits" json:"maxPageNumberDigits"`
}

// DefaultCleaning matches the layout of the scanned memoirs.
func DefaultCleaning() Cleaning {
	return Cleaning{
		HeaderMarker:        "●",
		MaxHeaderLength:     30,
		StripPageNumbers:    true,
		MaxPageNumberDigits: 3,
	}
}

// Clean trims every line and drops header and page-number lines. Empty
// lines are kept.
func (c Cleaning) Clean(lines []string) (out []string, headers, pageNumbers int) {
	out = make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if c.HeaderMarker != "" && strings.Contains(l, c.HeaderMarker) && utf8.RuneCountInString(l) < c.MaxHeaderLength {
			headers++
			continue
		}
		if c.StripPageNumbers && isPageNumber(l, c.MaxPageNumberDigits) {
			pageNumbers++
			continue
		}
		out = append(out, l)
	}
	return out, headers, pageNumbers
}

func isPageNumber(s string, maxDigits int) bool {
	if s == "" || len(s) > maxDigits {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Normalize puts a line in Unicode NFC so that OCR output with decomposed
// Hebrew points compares equal to typed text.
func Normalize(s string) string {
	return norm.NFC.String(s)
}
