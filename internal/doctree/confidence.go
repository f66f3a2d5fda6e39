package doctree

import "strings"

// Confidence is the oracle's self-reported certainty for a tag or placement.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence normalizes an oracle confidence value. A missing value
// defaults to medium; anything unrecognized is treated as low.
func ParseConfidence(s string) Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ConfidenceMedium
	case "high":
		return ConfidenceHigh
	case "medium":
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
