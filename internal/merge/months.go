package merge

import "strings"

const (
	monthUnrecognized = 900
	monthUnknown      = 999
)

var monthRanks = func() map[string]int {
	m := make(map[string]int)
	add := func(rank int, names ...string) {
		for _, n := range names {
			m[strings.ToLower(n)] = rank
		}
	}
	add(1, "ינואר", "january", "jan")
	add(2, "פברואר", "february", "feb")
	add(3, "מרץ", "מרס", "march", "mar")
	add(4, "אפריל", "april", "apr")
	add(5, "מאי", "may")
	add(6, "יוני", "june", "jun")
	add(7, "יולי", "july", "jul")
	add(8, "אוגוסט", "august", "aug")
	add(9, "ספטמבר", "september", "sep", "sept")
	add(10, "אוקטובר", "october", "oct")
	add(11, "נובמבר", "november", "nov")
	add(12, "דצמבר", "december", "dec")

	// Hebrew calendar months follow the Gregorian ones, in civil-year order.
	add(21, "תשרי")
	add(22, "חשוון", "חשון", "מרחשוון")
	add(23, "כסלו", "כסליו")
	add(24, "טבת")
	add(25, "שבט")
	add(26, "אדר", "אדר א", "אדר א'")
	add(27, "אדר ב", "אדר ב'")
	add(28, "ניסן")
	add(29, "אייר")
	add(30, "סיוון", "סיון")
	add(31, "תמוז")
	add(32, "אב", "מנחם אב")
	add(33, "אלול")
	return m
}()

// MonthRank places a month name in the canonical ordering. Unrecognized
// names rank after every known month and an empty name ranks last.
func MonthRank(name string) int {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return monthUnknown
	}
	if r, ok := monthRanks[name]; ok {
		return r
	}
	return monthUnrecognized
}
