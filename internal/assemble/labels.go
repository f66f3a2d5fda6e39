package assemble

// Labels is the header vocabulary of the merged text. The zero value of
// any field falls back to the Hebrew default.
type Labels struct {
	From        string `yaml:"from" json:"from,omitempty"`
	Page        string `yaml:"page" json:"page,omitempty"`
	Line        string `yaml:"line" json:"line,omitempty"`
	Lines       string `yaml:"lines" json:"lines,omitempty"`
	Year        string `yaml:"year" json:"year,omitempty"`
	UnknownYear string `yaml:"unknown_year" json:"unknownYear,omitempty"`
	Month       string `yaml:"month" json:"month,omitempty"`
	Location    string `yaml:"location" json:"location,omitempty"`
}

// DefaultLabels returns the Hebrew vocabulary.
func DefaultLabels() Labels {
	return Labels{
		From:        "מ",
		Page:        "עמוד",
		Line:        "שורה",
		Lines:       "שורות",
		Year:        "שנה",
		UnknownYear: "שנה לא ידועה",
		Month:       "חודש",
		Location:    "מיקום",
	}
}

// WithDefaults fills every empty field from DefaultLabels.
func (l Labels) WithDefaults() Labels {
	d := DefaultLabels()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&l.From, d.From)
	fill(&l.Page, d.Page)
	fill(&l.Line, d.Line)
	fill(&l.Lines, d.Lines)
	fill(&l.Year, d.Year)
	fill(&l.UnknownYear, d.UnknownYear)
	fill(&l.Month, d.Month)
	fill(&l.Location, d.Location)
	return l
}
