package oracle

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Metula", "metula"},
		{"  Beer Tuvia ", "beer_tuvia"},
		{"tel-hai", "tel_hai"},
		{"באר טוביה", "באר_טוביה"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSingleLine(t *testing.T) {
	if got := singleLine(" a\n b\tc ", 100); got != "a b c" {
		t.Errorf("got %q", got)
	}
	if got := singleLine("אבגדה", 3); got != "אבג" {
		t.Errorf("got %q", got)
	}
}
