package features

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"01/15/2020", "1/15/2020", "2020-01-15", "2020-01-15 13:45:00", "2020-01-15T08:00:00Z", "43845"} {
		got, ok := parseDate(in)
		if !ok {
			t.Errorf("parseDate(%q) failed", in)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseDate(%q) = %v, want %v", in, got, want)
		}
	}
	for _, in := range []string{"15/01/2020", "yesterday", "-3"} {
		if _, ok := parseDate(in); ok {
			t.Errorf("parseDate(%q) should fail", in)
		}
	}
}

func TestYearsBetween(t *testing.T) {
	ref := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		born time.Time
		want float64
	}{
		{time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC), 34},
		{time.Date(1990, 6, 16, 0, 0, 0, 0, time.UTC), 33},
		{time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), 34},
	}
	for _, c := range cases {
		if got := yearsBetween(c.born, ref); got != c.want {
			t.Errorf("yearsBetween(%v) = %v, want %v", c.born, got, c.want)
		}
	}
}

func TestCategoryValue(t *testing.T) {
	if got := categoryValue("2.0"); got != "2" {
		t.Errorf("categoryValue(2.0) = %q", got)
	}
	if got := categoryValue("No Cruza"); got != "No Cruza" {
		t.Errorf("categoryValue(No Cruza) = %q", got)
	}
}
