package features

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order; the first is the export format of the source system.
var dateLayouts = []string{
	"1/2/2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// excelEpoch is day zero of spreadsheet serial dates (1900 system, leap-year bug included).
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

func parseDate(v string) (time.Time, bool) {
	s := strings.TrimSpace(v)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < 2958466 {
		days := math.Floor(serial)
		return excelEpoch.AddDate(0, 0, int(days)), true
	}
	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns whole days from a to b.
func daysBetween(a, b time.Time) float64 {
	return math.Floor(truncateDay(b).Sub(truncateDay(a)).Hours() / 24)
}

// yearsBetween returns the age in whole years at b of something born at a.
func yearsBetween(a, b time.Time) float64 {
	years := b.Year() - a.Year()
	if b.Month() < a.Month() || (b.Month() == a.Month() && b.Day() < a.Day()) {
		years--
	}
	return float64(years)
}

// formatDate renders a parsed date in ISO form for output.
func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
