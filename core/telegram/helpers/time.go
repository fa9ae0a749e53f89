package helpers

import (
	"strings"
	"time"
)

// Day layouts accepted from users, day-first before month-first.
var dayLayouts = []string{
	"2006-01-02", "2006-1-2",
	"02.01.2006", "2.1.2006",
	"02/01/2006", "2/1/2006", "02/01/06", "2/1/06",
	"2 Jan 2006", "02 Jan 2006", "2 January 2006", "Jan 2 2006",
}

var clockLayouts = []string{"15:04", "15.04", "3:04pm", "3:04 pm", "3pm", "3 pm"}

func parseAny(s string, layouts []string, loc *time.Location) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseFlexibleDate reads a typed date such as "18.10.2026" or "18 Oct 2026"
// as midnight local time.
func ParseFlexibleDate(input string) (time.Time, bool) {
	return parseAny(strings.TrimSpace(input), dayLayouts, time.Local)
}

// ParseClock reads a time of day such as "14:30" or "2:30 pm" and returns it as "15:04".
func ParseClock(input string) (string, bool) {
	t, ok := parseAny(strings.ToLower(strings.TrimSpace(input)), clockLayouts, time.UTC)
	if !ok {
		return "", false
	}
	return t.Format("15:04"), true
}
