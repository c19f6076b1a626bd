// Package dateparse turns informal due-date phrases from chat messages into YYYY-MM-DD dates.
package dateparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	anydate "github.com/araddon/dateparse"
)

// Layout is the output format of every successful parse
const Layout = "2006-01-02"

var (
	nextWeekdayPattern = regexp.MustCompile(`^next\s+([a-z]+)$`)
	isoDatePattern     = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	slashDatePattern   = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?$`)
	dayMonthPattern    = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?([a-z]+)\.?(?:,?\s+(\d{4}))?$`)
	monthDayPattern    = regexp.MustCompile(`^([a-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?$`)
	numberPattern      = regexp.MustCompile(`\d+`)
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// ResolveDueDate parses phrase relative to the current local date
func ResolveDueDate(phrase string) (string, bool) {
	return Parse(phrase, time.Now())
}

// Parse resolves phrase against ref. The boolean is false when nothing matched, which callers
// should treat as a reason to ask the user for a clearer date rather than as an error.
func Parse(phrase string, ref time.Time) (string, bool) {
	p := strings.ToLower(strings.Join(strings.Fields(phrase), " "))
	if p == "" {
		return "", false
	}
	loc := ref.Location()

	switch p {
	case "today":
		return ref.Format(Layout), true
	case "tomorrow":
		return ref.AddDate(0, 0, 1).Format(Layout), true
	}

	if m := nextWeekdayPattern.FindStringSubmatch(p); m != nil {
		if wd, ok := weekdays[m[1]]; ok {
			return nextWeekday(ref, wd).Format(Layout), true
		}
	}

	if m := isoDatePattern.FindStringSubmatch(p); m != nil {
		if d, ok := strictDate(atoi(m[1]), atoi(m[2]), atoi(m[3]), loc); ok {
			return d.Format(Layout), true
		}
		return "", false
	}

	if m := slashDatePattern.FindStringSubmatch(p); m != nil {
		day, month := atoi(m[1]), atoi(m[2])
		year := ref.Year()
		if m[3] != "" {
			year = atoi(m[3])
			if len(m[3]) == 2 {
				year += 2000
			}
		}
		// a month above 12 means the phrase is month-first, left to the generic parser
		if month <= 12 {
			if d, ok := strictDate(year, month, day, loc); ok {
				return d.Format(Layout), true
			}
		}
	}

	if m := dayMonthPattern.FindStringSubmatch(p); m != nil {
		if d, ok := namedMonthDate(m[3], m[2], m[1], ref); ok {
			return d.Format(Layout), true
		}
	}

	if m := monthDayPattern.FindStringSubmatch(p); m != nil {
		if d, ok := namedMonthDate(m[3], m[1], m[2], ref); ok {
			return d.Format(Layout), true
		}
	}

	return fallback(p, ref)
}

// nextWeekday returns the first wd strictly after ref, so the same weekday rolls a full week
func nextWeekday(ref time.Time, wd time.Weekday) time.Time {
	delta := (int(wd) - int(ref.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return ref.AddDate(0, 0, delta)
}

func namedMonthDate(yearStr, monthName, dayStr string, ref time.Time) (time.Time, bool) {
	month, ok := months[monthName]
	if !ok {
		return time.Time{}, false
	}
	year := ref.Year()
	if yearStr != "" {
		year = atoi(yearStr)
	}
	return strictDate(year, int(month), atoi(dayStr), ref.Location())
}

// strictDate rejects values time.Date would silently normalize, such as 31/2
func strictDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func fallback(p string, ref time.Time) (string, bool) {
	t, err := anydate.ParseIn(p, ref.Location())
	if err != nil {
		return "", false
	}
	if t.Year() < 1000 {
		t = time.Date(ref.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, ref.Location())
	}
	if !accountsForNumbers(p, t) {
		return "", false
	}
	return t.Format(Layout), true
}

// accountsForNumbers reports whether every number in p shows up in t, each date part at most once.
// The generic parser drops or reinterprets digits it cannot place.
func accountsForNumbers(p string, t time.Time) bool {
	parts := []int{t.Year(), int(t.Month()), t.Day()}
	used := make([]bool, len(parts))

	for _, digits := range numberPattern.FindAllString(p, -1) {
		n, err := strconv.Atoi(digits)
		if err != nil {
			return false
		}
		matched := false
		for i, part := range parts {
			if used[i] {
				continue
			}
			// two-digit years stand for 20xx
			if n == part || (i == 0 && len(digits) == 2 && part%100 == n) {
				used[i] = true
				matched = true
				break
			}
		}
		if !matched && !isClockValue(n, t) {
			return false
		}
	}
	return true
}

func isClockValue(n int, t time.Time) bool {
	if t.Hour() == 0 && t.Minute() == 0 {
		return false
	}
	hour12 := t.Hour() % 12
	if hour12 == 0 {
		hour12 = 12
	}
	return n == t.Hour() || n == hour12 || n == t.Minute()
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
