package scanner

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// A dateParser returns every date it can find in a line
type dateParser func(line string, loc *time.Location) []time.Time

// Each parser handles one of the date styles that we see on meat labels.
// They are independent of each other, so their order doesn't matter.
var dateParsers = []dateParser{
	parseSlashDates,
	parseISODates,
	parseTextMonthDates,
	parseCompactDates,
}

var (
	slashDate     = regexp.MustCompile(`(?:^|[^\d/])(\d{1,2})/(\d{1,2})/(\d{4}|\d{2})(?:[^\d/]|$)`)
	isoDate       = regexp.MustCompile(`(?:^|\D)(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})(?:\D|$)`)
	dayMonthYear  = regexp.MustCompile(`(?i)(?:^|[^\dA-Z])(\d{1,2})[\s\-/.]*(JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)[A-Z]*\.?[\s\-/.,]*(\d{4}|\d{2})(?:\D|$)`)
	monthDayYear  = regexp.MustCompile(`(?i)(?:^|[^A-Z])(JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)[A-Z]*\.?[\s\-/.]*(\d{1,2})[\s\-/.,]+(\d{4})(?:\D|$)`)
	compactDate   = regexp.MustCompile(`(?i)(?:^|\D)(\d{4})\s?(JA|FE|MR|AL|MA|JN|JL|AU|SE|OC|NO|DE)\s?(\d{2})(?:\D|$)`)
	textMonths    = map[string]time.Month{"JAN": 1, "FEB": 2, "MAR": 3, "APR": 4, "MAY": 5, "JUN": 6, "JUL": 7, "AUG": 8, "SEP": 9, "OCT": 10, "NOV": 11, "DEC": 12}
	compactMonths = map[string]time.Month{"JA": 1, "FE": 2, "MR": 3, "AL": 4, "MA": 5, "JN": 6, "JL": 7, "AU": 8, "SE": 9, "OC": 10, "NO": 11, "DE": 12}
)

// findAll is like FindAllStringSubmatch, but each search resumes at the end of the previous
// match's last capture group, so that a boundary character consumed by one match can still
// start the next. Without this, "01/02/2025 03/04/2025" would only yield one date.
func findAll(re *regexp.Regexp, line string) [][]string {
	var out [][]string
	pos := 0
	for pos < len(line) {
		loc := re.FindStringSubmatchIndex(line[pos:])
		if loc == nil {
			break
		}
		m := make([]string, len(loc)/2)
		for i := range m {
			if loc[2*i] >= 0 {
				m[i] = line[pos+loc[2*i] : pos+loc[2*i+1]]
			}
		}
		out = append(out, m)
		next := loc[len(loc)-1]
		if next <= 0 {
			next = loc[1]
		}
		pos += max(next, 1)
	}
	return out
}

// makeDate returns false if the components don't form a real calendar date
func makeDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Day() != day || int(t.Month()) != month {
		// eg Feb 30, which time.Date normalizes into March
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

// MM/DD/YYYY, unless the first number can't be a month, in which case DD/MM/YYYY
func parseSlashDates(line string, loc *time.Location) []time.Time {
	var out []time.Time
	for _, m := range findAll(slashDate, line) {
		month, day := atoi(m[1]), atoi(m[2])
		if month > 12 {
			month, day = day, month
		}
		if t, ok := makeDate(atoi(m[3]), month, day, loc); ok {
			out = append(out, t)
		}
	}
	return out
}

// YYYY-MM-DD
func parseISODates(line string, loc *time.Location) []time.Time {
	var out []time.Time
	for _, m := range findAll(isoDate, line) {
		if t, ok := makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3]), loc); ok {
			out = append(out, t)
		}
	}
	return out
}

// 14 MAR 2025, 14MAR25, MAR 14 2025, March 14, 2025
func parseTextMonthDates(line string, loc *time.Location) []time.Time {
	var out []time.Time
	for _, m := range findAll(dayMonthYear, line) {
		month := textMonths[strings.ToUpper(m[2])]
		if t, ok := makeDate(atoi(m[3]), int(month), atoi(m[1]), loc); ok {
			out = append(out, t)
		}
	}
	for _, m := range findAll(monthDayYear, line) {
		month := textMonths[strings.ToUpper(m[1])]
		if t, ok := makeDate(atoi(m[3]), int(month), atoi(m[2]), loc); ok {
			out = append(out, t)
		}
	}
	return out
}

// 2025MR14. Canadian bilingual month codes, which are the same in English and French.
func parseCompactDates(line string, loc *time.Location) []time.Time {
	var out []time.Time
	for _, m := range findAll(compactDate, line) {
		month := compactMonths[strings.ToUpper(m[2])]
		if t, ok := makeDate(atoi(m[1]), int(month), atoi(m[3]), loc); ok {
			out = append(out, t)
		}
	}
	return out
}

// ExtractDates returns all distinct dates found in the lines, sorted ascending
func ExtractDates(lines []string, loc *time.Location) []time.Time {
	var all []time.Time
	for _, line := range lines {
		for _, p := range dateParsers {
			all = append(all, p(line, loc)...)
		}
	}
	slices.SortFunc(all, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(all, func(a, b time.Time) bool { return a.Equal(b) })
}

// AssignDates picks the packed-on and best-before dates out of the dates on a label.
// We assume that the earliest date is the packed-on date, and the latest date is the
// best-before date. With a single date, both are that date. With no dates, both are 'now'.
func AssignDates(dates []time.Time, now time.Time) (packedOn, bestBefore time.Time) {
	if len(dates) == 0 {
		return now, now
	}
	return dates[0], dates[len(dates)-1]
}
