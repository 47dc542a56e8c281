package scanner

import (
	"regexp"
	"strconv"
	"strings"
)

// Field is a value that we read off a label, and stabilize across frames
type Field int

const (
	FieldPrimaryID Field = iota // Catalog product ID
	FieldWeight                 // Net weight in kg, formatted with two decimals
	numFields
)

func (f Field) String() string {
	switch f {
	case FieldPrimaryID:
		return "primaryID"
	case FieldWeight:
		return "weight"
	}
	return "unknown"
}

const kgPerPound = 0.45359237

// A matcher extracts a candidate value from a single line of text
type matcher struct {
	name      string
	re        *regexp.Regexp
	normalize func(capture string) (string, bool)
}

// FieldExtractor pulls candidate field values out of the lines inside the ROI.
// Each field has a list of matchers in priority order.
type FieldExtractor struct {
	fields [numFields][]matcher
}

// The number part of a weight. European labels use a comma as the decimal separator,
// so a comma is always read as a decimal point, and never as a thousands separator.
// "1,234 kg" is 1.23 kg. No case we scan weighs a thousand kilograms, and reading
// "6,418 lb" as 6418 pounds would be wrong far more often.
const weightNumber = `(\d{1,3}(?:[.,]\d{1,3})?)`

// Don't start a bare number in the middle of a longer number
const numberStart = `(?:^|[^\d.,])`

func NewFieldExtractor() *FieldExtractor {
	e := &FieldExtractor{}
	e.fields[FieldPrimaryID] = []matcher{
		{"labeled", regexp.MustCompile(`(?i)\bID\s*[:#]?\s*(\d{5,9})\b`), normalizeDigits},
		{"bare", regexp.MustCompile(`^\s*(\d{5,9})\s*$`), normalizeDigits},
	}
	e.fields[FieldWeight] = []matcher{
		{"labeled-kg", regexp.MustCompile(`(?i)\bnet\s*(?:wt\.?|weight)?\s*:?\s*` + weightNumber + `\s*kg\b`), normalizeKg},
		{"bare-kg", regexp.MustCompile(`(?i)` + numberStart + weightNumber + `\s*kg\b`), normalizeKg},
		{"labeled-lb", regexp.MustCompile(`(?i)\bnet\s*(?:wt\.?|weight)?\s*:?\s*` + weightNumber + `\s*lbs?\b`), normalizeLb},
		{"bare-lb", regexp.MustCompile(`(?i)` + numberStart + weightNumber + `\s*lbs?\b`), normalizeLb},
	}
	return e
}

// Extract returns at most one candidate per field.
// Matchers are tried in priority order, and for each matcher, the lines are scanned in order.
// This means that a labeled value on a later line beats a bare value on an earlier line.
func (e *FieldExtractor) Extract(lines []string) map[Field]string {
	found := map[Field]string{}
	for f := Field(0); f < numFields; f++ {
		if v, ok := e.extractField(f, lines); ok {
			found[f] = v
		}
	}
	return found
}

func (e *FieldExtractor) extractField(f Field, lines []string) (string, bool) {
	for _, m := range e.fields[f] {
		for _, line := range lines {
			match := m.re.FindStringSubmatch(line)
			if match == nil {
				continue
			}
			if v, ok := m.normalize(match[len(match)-1]); ok {
				return v, true
			}
		}
	}
	return "", false
}

func normalizeDigits(s string) (string, bool) {
	return s, s != ""
}

func parseWeight(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// FormatKg formats a weight the same way regardless of its source unit,
// so that "2.91 kg" and "6.418 lb" produce identical candidates.
func FormatKg(kg float64) string {
	return strconv.FormatFloat(kg, 'f', 2, 64)
}

func normalizeKg(s string) (string, bool) {
	v, ok := parseWeight(s)
	if !ok {
		return "", false
	}
	return FormatKg(v), true
}

func normalizeLb(s string) (string, bool) {
	v, ok := parseWeight(s)
	if !ok {
		return "", false
	}
	return FormatKg(v * kgPerPound), true
}
