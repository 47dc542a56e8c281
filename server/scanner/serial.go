package scanner

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SerialKind selects how we find the serial number of a case.
// Different suppliers print serials differently, and we only know who the supplier
// is once we've looked the product up in the catalog.
type SerialKind int

const (
	SerialPoultry     SerialKind = iota // 14 digits, near a LOT/SN/SERIAL anchor
	SerialBeefPork                      // 12 digits, preferably labeled
	SerialSynthesized                   // No usable serial on the label. Use the scan time.
)

func (k SerialKind) String() string {
	switch k {
	case SerialPoultry:
		return "poultry"
	case SerialBeefPork:
		return "beef/pork"
	case SerialSynthesized:
		return "synthesized"
	}
	return "unknown"
}

// SerialKindFor maps a catalog category to a serial strategy
func SerialKindFor(category string) SerialKind {
	c := strings.ToLower(strings.TrimSpace(category))
	switch {
	case c == "poultry" || strings.Contains(c, "chicken"):
		return SerialPoultry
	case c == "beef" || c == "pork":
		return SerialBeefPork
	}
	return SerialSynthesized
}

var (
	serialAnchor    = regexp.MustCompile(`(?i)\b(?:lot|s/?n|serial)\b`)
	poultrySerial   = regexp.MustCompile(`(?:^|\D)(\d{14})(?:\D|$)`)
	labeledSerial12 = regexp.MustCompile(`(?i)\b(?:s/?n|serial(?:\s*no\.?)?)\s*[:#]?\s*(\d{12})(?:\D|$)`)
	bareSerial12    = regexp.MustCompile(`(?:^|\D)(\d{12})(?:\D|$)`)
)

// ExtractSerial finds the serial of a case in the text lines that were inside the ROI.
// The returned bool is false if the strategy found nothing on the label, in which case
// a synthesized serial is returned.
func ExtractSerial(kind SerialKind, lines []string, now time.Time) (string, bool) {
	switch kind {
	case SerialPoultry:
		if s, ok := findPoultrySerial(lines); ok {
			return s, true
		}
	case SerialBeefPork:
		if s, ok := findFirst(labeledSerial12, lines); ok {
			return s, true
		}
		if s, ok := findFirst(bareSerial12, lines); ok {
			return s, true
		}
	case SerialSynthesized:
		return synthesizeSerial(now), true
	}
	return synthesizeSerial(now), false
}

func synthesizeSerial(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10)
}

// Lines with an anchor, and the line immediately after an anchor, are searched first
func findPoultrySerial(lines []string) (string, bool) {
	for i, line := range lines {
		if !serialAnchor.MatchString(line) {
			continue
		}
		if s, ok := findFirst(poultrySerial, lines[i:min(i+2, len(lines))]); ok {
			return s, true
		}
	}
	return findFirst(poultrySerial, lines)
}

func findFirst(re *regexp.Regexp, lines []string) (string, bool) {
	for _, line := range lines {
		if m := re.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// serialAsInt returns the serial as a positive integer, if it is one
func serialAsInt(serial string) (int64, bool) {
	v, err := strconv.ParseInt(serial, 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
