package sampler

import (
	"regexp"
	"strconv"
	"strings"
)

// Google Maps encodes popular-times entries as aria-labels like
// "64% busy at 6 PM.", with a narrow no-break space (U+202F) between the
// hour and the meridiem. Live readings use the same "% busy" phrasing but
// carry no time reference.
var (
	percentRe    = regexp.MustCompile(`(\d+)%`)
	percentBusyRe = regexp.MustCompile(`(?i)\d+% busy`)
	hourNarrowRe = regexp.MustCompile(`at (\d{1,2})\x{202f}(AM|PM)\.?`)
	hourSpaceRe  = regexp.MustCompile(`at (\d{1,2}) (AM|PM)\.?`)
)

// liveTextPattern maps a live description to an estimated busyness when the
// page shows text instead of a percentage.
type liveTextPattern struct {
	re  *regexp.Regexp
	pct int
}

// Ordered: the first match wins, and the more specific phrases come first.
var liveTextPatterns = []liveTextPattern{
	{regexp.MustCompile(`(?i)as busy as it gets`), 100},
	{regexp.MustCompile(`(?i)busier than usual`), 75},
	{regexp.MustCompile(`(?i)not too busy`), 15},
	{regexp.MustCompile(`(?i)usually not busy`), 15},
	{regexp.MustCompile(`(?i)not busy`), 10},
}

// PopularTime is one parsed histogram entry.
type PopularTime struct {
	Hour24   int // 0–23
	Busyness int // 0–100
}

// ParseLivePercent extracts a live busyness percentage from an aria-label.
// A label qualifies as live when it mentions "% busy" without an "at <hour>"
// time reference.
func ParseLivePercent(aria string) (int, bool) {
	if !percentBusyRe.MatchString(aria) {
		return 0, false
	}
	if strings.Contains(strings.ToLower(aria), "at ") {
		return 0, false
	}
	m := percentRe.FindStringSubmatch(aria)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.Atoi(m[1])
	if err != nil || pct < 0 || pct > 100 {
		return 0, false
	}
	return pct, true
}

// MatchLiveText scans page text for a live busyness phrase and returns its
// estimated percentage.
func MatchLiveText(text string) (int, bool) {
	for _, p := range liveTextPatterns {
		if p.re.MatchString(text) {
			return p.pct, true
		}
	}
	return 0, false
}

// ParsePopularTime parses a historical histogram aria-label into an hour
// and a busyness percentage.
func ParsePopularTime(aria string) (PopularTime, bool) {
	if !percentBusyRe.MatchString(aria) {
		return PopularTime{}, false
	}
	m := hourNarrowRe.FindStringSubmatch(aria)
	if m == nil {
		m = hourSpaceRe.FindStringSubmatch(aria)
	}
	if m == nil {
		return PopularTime{}, false
	}
	hour12, err := strconv.Atoi(m[1])
	if err != nil || hour12 < 1 || hour12 > 12 {
		return PopularTime{}, false
	}
	hour24 := hour12 % 12
	if m[2] == "PM" {
		hour24 += 12
	}
	pm := percentRe.FindStringSubmatch(aria)
	if pm == nil {
		return PopularTime{}, false
	}
	pct, err := strconv.Atoi(pm[1])
	if err != nil || pct < 0 || pct > 100 {
		return PopularTime{}, false
	}
	return PopularTime{Hour24: hour24, Busyness: pct}, true
}

// FindTodayHour walks a flat histogram (seven day cycles concatenated, each
// day starting at 6 AM) and returns the busyness for the current weekday's
// target hour. dayOffset 0 is the first cycle, which Google renders as
// today.
func FindTodayHour(entries []PopularTime, targetHour int) (int, bool) {
	// Split into day cycles on the 6 AM boundary.
	var cycles [][]PopularTime
	var current []PopularTime
	for _, e := range entries {
		if e.Hour24 == 6 && len(current) > 0 {
			cycles = append(cycles, current)
			current = nil
		}
		current = append(current, e)
	}
	if len(current) > 0 {
		cycles = append(cycles, current)
	}
	if len(cycles) == 0 {
		return 0, false
	}
	for _, e := range cycles[0] {
		if e.Hour24 == targetHour {
			return e.Busyness, true
		}
	}
	return 0, false
}
