// Package duration converts free-text employment date ranges into numeric
// years of experience. The conversion is a heuristic view over opaque
// duration text; it is recomputed on demand and never stored on a record.
package duration

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reExplicitYears  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:year|yr)`)
	reExplicitMonths = regexp.MustCompile(`(?i)(\d+)\s*(?:month|mo)`)
	rePresent        = regexp.MustCompile(`(?i)present|current|now`)
	reMonthYearStart = regexp.MustCompile(`(?i)([A-Za-z]+)\s*(\d{4})\s*[-–—]`)
	reYearStart      = regexp.MustCompile(`(\d{4})\s*[-–—]`)
	reNumericRange   = regexp.MustCompile(`(\d{1,2})\s*/\s*(\d{4})\s*[-–—]\s*(\d{1,2})\s*/\s*(\d{4})`)
	reYearRange      = regexp.MustCompile(`(?:^|[^0-9])(\d{4})\s*[-–—]\s*(\d{4})(?:[^0-9]|$)`)
	reMonthYearRange = regexp.MustCompile(`(?i)([A-Za-z]+)\s*(\d{4})\s*[-–—]\s*([A-Za-z]+)\s*(\d{4})`)
)

// months maps the lowercase 3-letter prefix of a month name to its zero-based
// index. Unrecognized tokens are a lookup miss, not an error.
var months = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

func monthIndex(token string) int {
	token = strings.ToLower(token)
	if len(token) > 3 {
		token = token[:3]
	}
	for i, m := range months {
		if m == token {
			return i
		}
	}
	return -1
}

// YearsFromDuration parses duration text such as "2 years", "Jan 2020 -
// Present" or "07/2024 - 06/2025" into a number of years, relative to the
// current date. Returns 0 when no pattern matches.
func YearsFromDuration(text string) float64 {
	return YearsFromDurationAt(text, time.Now())
}

// YearsFromDurationAt is YearsFromDuration with an explicit reference time,
// so open-ended ranges ("... - Present") stay deterministic in tests.
//
// Pattern attempts are ordered; the first match wins:
//  1. explicit years ("3 years", "2.5 yr")
//  2. explicit months ("18 months", "6 mo")
//  3. open-ended ranges ending in present/current/now
//  4. numeric MM/YYYY - MM/YYYY ranges
//  5. bare YYYY - YYYY ranges
//  6. Month YYYY - Month YYYY ranges
func YearsFromDurationAt(text string, now time.Time) float64 {
	if text == "" || text == NoDurationLabel {
		return 0
	}

	nowYear := now.Year()
	nowMonth := int(now.Month()) - 1 // zero-based, to match the calendar table

	if m := reExplicitYears.FindStringSubmatch(text); m != nil {
		years, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return years
		}
	}

	if m := reExplicitMonths.FindStringSubmatch(text); m != nil {
		monthCount, err := strconv.Atoi(m[1])
		if err == nil {
			return round1(float64(monthCount) / 12)
		}
	}

	if rePresent.MatchString(text) {
		if m := reMonthYearStart.FindStringSubmatch(text); m != nil {
			startYear, _ := strconv.Atoi(m[2])
			if startMonth := monthIndex(m[1]); startMonth != -1 {
				elapsed := float64(nowYear-startYear) + float64(nowMonth-startMonth)/12
				return math.Max(0, round1(elapsed))
			}
			// Month token did not resolve; fall back to whole years.
			return math.Max(0, float64(nowYear-startYear))
		}

		if m := reYearStart.FindStringSubmatch(text); m != nil {
			startYear, _ := strconv.Atoi(m[1])
			return math.Max(0, float64(nowYear-startYear))
		}
	}

	if m := reNumericRange.FindStringSubmatch(text); m != nil {
		startMonth, _ := strconv.Atoi(m[1])
		startYear, _ := strconv.Atoi(m[2])
		endMonth, _ := strconv.Atoi(m[3])
		endYear, _ := strconv.Atoi(m[4])

		totalMonths := (endYear-startYear)*12 + (endMonth - startMonth)
		return math.Max(0, float64(totalMonths)/12)
	}

	if m := reYearRange.FindStringSubmatch(text); m != nil {
		startYear, _ := strconv.Atoi(m[1])
		endYear, _ := strconv.Atoi(m[2])
		return math.Max(0, float64(endYear-startYear))
	}

	if m := reMonthYearRange.FindStringSubmatch(text); m != nil {
		startYear, _ := strconv.Atoi(m[2])
		endYear, _ := strconv.Atoi(m[4])
		yearDiff := float64(endYear - startYear)

		startMonth := monthIndex(m[1])
		endMonth := monthIndex(m[3])
		if startMonth != -1 && endMonth != -1 {
			return round1(yearDiff + float64(endMonth-startMonth)/12)
		}

		return yearDiff
	}

	return 0
}

// NoDurationLabel is the sentinel rendered for zero-length durations and
// accepted as "no duration" input.
const NoDurationLabel = "N/A"

// FormatYears renders a year count for display: "N/A" for zero, whole months
// below one year, floored whole years otherwise.
func FormatYears(years float64) string {
	if years == 0 {
		return NoDurationLabel
	}

	totalMonths := int(math.Round(years * 12))
	if totalMonths < 12 {
		return strconv.Itoa(totalMonths) + " month"
	}

	return strconv.Itoa(int(math.Floor(years))) + " year"
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
