package sheet

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Date shapes observed in the input corpus. The set is intentionally
// permissive about separators; free-text approximations that match none
// of these stay unparsed and are preserved as raw text by the caller.
var (
	dateSeparated = regexp.MustCompile(`^(\d{4})[.\-/](\d{1,2})[.\-/](\d{1,2})$`)
	dateCJK       = regexp.MustCompile(`^(\d{4})年(\d{1,2})月(\d{1,2})日?$`)
	yearMonthDot  = regexp.MustCompile(`^(\d{4})[.\-/年](\d{1,2})月?$`)
	numericSerial = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// ParseDate parses a normalized cell into a date. It accepts
// YYYY-MM-DD, YYYY/MM/DD, YYYY.MM.DD, YYYY年MM月DD日 and Excel serial
// numbers. It never returns an error for free text; the second return
// value reports whether parsing succeeded.
func ParseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}

	for _, re := range []*regexp.Regexp{dateSeparated, dateCJK} {
		if m := re.FindStringSubmatch(value); m != nil {
			return buildDate(m[1], m[2], m[3])
		}
	}

	if numericSerial.MatchString(value) {
		if serial, err := strconv.ParseFloat(value, 64); err == nil {
			if d, ok := fromExcelSerial(serial); ok {
				return d, true
			}
		}
	}

	return time.Time{}, false
}

// ParseYearMonth parses a month reference ("2024.3", "2024-03",
// "2024年3月", a full date, or an Excel serial) and renders it in the
// canonical "2006-01" form.
func ParseYearMonth(value string) (string, bool) {
	if value == "" {
		return "", false
	}
	if m := yearMonthDot.FindStringSubmatch(value); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			return fmt.Sprintf("%04d-%02d", year, month), true
		}
		return "", false
	}
	if d, ok := ParseDate(value); ok {
		return d.Format("2006-01"), true
	}
	return "", false
}

func buildDate(y, m, d string) (time.Time, bool) {
	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(m)
	day, _ := strconv.Atoi(d)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// Reject rollovers like February 30th.
	if int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// fromExcelSerial converts an Excel date serial to a calendar date.
// Serial 60 does not exist (the 1900 leap-year artifact), so serials
// above 59 shift down by one. Values outside the plausible range of
// human birth and service dates are rejected rather than mis-parsed.
func fromExcelSerial(serial float64) (time.Time, bool) {
	if serial < 61 || serial > 80000 { // ~2119-01-30
		return time.Time{}, false
	}
	serial--
	epoch := time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
	return epoch.AddDate(0, 0, int(serial)-1), true
}
