// Package datenorm canonicalizes the date shapes found in clientbook data
// into calendar dates of the form YYYY-MM-DD.
//
// Two-part day/month text such as 01/02/2025 is inherently ambiguous. The
// resolution rules below are a lossy heuristic kept exactly as users have
// come to rely on them: a component above 12 must be the day; otherwise
// the reading that does not land in the future wins; otherwise day comes
// before month. Do not change them without product input.
package datenorm

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"
)

// Layout is the canonical calendar-date layout.
const Layout = "2006-01-02"

var (
	canonicalRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	yearFirstRe = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})$`)
	yearLastRe  = regexp.MustCompile(`^(\d{1,2})[-/.](\d{1,2})[-/.](\d{4})$`)

	// jsZoneNameRe strips the "(Zone Name)" suffix of JavaScript
	// Date.prototype.toString output.
	jsZoneNameRe = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
)

// parser handles the generic fallback step. Only layouts that carry a full
// calendar date are listed so bare times or numbers are never read as today.
var parser = &now.Config{
	TimeLocation: time.UTC,
	TimeFormats: []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		time.RFC1123Z,
		time.RFC1123,
		time.RFC850,
		time.ANSIC,
		time.UnixDate,
		"Mon Jan 02 2006 15:04:05 GMT-0700",
		"Mon Jan 2 2006",
		"Mon, 02 Jan 2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"Jan 2 2006",
		"2 Jan 2006",
		"2 January 2006",
	},
}

// Normalize converts value to a canonical calendar date. Accepted shapes are
// strings, time.Time, *time.Time, Unix-millisecond numbers (int, int64,
// float64, json.Number) and nil. ref is "today" for the future-date test
// on ambiguous input. Timestamps reduce to their UTC calendar date.
//
// Normalize never panics; anything it cannot read yields ("", false).
func Normalize(value any, ref time.Time) (string, bool) {
	t, ok := resolve(value, ref)
	if !ok {
		return "", false
	}
	return t.Format(Layout), true
}

// OrNow normalizes value and falls back to ref's calendar date.
func OrNow(value any, ref time.Time) string {
	if s, ok := Normalize(value, ref); ok {
		return s
	}
	return ref.UTC().Format(Layout)
}

// Timestamp reads value as an instant. Date-only input yields midnight UTC
// and ambiguous day/month text is resolved against ref. Used for lenient
// createdAt/editedDate fields in imported data.
func Timestamp(value any, ref time.Time) (time.Time, bool) {
	if s, ok := value.(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s)); err == nil {
			return t.UTC(), true
		}
	}
	return resolve(value, ref)
}

// resolve applies the rules in priority order and returns the resulting
// instant (in UTC for timestamps, midnight UTC for dates).
func resolve(value any, ref time.Time) (time.Time, bool) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false
	case string:
		return resolveString(v, ref)
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return v.UTC(), true
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return v.UTC(), true
	case int:
		return fromMillis(float64(v))
	case int64:
		return fromMillis(float64(v))
	case float64:
		return fromMillis(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromMillis(f)
	default:
		return time.Time{}, false
	}
}

func resolveString(raw string, ref time.Time) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	// 1. Canonical, when it names a real day.
	if canonicalRe.MatchString(s) {
		if t, err := time.Parse(Layout, s); err == nil {
			return t, true
		}
		return time.Time{}, false
	}

	// 2. Year first.
	if m := yearFirstRe.FindStringSubmatch(s); m != nil {
		return date(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}

	// 3. Two-part day/month with a trailing year.
	if m := yearLastRe.FindStringSubmatch(s); m != nil {
		return disambiguate(atoi(m[1]), atoi(m[2]), atoi(m[3]), ref)
	}

	// 4. Generic parsing.
	s = jsZoneNameRe.ReplaceAllString(s, "")
	t, err := parser.With(ref.UTC()).Parse(s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// disambiguate resolves a/b/year where a and b are day and month in some
// order.
func disambiguate(a, b, year int, ref time.Time) (time.Time, bool) {
	switch {
	case a > 12:
		return date(year, b, a)
	case b > 12:
		return date(year, a, b)
	}

	dayFirst, okDay := date(year, b, a)
	monthFirst, okMonth := date(year, a, b)
	if !okDay || !okMonth {
		if okDay {
			return dayFirst, true
		}
		return monthFirst, okMonth
	}

	y, m, d := ref.UTC().Date()
	today, _ := date(y, int(m), d)
	dayFuture := dayFirst.After(today)
	monthFuture := monthFirst.After(today)
	if dayFuture && !monthFuture {
		return monthFirst, true
	}
	return dayFirst, true
}

// date builds midnight UTC for y-m-d, rejecting values time.Date would
// silently roll over.
func date(y, m, d int) (time.Time, bool) {
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}

func fromMillis(ms float64) (time.Time, bool) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}, false
	}
	// ECMAScript time value range: ±8.64e15 ms.
	if math.Abs(ms) > 8.64e15 {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)).UTC(), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
