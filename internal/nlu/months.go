// Package nlu contains the deterministic text-understanding primitives of
// the bot: month canonicalization, birthday extraction from free text, and
// the date-window arithmetic behind "upcoming birthdays" queries.
//
// Everything in this package is pure and total: bad input yields a failed
// lookup (ok == false), never a panic, so callers can chain extractors as
// fallback tiers.
package nlu

import (
	"strconv"
	"strings"
	"time"
)

// canonicalMonths is the single on-disk representation of months, indexed
// by time.Month-1.
var canonicalMonths = [12]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// monthAliases maps every accepted spelling (lowercased) to its 1-based
// month index. "sept" is the one common four-letter abbreviation.
var monthAliases = map[string]int{
	"jan": 1, "january": 1,
	"feb": 2, "february": 2,
	"mar": 3, "march": 3,
	"apr": 4, "april": 4,
	"may": 5,
	"jun": 6, "june": 6,
	"jul": 7, "july": 7,
	"aug": 8, "august": 8,
	"sep": 9, "sept": 9, "september": 9,
	"oct": 10, "october": 10,
	"nov": 11, "november": 11,
	"dec": 12, "december": 12,
}

// NormalizeMonth canonicalizes a month token - a number "1".."12", an
// abbreviation, or a full English name, in any case - to one of the twelve
// fixed short forms. Unrecognized tokens and out-of-range numbers return
// ("", false); callers treat that as "no month present".
func NormalizeMonth(token string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(token))
	if t == "" {
		return "", false
	}
	if n, err := strconv.Atoi(t); err == nil {
		if n >= 1 && n <= 12 {
			return canonicalMonths[n-1], true
		}
		return "", false
	}
	if idx, ok := monthAliases[t]; ok {
		return canonicalMonths[idx-1], true
	}
	return "", false
}

// MonthIndex returns the 1-based index of a month token (canonical or any
// accepted spelling), or 0 when the token is not a month. It is the sort
// key for chronological listings and feeds.
func MonthIndex(token string) int {
	t := strings.ToLower(strings.TrimSpace(token))
	if n, err := strconv.Atoi(t); err == nil {
		if n >= 1 && n <= 12 {
			return n
		}
		return 0
	}
	return monthAliases[t]
}

// MonthShort converts a time.Month to the canonical short form.
func MonthShort(m time.Month) string {
	return canonicalMonths[int(m)-1]
}

// IsMonthWord reports whether the token spells a month (numbers excluded).
// Month-only queries require a spelled month so a bare number keeps reading
// as a day.
func IsMonthWord(token string) bool {
	_, ok := monthAliases[strings.ToLower(strings.TrimSpace(token))]
	return ok
}
