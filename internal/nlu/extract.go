package nlu

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
)

// Birthday is one extracted (name, day, month) triplet. Month is always a
// canonical short form; extraction never returns a partial triplet.
type Birthday struct {
	Name  string
	Day   int
	Month string
}

// monthPattern is the shared alternation for month words. Full names are
// listed before their abbreviations so the whole word is consumed.
const monthPattern = `january|february|march|april|may|june|july|august|september|sept|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec`

var (
	// numericPairRe matches a D/M or D-M pair such as "29/08" or "9-2".
	numericPairRe = regexp.MustCompile(`\b(\d{1,2})\s*[/-]\s*(\d{1,2})\b`)

	// monthWordRe matches a month name or abbreviation as a whole word.
	monthWordRe = regexp.MustCompile(`(?i)\b(` + monthPattern + `)\b`)

	// dayTokenRe matches a standalone 1-2 digit number with an optional
	// ordinal suffix ("29", "3rd", "21st").
	dayTokenRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\b`)

	// legacyRe anchors the whole-string "<name> <month-word> <day>" shape,
	// e.g. "Papa aug 29". Lower priority than ExtractBirthday.
	legacyRe = regexp.MustCompile(`(?i)^\s*(\D+?)\s+(` + monthPattern + `)\s+(\d{1,2})(?:st|nd|rd|th)?\s*$`)

	// Date fragments stripped from delete input.
	dayDashRe  = regexp.MustCompile(`\b\d{1,2}\s*-`)
	monthDayRe = regexp.MustCompile(`(?i)\b(` + monthPattern + `)\b\s*\d{1,2}(?:st|nd|rd|th)?\b`)
	dayMonthRe = regexp.MustCompile(`(?i)\b\d{1,2}(?:st|nd|rd|th)?\s*\b(` + monthPattern + `)\b`)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

// ExtractBirthday pulls exactly one day, one month and a residual name out
// of free text. Pattern classes are tried in fixed precedence, and each
// consumes the first occurrence that passes bounds checking:
//
//  1. a numeric D/M or D-M pair resolves day and month together;
//  2. a month word resolves the month;
//  3. a standalone 1-2 digit number (optional ordinal suffix) resolves the day.
//
// Whatever text remains after the matched tokens are removed becomes the
// name. Extraction fails as a whole unless day, month and a non-empty name
// all resolve.
func ExtractBirthday(text string) (Birthday, bool) {
	working := text
	day := 0
	month := ""

	for _, m := range numericPairRe.FindAllStringSubmatchIndex(working, -1) {
		d, _ := strconv.Atoi(working[m[2]:m[3]])
		mo, _ := strconv.Atoi(working[m[4]:m[5]])
		if d >= config.MinDayOfMonth && d <= config.MaxDayOfMonth && mo >= 1 && mo <= 12 {
			day = d
			month = canonicalMonths[mo-1]
			working = working[:m[0]] + " " + working[m[1]:]
			break
		}
	}

	if month == "" {
		if loc := monthWordRe.FindStringIndex(working); loc != nil {
			if canon, ok := NormalizeMonth(working[loc[0]:loc[1]]); ok {
				month = canon
				working = working[:loc[0]] + " " + working[loc[1]:]
			}
		}
	}

	if day == 0 {
		for _, m := range dayTokenRe.FindAllStringSubmatchIndex(working, -1) {
			d, _ := strconv.Atoi(working[m[2]:m[3]])
			if d >= config.MinDayOfMonth && d <= config.MaxDayOfMonth {
				day = d
				working = working[:m[0]] + " " + working[m[1]:]
				break
			}
		}
	}

	if day == 0 || month == "" {
		return Birthday{}, false
	}

	name := CleanName(working)
	if name == "" {
		return Birthday{}, false
	}
	return Birthday{Name: name, Day: day, Month: month}, true
}

// ExtractLegacy recognizes the anchored "<name> <month-word> <day>" shape
// as a whole-string match. It only runs when ExtractBirthday has already
// declined, covering inputs whose name part would otherwise swallow the
// date tokens.
func ExtractLegacy(text string) (Birthday, bool) {
	m := legacyRe.FindStringSubmatch(text)
	if m == nil {
		return Birthday{}, false
	}
	month, ok := NormalizeMonth(m[2])
	if !ok {
		return Birthday{}, false
	}
	day, err := strconv.Atoi(m[3])
	if err != nil || day < config.MinDayOfMonth || day > config.MaxDayOfMonth {
		return Birthday{}, false
	}
	name := CleanName(m[1])
	if name == "" {
		return Birthday{}, false
	}
	return Birthday{Name: name, Day: day, Month: month}, true
}

// ExtractDeleteNames splits comma-separated delete input into clean name
// strings, stripping any date fragments that got entangled with the names:
// slash/dash pairs, trailing day-dash fragments, month-word plus day in
// either order, and stray 1-2 digit numbers.
func ExtractDeleteNames(text string) []string {
	var names []string
	for _, part := range strings.Split(text, ",") {
		cleaned := numericPairRe.ReplaceAllString(part, " ")
		cleaned = dayMonthRe.ReplaceAllString(cleaned, " ")
		cleaned = monthDayRe.ReplaceAllString(cleaned, " ")
		cleaned = dayDashRe.ReplaceAllString(cleaned, " ")
		cleaned = dayTokenRe.ReplaceAllString(cleaned, " ")
		if name := CleanName(cleaned); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ParseDayMonth extracts just a (day, month) pair from text, with the same
// precedence as ExtractBirthday but no residual-name requirement. Used by
// "who has a birthday on <date>" style queries.
func ParseDayMonth(text string) (int, string, bool) {
	for _, m := range numericPairRe.FindAllStringSubmatch(text, -1) {
		d, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		if d >= config.MinDayOfMonth && d <= config.MaxDayOfMonth && mo >= 1 && mo <= 12 {
			return d, canonicalMonths[mo-1], true
		}
	}

	month := ""
	working := text
	if loc := monthWordRe.FindStringIndex(working); loc != nil {
		if canon, ok := NormalizeMonth(working[loc[0]:loc[1]]); ok {
			month = canon
			working = working[:loc[0]] + " " + working[loc[1]:]
		}
	}
	if month == "" {
		return 0, "", false
	}
	for _, m := range dayTokenRe.FindAllStringSubmatch(working, -1) {
		d, _ := strconv.Atoi(m[1])
		if d >= config.MinDayOfMonth && d <= config.MaxDayOfMonth {
			return d, month, true
		}
	}
	return 0, "", false
}

// ContainsDateToken reports whether text carries anything that looks like a
// date: a numeric pair, a month word, or a bare number. The fuzzy lookup
// tier uses it to decline date-shaped residuals.
func ContainsDateToken(text string) bool {
	return numericPairRe.MatchString(text) ||
		monthWordRe.MatchString(text) ||
		dayTokenRe.MatchString(text)
}

// CleanName normalizes a residual name: commas become spaces, whitespace
// collapses, and stray punctuation left over from removed date tokens is
// trimmed from the edges. Inner punctuation (O'Brien, Jean-Luc) survives.
func CleanName(raw string) string {
	s := strings.ReplaceAll(raw, ",", " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.Trim(s, " \t-./:;!?")
	return strings.TrimSpace(s)
}

// noiseWords are filler tokens that commonly surround a name in save
// phrasing ("Mom's birthday is on...", "save papa ka birthday").
var noiseWords = map[string]struct{}{
	"birthday": {}, "birthdays": {}, "bday": {}, "b'day": {},
	"is": {}, "on": {}, "of": {}, "the": {}, "my": {}, "a": {}, "an": {},
	"for": {}, "to": {}, "save": {}, "add": {}, "remember": {}, "note": {},
	"jot": {}, "down": {}, "please": {}, "pls": {}, "ka": {}, "ki": {}, "ke": {},
}

// StripNoise trims filler words from the edges of an extracted name and
// drops a trailing possessive. Inner words survive, so "Uncle Sam" and
// "Mary Jane" pass through untouched.
func StripNoise(name string) string {
	words := strings.Fields(name)
	start, end := 0, len(words)
	for start < end {
		if _, ok := noiseWords[strings.ToLower(words[start])]; !ok {
			break
		}
		start++
	}
	for end > start {
		if _, ok := noiseWords[strings.ToLower(words[end-1])]; !ok {
			break
		}
		end--
	}
	out := strings.Join(words[start:end], " ")
	switch {
	case strings.HasSuffix(out, "'s"), strings.HasSuffix(out, "'S"):
		out = out[:len(out)-2]
	case strings.HasSuffix(out, "’s"), strings.HasSuffix(out, "’S"):
		out = out[:len(out)-len("’s")]
	}
	return strings.TrimSpace(out)
}
