// Package match scores stored names against free-text queries using a
// fixed ladder of rules, from exact equality down to per-word edit
// distance. Callers get back which rule fired and its score, so "varu"
// still finds "Varun" while garbage stays below the cutoff.
package match

import (
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
)

// Type identifies the rule that produced a match.
type Type string

const (
	TypeExact         Type = "exact"
	TypePrefix        Type = "prefix"
	TypeSubstring     Type = "substring"
	TypeFuzzy         Type = "fuzzy"
	TypeWordPrefix    Type = "word_prefix"
	TypeWordSubstring Type = "word_substring"
	TypeWordFuzzy     Type = "word_fuzzy"
)

// Result describes how a candidate matched a query.
type Result struct {
	Type  Type
	Score float64
}

// Candidate pairs a stored name with the score of its best match.
type Candidate struct {
	Name  string
	Score float64
	Type  Type
}

// Match reports whether query matches candidate and how. Comparison is
// case-insensitive and the rules are tried in a fixed order, first hit
// wins: exact, prefix, substring, whole-string edit distance, then the
// same ladder against individual words of multi-word names. Prefix and
// substring rules require at least MinPartialLen runes of query so a
// single letter cannot match half the address book.
func Match(query, candidate string) (Result, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	c := strings.ToLower(strings.TrimSpace(candidate))
	if q == "" || c == "" {
		return Result{}, false
	}

	partialOK := utf8.RuneCountInString(q) >= config.MinPartialLen

	if q == c {
		return Result{Type: TypeExact, Score: config.ScoreExact}, true
	}
	if partialOK && strings.HasPrefix(c, q) {
		return Result{Type: TypePrefix, Score: config.ScorePrefix}, true
	}
	if partialOK && strings.Contains(c, q) {
		return Result{Type: TypeSubstring, Score: config.ScoreSubstring}, true
	}
	if sim := Similarity(q, c); sim >= config.LevenshteinFloor {
		return Result{Type: TypeFuzzy, Score: sim}, true
	}

	// Second pass over the individual words of multi-word names, so
	// "papa" finds "Papa Ji" and "varu" finds "Varun Narain".
	words := strings.Fields(c)
	if len(words) < 2 {
		return Result{}, false
	}
	for _, w := range words {
		if partialOK && strings.HasPrefix(w, q) {
			return Result{Type: TypeWordPrefix, Score: config.ScoreWordPrefix}, true
		}
	}
	for _, w := range words {
		if partialOK && strings.Contains(w, q) {
			return Result{Type: TypeWordSubstring, Score: config.ScoreWordSubstring}, true
		}
	}
	best := 0.0
	for _, w := range words {
		if sim := Similarity(q, w); sim >= config.LevenshteinFloor && sim > best {
			best = sim
		}
	}
	if best > 0 {
		return Result{Type: TypeWordFuzzy, Score: best * config.WordFuzzyFactor}, true
	}
	return Result{}, false
}

// Rank scores every name against the query and returns those at or above
// minScore, best first. A non-positive minScore selects the default
// cutoff. Ties are broken by name under a case-insensitive collation so
// result ordering is stable across runs.
func Rank(query string, names []string, minScore float64) []Candidate {
	if minScore <= 0 {
		minScore = config.MinMatchScore
	}

	var out []Candidate
	for _, name := range names {
		res, ok := Match(query, name)
		if !ok || res.Score < minScore {
			continue
		}
		out = append(out, Candidate{Name: name, Score: res.Score, Type: res.Type})
	}
	if len(out) < 2 {
		return out
	}

	col := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return col.CompareString(out[i].Name, out[j].Name) < 0
	})
	return out
}

// Similarity returns 1 - lev(a,b)/max(len(a),len(b)) over runes,
// case-insensitive. Two empty strings are identical, hence 1.
func Similarity(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein computes the edit distance between two rune slices using
// the classic two-row dynamic program.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
