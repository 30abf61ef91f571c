package match_test

import (
	"testing"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMatch_SelfIsAlwaysExact pins the identity property: any name matches
// itself with type exact and full confidence, regardless of case.
func TestMatch_SelfIsAlwaysExact(t *testing.T) {
	names := []string{"Papa", "Tanni", "Zoë", "Jean-Luc", "Uncle Sam", "x"}

	for _, n := range names {
		t.Run(n, func(t *testing.T) {
			res, ok := match.Match(n, n)
			require.True(t, ok)
			assert.Equal(t, match.TypeExact, res.Type)
			assert.Equal(t, 1.0, res.Score)

			res, ok = match.Match(n, "  "+n+" ")
			require.True(t, ok, "surrounding whitespace should not matter")
			assert.Equal(t, match.TypeExact, res.Type)
		})
	}

	res, ok := match.Match("VARUN", "varun")
	require.True(t, ok)
	assert.Equal(t, match.TypeExact, res.Type)
}

func TestMatch_Ladder(t *testing.T) {
	tests := []struct {
		scenario  string
		query     string
		candidate string
		wantType  match.Type
		wantScore float64
		wantOK    bool
	}{
		{
			scenario:  "query is a prefix of the candidate",
			query:     "varu",
			candidate: "Varun",
			wantType:  match.TypePrefix,
			wantScore: 0.9,
			wantOK:    true,
		},
		{
			scenario:  "query appears inside the candidate",
			query:     "aru",
			candidate: "Varun",
			wantType:  match.TypeSubstring,
			wantScore: 0.7,
			wantOK:    true,
		},
		{
			scenario:  "query appears inside a later word",
			query:     "sam",
			candidate: "Uncle Sam",
			wantType:  match.TypeSubstring,
			wantScore: 0.7,
			wantOK:    true,
		},
		{
			scenario:  "one-letter typo resolves via edit distance",
			query:     "varin",
			candidate: "Varun",
			wantType:  match.TypeFuzzy,
			wantScore: 0.8, // 1 edit over 5 runes
			wantOK:    true,
		},
		{
			scenario:  "typo against one word of a multi-word name",
			query:     "varin",
			candidate: "Varun Narain",
			wantType:  match.TypeWordFuzzy,
			wantScore: 0.8 * 0.9,
			wantOK:    true,
		},
		{
			scenario:  "single letters never partial-match",
			query:     "v",
			candidate: "Varun",
			wantOK:    false,
		},
		{
			scenario:  "unrelated names do not match",
			query:     "xyz",
			candidate: "Varun",
			wantOK:    false,
		},
		{
			scenario:  "empty query never matches",
			query:     "",
			candidate: "Varun",
			wantOK:    false,
		},
		{
			scenario:  "empty candidate never matches",
			query:     "varun",
			candidate: "   ",
			wantOK:    false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.scenario, func(t *testing.T) {
			res, ok := match.Match(tc.query, tc.candidate)
			require.Equal(t, tc.wantOK, ok)
			if !tc.wantOK {
				return
			}
			assert.Equal(t, tc.wantType, res.Type)
			assert.InDelta(t, tc.wantScore, res.Score, 1e-9)
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, match.Similarity("", ""), "two empty strings are identical")
	assert.Equal(t, 1.0, match.Similarity("ABC", "abc"), "comparison is case-insensitive")
	assert.InDelta(t, 1.0-3.0/7.0, match.Similarity("kitten", "sitting"), 1e-9)
	assert.Equal(t, 0.0, match.Similarity("", "abc"))
}

func TestRank_OrderingAndCutoff(t *testing.T) {
	names := []string{"Varsha", "Tanni", "Varun", "Vikram"}

	got := match.Rank("var", names, 0)

	// Varsha and Varun tie on the prefix score; the tie breaks on name.
	require.Len(t, got, 2)
	assert.Equal(t, "Varsha", got[0].Name)
	assert.Equal(t, "Varun", got[1].Name)
	assert.Equal(t, got[0].Score, got[1].Score)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score, "scores must be descending")
	}
}

func TestRank_EmptyResultIsValid(t *testing.T) {
	got := match.Rank("zzz", []string{"Papa", "Tanni"}, 0)
	assert.Empty(t, got)

	got = match.Rank("papa", nil, 0)
	assert.Empty(t, got)
}

func TestRank_RespectsCallerMinimum(t *testing.T) {
	names := []string{"Varun", "Narain Varun"}

	// At the default cutoff both qualify; at 0.85 only the prefix match does.
	require.Len(t, match.Rank("varu", names, 0), 2)

	strict := match.Rank("varu", names, 0.85)
	require.Len(t, strict, 1)
	assert.Equal(t, "Varun", strict[0].Name)
}

// TestRank_TieOrderIsLocaleAware documents that tie-breaking uses collation
// rather than byte order, so accented names sort next to their base letter
// instead of after the whole ASCII range.
func TestRank_TieOrderIsLocaleAware(t *testing.T) {
	got := match.Rank("nn", []string{"Benna", "Ánna"}, 0.6)
	require.Len(t, got, 2)
	assert.Equal(t, got[0].Score, got[1].Score, "both are substring hits")

	assert.Equal(t, "Ánna", got[0].Name)
	assert.Equal(t, "Benna", got[1].Name)
}
