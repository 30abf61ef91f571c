package calendar_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/calendar"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/nlu"
)

func TestParseCards_MixedBook(t *testing.T) {
	// One good card, one without a birthday and one with a garbage BDAY.
	// Only the good one should survive.
	content := strings.Join([]string{
		"BEGIN:VCARD", "VERSION:3.0", "FN:John Doe", "BDAY:1990-08-29", "END:VCARD",
		"BEGIN:VCARD", "VERSION:3.0", "FN:No Birthday", "END:VCARD",
		"BEGIN:VCARD", "VERSION:3.0", "FN:Bad Date", "BDAY:not-a-date", "END:VCARD",
	}, "\r\n")

	got := calendar.ParseCards(strings.NewReader(content))

	require.Len(t, got, 1)
	assert.Equal(t, nlu.Birthday{Name: "John Doe", Day: 29, Month: "Aug"}, got[0])
}

func TestParseCards_NamePreference(t *testing.T) {
	// FN wins, a structured N is assembled when FN is absent, and a card
	// with neither still imports under the fallback name.
	content := strings.Join([]string{
		"BEGIN:VCARD", "VERSION:3.0", "FN:Formatted Name", "N:Ignored;Also;;;", "BDAY:--01-05", "END:VCARD",
		"BEGIN:VCARD", "VERSION:3.0", "N:Narain;Naman;;;", "BDAY:--01-06", "END:VCARD",
		"BEGIN:VCARD", "VERSION:3.0", "BDAY:--01-07", "END:VCARD",
	}, "\r\n")

	got := calendar.ParseCards(strings.NewReader(content))

	require.Len(t, got, 3)
	assert.Equal(t, "Formatted Name", got[0].Name)
	assert.Equal(t, "Naman Narain", got[1].Name)
	assert.Equal(t, config.FallbackName, got[2].Name)
}

func TestParseCards_TruncatedStream(t *testing.T) {
	// A stream cut off mid-card must not hang; whatever decoded cleanly
	// before the cut is kept.
	content := "BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Complete\r\nBDAY:--02-09\r\nEND:VCARD\r\nBEGIN:VCARD\r\nVERSION:3.0\r\nFN:Cut Off"

	got := calendar.ParseCards(strings.NewReader(content))

	require.Len(t, got, 1)
	assert.Equal(t, nlu.Birthday{Name: "Complete", Day: 9, Month: "Feb"}, got[0])
}

func TestParseCards_EmptyStream(t *testing.T) {
	assert.Empty(t, calendar.ParseCards(strings.NewReader("")))
}

func TestParseBirthdayValue(t *testing.T) {
	tests := []struct {
		name  string
		value string
		day   int
		month string
		ok    bool
	}{
		{"dashed with year", "1990-08-29", 29, "Aug", true},
		{"basic with year", "19901025", 25, "Oct", true},
		{"rfc3339", "1990-10-25T00:00:00Z", 25, "Oct", true},
		{"year-less dashed", "--02-09", 9, "Feb", true},
		{"year-less basic", "--0209", 9, "Feb", true},
		{"leap day year-less", "--02-29", 29, "Feb", true},
		{"padded whitespace", " 1990-08-29 ", 29, "Aug", true},
		{"garbage", "not-a-date", 0, "", false},
		{"empty", "", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day, month, ok := calendar.ParseBirthdayValue(tt.value)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.day, day)
			assert.Equal(t, tt.month, month)
		})
	}
}
