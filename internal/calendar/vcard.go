package calendar

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-vcard"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/nlu"
)

// ParseCards reads every vCard in r and returns the birthdays found.
// Malformed cards and unparseable dates are skipped so one bad contact
// never sinks a whole shared address book.
func ParseCards(r io.Reader) []nlu.Birthday {
	decoder := vcard.NewDecoder(r)
	var found []nlu.Birthday

	for {
		card, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			slog.Warn(config.MsgSkippedCard,
				config.LogKeyComponent, config.CompCalendar,
				config.LogKeyError, err)
			continue
		}

		bday := card.Get(config.VCardBDAY)
		if bday == nil || bday.Value == "" {
			continue
		}

		day, month, ok := ParseBirthdayValue(bday.Value)
		if !ok {
			slog.Debug(config.MsgSkippedDate,
				config.LogKeyComponent, config.CompCalendar,
				config.LogKeyValue, bday.Value)
			continue
		}

		found = append(found, nlu.Birthday{Name: cardName(card), Day: day, Month: month})
	}
	return found
}

// cardName picks a display name: FN over an assembled N over the fallback.
func cardName(card vcard.Card) string {
	if fn := card.Get(config.VCardFN); fn != nil {
		if name := strings.TrimSpace(fn.Value); name != "" {
			return name
		}
	}
	if n := card.Name(); n != nil {
		name := strings.TrimSpace(strings.TrimSpace(n.GivenName) + " " + strings.TrimSpace(n.FamilyName))
		if name != "" {
			return name
		}
	}
	return config.FallbackName
}

// ParseBirthdayValue parses a vCard BDAY value into a day and canonical
// month. Dated (1990-08-29) and year-less (--08-29) forms are accepted;
// the year, when present, is discarded.
func ParseBirthdayValue(value string) (int, string, bool) {
	value = strings.TrimSpace(value)

	formatsWithYear := []string{
		config.DateFormatFullDash,
		config.DateFormatFullBasic,
		config.DateFormatRFC3339,
		config.DateFormatFullT,
	}
	for _, f := range formatsWithYear {
		if t, err := time.Parse(f, value); err == nil {
			return t.Day(), nlu.MonthShort(t.Month()), true
		}
	}

	// Year-less values are re-anchored on a leap year so 29 Feb survives.
	formatsWithoutYear := []string{config.DateFormatNoYearD, config.DateFormatNoYearB}
	for _, f := range formatsWithoutYear {
		if t, err := time.Parse(f, value); err == nil {
			safe := time.Date(config.DefaultLeapYear, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return safe.Day(), nlu.MonthShort(safe.Month()), true
		}
	}

	return 0, "", false
}
