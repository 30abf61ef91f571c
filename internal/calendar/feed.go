// Package calendar turns stored birthdays into a subscribable iCalendar
// feed and pulls birthdays out of shared vCard data.
package calendar

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-ical"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/nlu"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/store"
)

// FeedToken derives the calendar credential for an owner from the shared
// feed secret. Tokens are deterministic, so feed URLs survive restarts
// without a token table.
func FeedToken(ownerID, secret string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf(config.FormatTokenInput, ownerID, secret)))
	return hex.EncodeToString(sum[:])[:config.FeedTokenLength]
}

// Builder renders a user's stored birthdays as an iCalendar feed.
type Builder struct {
	// FormatSummary renders event titles. The caller injects a localized
	// formatter; nil falls back to config.FallbackSummary.
	FormatSummary func(name string) string
}

// Build produces the feed bytes for records, anchored on now. Events cover
// the previous, current and next year so calendar apps can scroll in either
// direction between refreshes. A user with nothing stored gets a minimal
// valid VCALENDAR; clients flag a zero-byte feed as broken.
func (b *Builder) Build(now time.Time, records []store.Record) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	cal.Props.SetText(config.PropXWRCalName, config.ICalCalName)
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropMethod, config.ICalMethod)

	refreshProp := ical.NewProp(config.PropRefresh)
	refreshProp.SetDuration(config.DefaultICalRefresh)
	cal.Props.Set(refreshProp)

	// Birthdays are local calendar dates; UTC is only for the stamp.
	dtStampProp := ical.NewProp(config.PropDTStamp)
	dtStampProp.SetDateTime(now.UTC())

	for _, rec := range records {
		monthIdx := nlu.MonthIndex(rec.Month)
		if monthIdx == 0 {
			slog.Warn(config.MsgSkippedDate,
				config.LogKeyComponent, config.CompCalendar,
				config.LogKeyValue, rec.Month)
			continue
		}

		for _, e := range b.events(rec, monthIdx, now) {
			e.Props.Set(dtStampProp)
			cal.Children = append(cal.Children, e.Component)
		}
	}

	if len(cal.Children) == 0 {
		return []byte(config.StubVCalendar), nil
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}
	return buf.Bytes(), nil
}

// events creates one all-day event per target year. UIDs are deterministic
// hashes of the record fields so calendar clients keep event identity
// across refreshes.
func (b *Builder) events(rec store.Record, monthIdx int, now time.Time) []*ical.Event {
	input := config.UIDSalt + fmt.Sprintf(config.FormatHashInput, rec.Name, rec.Month, rec.Day)
	hash := sha256.Sum256([]byte(input))
	uidBase := fmt.Sprintf("%x", hash[:config.UIDHashLength])

	summary := fmt.Sprintf(config.FallbackSummary, rec.Name)
	if b.FormatSummary != nil {
		summary = b.FormatSummary(rec.Name)
	}

	currentYear := now.Year()
	loc := now.Location()

	events := make([]*ical.Event, 0, config.FeedEventYears)
	for _, y := range []int{currentYear - 1, currentYear, currentYear + 1} {
		event := ical.NewEvent()
		event.Props.SetText(config.PropUID, fmt.Sprintf(config.FormatUID, uidBase, y, config.ICalDomain))
		event.Props.SetText(config.PropSummary, summary)

		// time.Date normalizes 29 Feb to 1 Mar in non-leap years.
		dtStartProp := ical.NewProp(config.PropDTStart)
		dtStartProp.SetDate(time.Date(y, time.Month(monthIdx), rec.Day, 0, 0, 0, 0, loc))
		event.Props.Set(dtStartProp)

		events = append(events, event)
	}
	return events
}
