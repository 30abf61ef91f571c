// Package reminder delivers the daily "it's their birthday today" message.
// A worker sweeps all user profiles on a short interval and sends at most one
// reminder per user per local day, at the configured local hour.
package reminder

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/engine"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/nlu"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/store"
)

// Worker owns the reminder schedule. All fields are required except Clock
// and Interval, which default to the wall clock and
// config.ReminderTickInterval.
type Worker struct {
	Store    store.Store
	Sender   engine.Sender
	Replies  *engine.Replies
	Clock    engine.Clock
	Hour     int // local hour of day to deliver at
	Interval time.Duration
}

// Run blocks sweeping until ctx is cancelled. One sweep happens immediately
// so a restart during the delivery hour does not lose the day.
func (w *Worker) Run(ctx context.Context) {
	log := slog.With(config.LogKeyComponent, config.CompReminder)

	interval := w.Interval
	if interval <= 0 {
		interval = config.ReminderTickInterval
	}

	log.Info(config.MsgWorkerStart,
		config.LogKeyInterval, interval,
		config.LogKeyHour, w.Hour,
	)

	w.Sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info(config.MsgWorkerStop)
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep walks every user profile once and reminds those whose local clock
// is inside the delivery hour. A failure for one user never blocks the rest.
func (w *Worker) Sweep(ctx context.Context) {
	log := slog.With(config.LogKeyComponent, config.CompReminder)

	profiles, err := w.Store.Profiles(ctx)
	if err != nil {
		log.Error(config.ErrStoreQuery, config.LogKeyError, err)
		return
	}

	now := w.now()
	sent := 0
	for _, profile := range profiles {
		if w.remind(ctx, profile, now) {
			sent++
		}
	}

	log.Debug(config.MsgReminderSweep,
		config.LogKeyCount, sent,
	)
}

// remind sends today's reminder to one user if due. It reports whether a
// message went out.
func (w *Worker) remind(ctx context.Context, profile *store.UserProfile, now time.Time) bool {
	log := slog.With(
		config.LogKeyComponent, config.CompReminder,
		config.LogKeyOwner, engine.OwnerHash(profile.OwnerID),
	)

	loc, err := time.LoadLocation(profile.Timezone)
	if err != nil {
		log.Warn(config.MsgBadTimezone,
			config.LogKeyTimezone, profile.Timezone,
		)
		loc = time.UTC
	}

	local := now.In(loc)
	if local.Hour() != w.Hour {
		return false
	}

	// The ticker fires several times within the delivery hour; the stamp
	// set after a send keeps the day idempotent.
	if profile.LastReminderSentAt != nil {
		last := profile.LastReminderSentAt.In(loc)
		if last.Year() == local.Year() && last.YearDay() == local.YearDay() {
			return false
		}
	}

	records, err := w.Store.FindByDate(ctx, profile.OwnerID, local.Day(), nlu.MonthShort(local.Month()))
	if err != nil {
		log.Error(config.ErrStoreQuery, config.LogKeyError, err)
		return false
	}

	// 29 Feb entries surface on 1 Mar when the year has no leap day, the
	// same date the calendar feed normalizes them to.
	if local.Day() == 1 && local.Month() == time.March && !isLeapYear(local.Year()) {
		spill, err := w.Store.FindByDate(ctx, profile.OwnerID, 29, nlu.MonthShort(time.February))
		if err != nil {
			log.Error(config.ErrStoreQuery, config.LogKeyError, err)
		} else {
			records = append(records, spill...)
		}
	}

	if len(records) == 0 {
		return false
	}

	log.Info(config.MsgBdayToday, config.LogKeyCount, len(records))

	names := make([]string, 0, len(records))
	for _, rec := range records {
		names = append(names, rec.Name)
	}

	text := w.Replies.Plural(config.TKeyReminderToday, len(names), map[string]interface{}{
		"Name": strings.Join(names, ", "),
	})

	if err := w.Sender.SendText(ctx, profile.OwnerID, text); err != nil {
		// Unstamped, so the next tick inside the hour retries.
		log.Error(config.ErrSendMessage, config.LogKeyError, err)
		return false
	}

	if err := w.Store.SetLastReminderSent(ctx, profile.OwnerID, now); err != nil {
		log.Error(config.ErrStoreExec, config.LogKeyError, err)
	}

	log.Info(config.MsgReminderSent, config.LogKeyCount, len(names))
	return true
}

func (w *Worker) now() time.Time {
	if w.Clock != nil {
		return w.Clock.Now()
	}
	return time.Now()
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
