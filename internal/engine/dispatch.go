package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/match"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/nlu"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/store"
)

// Dispatcher maps one resolved Action to one storage operation and one
// reply. Every path yields a non-empty reply; only storage failures
// propagate as errors.
type Dispatcher struct {
	store   store.Store
	replies *Replies
	clock   Clock
	feedURL func(ownerID string) string
}

// NewDispatcher wires the dispatcher. feedURL composes the public calendar
// feed address for an owner and may be nil when no public base URL is
// configured.
func NewDispatcher(st store.Store, replies *Replies, clock Clock, feedURL func(string) string) *Dispatcher {
	if clock == nil {
		clock = RealClock{}
	}
	return &Dispatcher{store: st, replies: replies, clock: clock, feedURL: feedURL}
}

// Dispatch executes act for ownerID and returns the reply text.
func (d *Dispatcher) Dispatch(ctx context.Context, ownerID string, act Action) (string, error) {
	switch act.Kind {
	case ActionWelcome:
		return d.replies.Data(config.TKeyWelcome, map[string]interface{}{"Name": act.Name}), nil
	case ActionHelp:
		return d.replies.Get(config.TKeyHelp), nil
	case ActionClarify:
		if act.Question == "" {
			return d.replies.Get(config.TKeyFallback), nil
		}
		return act.Question, nil
	case ActionSave:
		return d.save(ctx, ownerID, act)
	case ActionBatchSave:
		return d.batchSave(ctx, ownerID, act)
	case ActionUpdate:
		return d.update(ctx, ownerID, act)
	case ActionDelete:
		return d.remove(ctx, ownerID, act)
	case ActionListAll:
		return d.listAll(ctx, ownerID)
	case ActionListMonth:
		return d.listMonth(ctx, ownerID, act.Month)
	case ActionListDate:
		return d.listDate(ctx, ownerID, act.Day, act.Month)
	case ActionUpcoming:
		return d.upcoming(ctx, ownerID, act.HorizonDays)
	case ActionSearchName:
		return d.searchName(ctx, ownerID, act.Query)
	case ActionFuzzyLookup:
		return d.fuzzyLookup(ctx, ownerID, act.Query)
	case ActionCalendarLink:
		return d.calendarLink(ownerID)
	case ActionImport:
		return d.importEntries(ctx, ownerID, act.Entries)
	}
	return d.replies.Get(config.TKeyFallback), nil
}

// save checks for an existing record first and treats the unique-constraint
// backstop the same way, so a race between two identical saves still reads
// as a duplicate rather than a crash.
func (d *Dispatcher) save(ctx context.Context, ownerID string, act Action) (string, error) {
	data := map[string]interface{}{"Name": act.Name, "Day": act.Day, "Month": act.Month}

	exists, err := d.store.RecordExists(ctx, ownerID, act.Name, act.Day, act.Month)
	if err != nil {
		return "", err
	}
	if exists {
		return d.replies.Data(config.TKeyDuplicate, data), nil
	}
	if err := d.store.SaveRecord(ctx, ownerID, act.Name, act.Day, act.Month); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return d.replies.Data(config.TKeyDuplicate, data), nil
		}
		return "", err
	}
	return d.replies.Data(config.TKeySaved, data), nil
}

func (d *Dispatcher) batchSave(ctx context.Context, ownerID string, act Action) (string, error) {
	saved := 0
	var notes []string
	for _, e := range act.Entries {
		err := d.store.SaveRecord(ctx, ownerID, e.Name, e.Day, e.Month)
		switch {
		case err == nil:
			saved++
		case errors.Is(err, store.ErrDuplicate):
			notes = append(notes, d.replies.Data(config.TKeyBatchDupLine, map[string]interface{}{"Name": e.Name}))
		default:
			return "", err
		}
	}
	for _, line := range act.BadLines {
		notes = append(notes, d.replies.Data(config.TKeyBatchBadLine, map[string]interface{}{"Line": line}))
	}

	slog.Info(config.MsgBatchDone,
		config.LogKeyComponent, config.CompEngine,
		config.LogKeySaved, saved,
		config.LogKeySkipped, len(act.Entries)-saved+len(act.BadLines),
	)

	parts := append([]string{d.replies.Plural(config.TKeyBatchSummary, saved, nil)}, notes...)
	return strings.Join(parts, "\n"), nil
}

func (d *Dispatcher) update(ctx context.Context, ownerID string, act Action) (string, error) {
	data := map[string]interface{}{"Name": act.Name, "Day": act.Day, "Month": act.Month}

	ok, err := d.store.UpdateRecord(ctx, ownerID, act.Name, act.Day, act.Month)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return d.replies.Data(config.TKeyDuplicate, data), nil
		}
		return "", err
	}
	if !ok {
		return d.replies.Data(config.TKeyUpdateMissing, map[string]interface{}{"Name": act.Name}), nil
	}
	return d.replies.Data(config.TKeyUpdated, data), nil
}

// remove tries an exact case-insensitive delete per name and only widens to
// a substring delete when that removed nothing. The reply names what was
// actually removed and what was not found.
func (d *Dispatcher) remove(ctx context.Context, ownerID string, act Action) (string, error) {
	var removed, missing []string
	for _, name := range act.Names {
		ok, err := d.store.DeleteByName(ctx, ownerID, name)
		if err != nil {
			return "", err
		}
		if ok {
			removed = append(removed, name)
			continue
		}
		hits, err := d.store.DeleteBySubstring(ctx, ownerID, name)
		if err != nil {
			return "", err
		}
		if len(hits) == 0 {
			missing = append(missing, name)
			continue
		}
		removed = append(removed, hits...)
	}

	var parts []string
	if len(removed) > 0 {
		parts = append(parts, d.replies.Data(config.TKeyDeleted, map[string]interface{}{"Names": strings.Join(removed, ", ")}))
	}
	if len(missing) > 0 {
		parts = append(parts, d.replies.Data(config.TKeyDeleteMissing, map[string]interface{}{"Names": strings.Join(missing, ", ")}))
	}
	return strings.Join(parts, "\n"), nil
}

func (d *Dispatcher) listAll(ctx context.Context, ownerID string) (string, error) {
	records, err := d.store.ListAll(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return d.replies.Get(config.TKeyListEmpty), nil
	}
	header := d.replies.Plural(config.TKeyListHeader, len(records), nil)
	return header + "\n" + d.formatGrouped(records), nil
}

func (d *Dispatcher) listMonth(ctx context.Context, ownerID, month string) (string, error) {
	records, err := d.store.FindByMonth(ctx, ownerID, month)
	if err != nil {
		return "", err
	}
	data := map[string]interface{}{"Month": month}
	if len(records) == 0 {
		return d.replies.Data(config.TKeyMonthEmpty, data), nil
	}

	var b strings.Builder
	b.WriteString(d.replies.Plural(config.TKeyMonthHeader, len(records), data))
	for _, r := range records {
		b.WriteString("\n" + d.entryLine(r))
	}
	return b.String(), nil
}

func (d *Dispatcher) listDate(ctx context.Context, ownerID string, day int, month string) (string, error) {
	records, err := d.store.FindByDate(ctx, ownerID, day, month)
	if err != nil {
		return "", err
	}
	data := map[string]interface{}{"Date": fmt.Sprintf("%d %s", day, month)}
	if len(records) == 0 {
		return d.replies.Data(config.TKeyDateEmpty, data), nil
	}

	var b strings.Builder
	b.WriteString(d.replies.Plural(config.TKeyDateHeader, len(records), data))
	for _, r := range records {
		b.WriteString("\n" + d.entryLine(r))
	}
	return b.String(), nil
}

// upcoming filters the owner's records through the wrapped date window
// anchored at the clock's today and orders hits nearest-first.
func (d *Dispatcher) upcoming(ctx context.Context, ownerID string, horizon int) (string, error) {
	if horizon <= 0 {
		horizon = config.UpcomingDaysDefault
	}
	records, err := d.store.ListAll(ctx, ownerID)
	if err != nil {
		return "", err
	}

	window := nlu.UpcomingWindow(d.clock.Now(), horizon)
	var hits []store.Record
	for _, r := range records {
		if window.Contains(nlu.DateKey(r.Day, nlu.MonthIndex(r.Month))) {
			hits = append(hits, r)
		}
	}

	data := map[string]interface{}{"Days": horizon}
	if len(hits) == 0 {
		return d.replies.Data(config.TKeyUpcomingEmpty, data), nil
	}

	coll := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(hits, func(i, j int) bool {
		ki := window.SortKey(nlu.DateKey(hits[i].Day, nlu.MonthIndex(hits[i].Month)))
		kj := window.SortKey(nlu.DateKey(hits[j].Day, nlu.MonthIndex(hits[j].Month)))
		if ki != kj {
			return ki < kj
		}
		return coll.CompareString(hits[i].Name, hits[j].Name) < 0
	})

	var b strings.Builder
	b.WriteString(d.replies.Plural(config.TKeyUpcomingHeader, len(hits), data))
	for _, r := range hits {
		b.WriteString("\n" + d.entryLine(r))
	}
	return b.String(), nil
}

// searchName answers an explicit lookup: substring hits first, then a fuzzy
// pass, then an honest miss naming the query.
func (d *Dispatcher) searchName(ctx context.Context, ownerID, query string) (string, error) {
	records, err := d.store.FindByName(ctx, ownerID, query)
	if err != nil {
		return "", err
	}
	if len(records) > 0 {
		return d.foundReply(records, query), nil
	}
	miss := d.replies.Data(config.TKeyFoundEmpty, map[string]interface{}{"Query": query})
	return d.fuzzyReply(ctx, ownerID, query, miss)
}

// fuzzyLookup serves residual text that merely might be a name. A miss gets
// the generic fallback, not a "not found", because the text was never
// clearly a lookup to begin with.
func (d *Dispatcher) fuzzyLookup(ctx context.Context, ownerID, query string) (string, error) {
	return d.fuzzyReply(ctx, ownerID, query, d.replies.Get(config.TKeyFallback))
}

func (d *Dispatcher) fuzzyReply(ctx context.Context, ownerID, query, miss string) (string, error) {
	records, err := d.store.ListAll(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return miss, nil
	}

	names := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		key := strings.ToLower(r.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, r.Name)
	}

	ranked := match.Rank(query, names, 0)
	if len(ranked) == 0 {
		return miss, nil
	}

	var hits []store.Record
	for _, c := range ranked {
		for _, r := range records {
			if strings.EqualFold(r.Name, c.Name) {
				hits = append(hits, r)
			}
		}
	}
	return d.foundReply(hits, query), nil
}

func (d *Dispatcher) foundReply(records []store.Record, query string) string {
	if len(records) == 1 {
		r := records[0]
		return d.replies.Data(config.TKeyFound, map[string]interface{}{
			"Name":  r.Name,
			"Day":   r.Day,
			"Month": r.Month,
		})
	}

	var b strings.Builder
	b.WriteString(d.replies.Data(config.TKeyFoundHeader, map[string]interface{}{"Query": query}))
	for _, r := range records {
		b.WriteString("\n" + d.entryLine(r))
	}
	return b.String()
}

func (d *Dispatcher) calendarLink(ownerID string) (string, error) {
	if d.feedURL == nil {
		return d.replies.Get(config.TKeyFallback), nil
	}
	return d.replies.Data(config.TKeyCalendarLink, map[string]interface{}{"URL": d.feedURL(ownerID)}), nil
}

func (d *Dispatcher) importEntries(ctx context.Context, ownerID string, entries []nlu.Birthday) (string, error) {
	if len(entries) == 0 {
		return d.replies.Get(config.TKeyImportEmpty), nil
	}

	saved := 0
	var notes []string
	for _, e := range entries {
		err := d.store.SaveRecord(ctx, ownerID, e.Name, e.Day, e.Month)
		switch {
		case err == nil:
			saved++
		case errors.Is(err, store.ErrDuplicate):
			notes = append(notes, d.replies.Data(config.TKeyBatchDupLine, map[string]interface{}{"Name": e.Name}))
		default:
			return "", err
		}
	}

	slog.Info(config.MsgImportDone,
		config.LogKeyComponent, config.CompEngine,
		config.LogKeySaved, saved,
		config.LogKeySkipped, len(entries)-saved,
	)

	parts := append([]string{d.replies.Plural(config.TKeyImportSummary, saved, nil)}, notes...)
	return strings.Join(parts, "\n"), nil
}

// formatGrouped renders records sorted by month order, then day, then name,
// grouped under one label line per month.
func (d *Dispatcher) formatGrouped(records []store.Record) string {
	coll := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(records, func(i, j int) bool {
		mi, mj := nlu.MonthIndex(records[i].Month), nlu.MonthIndex(records[j].Month)
		if mi != mj {
			return mi < mj
		}
		if records[i].Day != records[j].Day {
			return records[i].Day < records[j].Day
		}
		return coll.CompareString(records[i].Name, records[j].Name) < 0
	})

	var b strings.Builder
	current := ""
	for _, r := range records {
		if r.Month != current {
			if current != "" {
				b.WriteString("\n")
			}
			b.WriteString(r.Month + ":\n")
			current = r.Month
		}
		b.WriteString(d.entryLine(r) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (d *Dispatcher) entryLine(r store.Record) string {
	return d.replies.Data(config.TKeyListEntry, map[string]interface{}{
		"Name":  r.Name,
		"Day":   r.Day,
		"Month": r.Month,
	})
}
