package engine

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/intent"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/nlu"
)

// strategy is one resolution rule: a tier name for logs plus a function
// that either claims the message or lets the next rule look at it.
type strategy struct {
	name string
	fn   func(context.Context, string) (Action, bool)
}

// Resolver turns one inbound message into an Action by trying an ordered
// chain of named strategies, first match wins. Deterministic rules run
// before the classifier so its probabilistic output can never misroute an
// explicit command, and the regex rules behind it keep the bot useful when
// no model is configured.
type Resolver struct {
	classifier *intent.Classifier
	questions  intent.Questions
	chain      []strategy
}

// NewResolver builds the resolution chain. classifier may be nil, in which
// case that tier is skipped entirely.
func NewResolver(classifier *intent.Classifier, questions intent.Questions) *Resolver {
	r := &Resolver{classifier: classifier, questions: questions}
	r.chain = []strategy{
		{TierBatch, r.batchSave},
		{TierHelp, helpKeyword},
		{TierKeyword, listKeywords},
		{TierExtractor, saveExtract},
		{TierClassifier, r.classify},
		{TierRegex, r.commandRegex},
		{TierRegex, dateQuery},
		{TierFuzzy, fuzzyResidual},
	}
	return r
}

// Resolve runs the chain over one message. It always returns a dispatchable
// Action; the terminal fallback cannot decline.
func (r *Resolver) Resolve(ctx context.Context, text string) Action {
	for _, s := range r.chain {
		act, ok := s.fn(ctx, text)
		if !ok {
			continue
		}
		act.Tier = s.name
		if act.Effects == nil {
			act.Effects = touchOnly()
		}
		return act
	}
	return fallbackAction()
}

var (
	listAllRe      = regexp.MustCompile(`(?i)\ball\s+birthdays?\b|\bbirthday\s+list\b|\blist\s+(?:all|birthdays?)\b|\bshow\s+birthdays?\b`)
	thisWeekRe     = regexp.MustCompile(`(?i)\bthis\s+week\b|\bwho'?s\s+next\b|\bupcoming\b|\bcoming\s+up\b`)
	thisMonthRe    = regexp.MustCompile(`(?i)\bthis\s+month\b`)
	monthQueryRe   = regexp.MustCompile(`(?i)\bbirthdays?\s+in\s+([a-z]+)\b`)
	dateQueryRe    = regexp.MustCompile(`(?i)\bbirthdays?\s+on\b`)
	calendarRe     = regexp.MustCompile(`(?i)\bcalendar\b|\bical\b|\bics\b`)
	deleteVerbRe   = regexp.MustCompile(`(?i)^\s*(?:delete|remove|forget)\b(.*)$`)
	updateVerbRe   = regexp.MustCompile(`(?i)^\s*(?:update|change|move)\b(.*)$`)
	whenIsRe       = regexp.MustCompile(`(?i)\bwhen(?:\s+is|'s)?\s+(.+?)(?:'s)?\s+(?:birthday|bday)\b`)
	findVerbRe     = regexp.MustCompile(`(?i)^\s*(?:find|search|look\s*up)\b(.*)$`)
	soonRe         = regexp.MustCompile(`(?i)\b(?:next|soon|coming)\b`)
	birthdayWordRe = regexp.MustCompile(`(?i)\b(?:birthday|bday)s?\b`)
)

// commandWords are verbs and question words owned by the classifier and
// regex tiers. The line parser declines any text containing one, so
// "update Papa 30 Aug" can never save a record named "update Papa". Save
// verbs (save, add, remember) are absent: the extractor owns those and the
// noise stripper removes them from the name.
var commandWords = map[string]struct{}{
	"delete": {}, "remove": {}, "forget": {}, "update": {}, "change": {},
	"move": {}, "find": {}, "search": {}, "look": {}, "lookup": {},
	"list": {}, "show": {}, "when": {}, "who": {}, "whose": {}, "what": {},
	"where": {}, "why": {}, "how": {},
}

// residualStopWords are leading tokens that disqualify text from the fuzzy
// name lookup: command verbs the earlier tiers own, question words, and
// greetings that would otherwise fuzzy-match real names.
var residualStopWords = map[string]struct{}{
	"delete": {}, "remove": {}, "forget": {}, "update": {}, "change": {},
	"move": {}, "save": {}, "add": {}, "find": {}, "search": {}, "list": {},
	"show": {}, "when": {}, "who": {}, "what": {}, "where": {}, "how": {},
	"why": {}, "help": {}, "calendar": {}, "hi": {}, "hello": {}, "hey": {},
	"thanks": {}, "thank": {}, "ok": {}, "okay": {}, "yes": {}, "no": {},
}

// batchSave claims any message with two or more non-empty lines and parses
// each line independently. Lines that resolve to no triplet are reported
// back rather than dropped.
func (r *Resolver) batchSave(_ context.Context, text string) (Action, bool) {
	lines := nonEmptyLines(text)
	if len(lines) < config.BatchMinLines {
		return Action{}, false
	}
	var entries []nlu.Birthday
	var bad []string
	for _, line := range lines {
		if b, ok := parseLine(line); ok {
			entries = append(entries, b)
		} else {
			bad = append(bad, line)
		}
	}
	return Action{Kind: ActionBatchSave, Entries: entries, BadLines: bad}, true
}

func helpKeyword(_ context.Context, text string) (Action, bool) {
	if !strings.Contains(strings.ToLower(text), "help") {
		return Action{}, false
	}
	return Action{Kind: ActionHelp}, true
}

// listKeywords resolves the unambiguous navigational phrases before the
// classifier can see them.
func listKeywords(_ context.Context, text string) (Action, bool) {
	switch {
	case listAllRe.MatchString(text):
		return Action{Kind: ActionListAll}, true
	case thisWeekRe.MatchString(text):
		return Action{Kind: ActionUpcoming, HorizonDays: config.UpcomingDaysDefault}, true
	case thisMonthRe.MatchString(text):
		return Action{Kind: ActionUpcoming, HorizonDays: config.UpcomingDaysMonth}, true
	case calendarRe.MatchString(text):
		return Action{Kind: ActionCalendarLink}, true
	}
	if m := monthQueryRe.FindStringSubmatch(text); m != nil {
		if canon, ok := nlu.NormalizeMonth(m[1]); ok {
			return Action{Kind: ActionListMonth, Month: canon}, true
		}
	}
	if dateQueryRe.MatchString(text) {
		if day, month, ok := nlu.ParseDayMonth(text); ok {
			return Action{Kind: ActionListDate, Day: day, Month: month}, true
		}
	}
	return Action{}, false
}

// classify consults the model. A clarification terminates the turn; a bare
// unknown lets the deterministic fallbacks have a go.
func (r *Resolver) classify(ctx context.Context, text string) (Action, bool) {
	if r.classifier == nil {
		return Action{}, false
	}
	pi := r.classifier.Classify(ctx, text)
	if pi.NeedsClarification {
		return Action{Kind: ActionClarify, Question: pi.Question}, true
	}

	switch pi.Intent {
	case intent.IntentSave:
		return Action{Kind: ActionSave, Name: cleanModelName(pi.Name), Day: pi.Day, Month: pi.Month}, true
	case intent.IntentUpdate:
		return Action{Kind: ActionUpdate, Name: cleanModelName(pi.Name), Day: pi.Day, Month: pi.Month}, true
	case intent.IntentDelete:
		names := nlu.ExtractDeleteNames(pi.Name)
		if len(names) == 0 {
			names = []string{pi.Name}
		}
		return Action{Kind: ActionDelete, Names: names}, true
	case intent.IntentSearchName:
		query := pi.Query
		if query == "" {
			query = pi.Name
		}
		return Action{Kind: ActionSearchName, Query: cleanModelName(query)}, true
	case intent.IntentSearchDate:
		return Action{Kind: ActionListDate, Day: pi.Day, Month: pi.Month}, true
	case intent.IntentSearchMonth:
		return Action{Kind: ActionListMonth, Month: pi.Month}, true
	case intent.IntentListAll:
		return Action{Kind: ActionListAll}, true
	case intent.IntentUpcoming:
		return Action{Kind: ActionUpcoming, HorizonDays: config.UpcomingDaysDefault}, true
	case intent.IntentHelp:
		return Action{Kind: ActionHelp}, true
	}
	return Action{}, false
}

// commandRegex mirrors the classifier's verb-led intents for deployments
// without a model. A recognized verb with an unusable payload asks the
// matching clarification question instead of falling through to tiers that
// would misread it.
func (r *Resolver) commandRegex(_ context.Context, text string) (Action, bool) {
	if m := deleteVerbRe.FindStringSubmatch(text); m != nil {
		var names []string
		for _, n := range nlu.ExtractDeleteNames(m[1]) {
			if s := nlu.StripNoise(n); s != "" {
				names = append(names, s)
			}
		}
		if len(names) == 0 {
			return Action{Kind: ActionClarify, Question: r.questions.Delete}, true
		}
		return Action{Kind: ActionDelete, Names: names}, true
	}

	if m := updateVerbRe.FindStringSubmatch(text); m != nil {
		if b, ok := parseLine(m[1]); ok {
			return Action{Kind: ActionUpdate, Name: b.Name, Day: b.Day, Month: b.Month}, true
		}
		return Action{Kind: ActionClarify, Question: r.questions.Update}, true
	}

	if m := whenIsRe.FindStringSubmatch(text); m != nil {
		if q := nlu.StripNoise(nlu.CleanName(m[1])); q != "" {
			return Action{Kind: ActionSearchName, Query: q}, true
		}
		return Action{Kind: ActionClarify, Question: r.questions.Search}, true
	}

	if m := findVerbRe.FindStringSubmatch(text); m != nil {
		if q := nlu.StripNoise(nlu.CleanName(m[1])); q != "" {
			return Action{Kind: ActionSearchName, Query: q}, true
		}
		return Action{Kind: ActionClarify, Question: r.questions.Search}, true
	}

	if birthdayWordRe.MatchString(text) && soonRe.MatchString(text) {
		return Action{Kind: ActionUpcoming, HorizonDays: config.UpcomingDaysDefault}, true
	}
	return Action{}, false
}

// saveExtract claims a single line that parses to a full triplet, covering
// "Papa 29 Aug" style saves. It runs before the classifier so plain saves
// resolve deterministically and never depend on a model being up.
func saveExtract(_ context.Context, text string) (Action, bool) {
	b, ok := parseLine(text)
	if !ok {
		return Action{}, false
	}
	return Action{Kind: ActionSave, Name: b.Name, Day: b.Day, Month: b.Month}, true
}

// dateQuery handles date and month questions that mention a birthday but
// left no residual name for saveExtract, like "bday 29 aug?" or
// "june birthdays?".
func dateQuery(_ context.Context, text string) (Action, bool) {
	if !birthdayWordRe.MatchString(text) {
		return Action{}, false
	}
	if day, month, ok := nlu.ParseDayMonth(text); ok {
		return Action{Kind: ActionListDate, Day: day, Month: month}, true
	}
	if month, ok := monthToken(text); ok {
		return Action{Kind: ActionListMonth, Month: month}, true
	}
	return Action{}, false
}

// fuzzyResidual treats short, date-free, verb-free text as a possible name
// lookup. The dispatcher decides whether anything actually matches.
func fuzzyResidual(_ context.Context, text string) (Action, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > config.FuzzyQueryMaxLen {
		return Action{}, false
	}
	if nlu.ContainsDateToken(trimmed) {
		return Action{}, false
	}
	first := strings.Trim(strings.ToLower(strings.Fields(trimmed)[0]), "!?.,:;'\"")
	if _, stop := residualStopWords[first]; stop {
		return Action{}, false
	}
	query := nlu.StripNoise(nlu.CleanName(trimmed))
	if query == "" {
		return Action{}, false
	}
	return Action{Kind: ActionFuzzyLookup, Query: query}, true
}

// parseLine turns one line into a save triplet. Lines carrying a command
// word are declined outright, whichever caller asks: the single-line tier
// leaves them for the classifier and regex tiers, and a command pasted into
// a batch reports as unparsed instead of saving the verb phrase.
func parseLine(line string) (nlu.Birthday, bool) {
	if containsCommandWord(line) {
		return nlu.Birthday{}, false
	}
	b, ok := nlu.ExtractBirthday(line)
	if !ok {
		b, ok = nlu.ExtractLegacy(line)
	}
	if !ok {
		return nlu.Birthday{}, false
	}
	b.Name = nlu.StripNoise(b.Name)
	if b.Name == "" {
		return nlu.Birthday{}, false
	}
	return b, true
}

func containsCommandWord(text string) bool {
	for _, f := range strings.Fields(strings.ToLower(text)) {
		w := strings.Trim(f, "!?.,:;'\"")
		w = strings.TrimSuffix(w, "'s")
		w = strings.TrimSuffix(w, "’s")
		if _, ok := commandWords[w]; ok {
			return true
		}
	}
	return false
}

// cleanModelName tidies a name slot returned by the model without ever
// emptying it.
func cleanModelName(name string) string {
	if s := nlu.StripNoise(name); s != "" {
		return s
	}
	return strings.TrimSpace(name)
}

// monthToken finds a spelled-out month in the text. Bare numbers do not
// qualify: "bday 6" is far more likely a day than June.
func monthToken(text string) (string, bool) {
	for _, f := range strings.Fields(text) {
		w := strings.Trim(f, "!?.,:;")
		if !nlu.IsMonthWord(w) {
			continue
		}
		if canon, ok := nlu.NormalizeMonth(w); ok {
			return canon, true
		}
	}
	return "", false
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			lines = append(lines, t)
		}
	}
	return lines
}
