package engine

import (
	"github.com/namannarain93/whatsapp-birthday-bot/internal/nlu"
)

// ActionKind names the single concrete thing the dispatcher should do for a
// resolved message.
type ActionKind string

const (
	ActionWelcome      ActionKind = "welcome"
	ActionHelp         ActionKind = "help"
	ActionSave         ActionKind = "save"
	ActionBatchSave    ActionKind = "batch_save"
	ActionUpdate       ActionKind = "update"
	ActionDelete       ActionKind = "delete"
	ActionListAll      ActionKind = "list_all"
	ActionListMonth    ActionKind = "list_month"
	ActionListDate     ActionKind = "list_date"
	ActionUpcoming     ActionKind = "upcoming"
	ActionSearchName   ActionKind = "search_name"
	ActionFuzzyLookup  ActionKind = "fuzzy_lookup"
	ActionCalendarLink ActionKind = "calendar_link"
	ActionImport       ActionKind = "import"
	ActionClarify      ActionKind = "clarify"
	ActionFallback     ActionKind = "fallback"
)

// Resolution tiers, recorded on every Action for logging and tests. The
// resolver tries them in this order and stops at the first hit.
const (
	TierOnboarding = "onboarding"
	TierBatch      = "batch"
	TierHelp       = "help"
	TierKeyword    = "keyword"
	TierExtractor  = "extractor"
	TierClassifier = "classifier"
	TierRegex      = "regex"
	TierFuzzy      = "fuzzy"
	TierImport     = "import"
	TierFallback   = "fallback"
)

// Effect is a storage side effect the handler runs after dispatching,
// independent of whether the outgoing send succeeds.
type Effect int

const (
	// EffectTouchInteraction bumps the user's last-interaction timestamp.
	EffectTouchInteraction Effect = iota
	// EffectMarkWelcomeSeen records that the welcome message went out.
	EffectMarkWelcomeSeen
)

// Action is the dispatcher's work order: one kind plus whichever slots that
// kind consumes. Resolution never partially fills a kind; a save action
// always carries name, day and month, a clarify action always carries its
// question.
type Action struct {
	Kind ActionKind
	Tier string

	Name  string
	Day   int
	Month string
	Query string

	// Delete targets, already cleaned of date fragments.
	Names []string

	// Batch save and contact import payload.
	Entries  []nlu.Birthday
	BadLines []string

	// Upcoming horizon in days.
	HorizonDays int

	// Pre-localized clarification question.
	Question string

	Effects []Effect
}

func touchOnly() []Effect {
	return []Effect{EffectTouchInteraction}
}

func welcomeAction(profileName string) Action {
	return Action{
		Kind:    ActionWelcome,
		Tier:    TierOnboarding,
		Name:    profileName,
		Effects: []Effect{EffectTouchInteraction, EffectMarkWelcomeSeen},
	}
}

func fallbackAction() Action {
	return Action{Kind: ActionFallback, Tier: TierFallback, Effects: touchOnly()}
}
