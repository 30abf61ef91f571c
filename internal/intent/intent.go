// Package intent turns free-form message text into a structured intent by
// delegating to a language model. Whatever the model returns, callers
// receive a valid ParsedIntent: any transport, parse or schema failure
// collapses to the unknown intent so the engine can fall through to its
// deterministic tiers.
package intent

import (
	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
)

// Intent enumerates the actions the classifier can recognize.
type Intent string

const (
	IntentUnknown     Intent = "unknown"
	IntentSave        Intent = "save"
	IntentUpdate      Intent = "update"
	IntentDelete      Intent = "delete"
	IntentSearchName  Intent = "search_name"
	IntentSearchDate  Intent = "search_date"
	IntentSearchMonth Intent = "search_month"
	IntentListAll     Intent = "list_all"
	IntentUpcoming    Intent = "upcoming"
	IntentHelp        Intent = "help"
)

// ParsedIntent is the classifier's structured reading of one message.
// Month, when set, holds the canonical short form. When
// NeedsClarification is set the caller must send Question and stop;
// a bare unknown means "I have no idea", and the caller may try other
// resolution strategies.
type ParsedIntent struct {
	Intent             Intent
	Name               string
	Day                int
	Month              string
	Query              string
	NeedsClarification bool
	Question           string
}

// Unknown is the safe default every failure path collapses to.
func Unknown() ParsedIntent {
	return ParsedIntent{Intent: IntentUnknown}
}

// Questions holds the pre-localized clarification prompts the adapter
// attaches when a recognized intent arrives with missing slots.
type Questions struct {
	Save   string
	Update string
	Delete string
	Search string
}

// DefaultQuestions returns the built-in English clarification prompts,
// used when no localizer is wired in.
func DefaultQuestions() Questions {
	return Questions{
		Save:   config.FallbackClarifySave,
		Update: config.FallbackClarifyUpdate,
		Delete: config.FallbackClarifyDelete,
		Search: config.FallbackClarifySearch,
	}
}
