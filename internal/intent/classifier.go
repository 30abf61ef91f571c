package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/llm"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/nlu"
)

// classifyPrompt constrains the model to a single JSON object. Slots the
// model cannot fill stay null; the adapter re-validates everything anyway.
const classifyPrompt = `Classify the user's message to a birthday assistant.

Intents:
- save: store a birthday (slots: name, day, month)
- update: change the date of a stored birthday (slots: name, day, month)
- delete: remove stored birthdays (slot: name)
- search_name: find someone's birthday (slot: query)
- search_date: who has a birthday on an exact date (slots: day, month)
- search_month: birthdays in a given month (slot: month)
- list_all: list every stored birthday
- upcoming: birthdays coming up soon
- help: user asks what the bot can do
- unknown: anything else

Return ONLY one JSON object, no prose:
{"intent":"...","name":null,"day":null,"month":null,"query":null,"needs_clarification":false,"clarification_question":null}

Month is an English month name or 3-letter abbreviation. Day is a number.
If the message clearly wants an action but a required slot is missing, set
needs_clarification to true and write a short clarification_question in the
user's language.

Message: %q`

// rawIntent mirrors the JSON schema the model is told to emit. Pointer
// fields distinguish "absent" from zero values.
type rawIntent struct {
	Intent             *string `json:"intent"`
	Name               *string `json:"name"`
	Day                *int    `json:"day"`
	Month              *string `json:"month"`
	Query              *string `json:"query"`
	NeedsClarification *bool   `json:"needs_clarification"`
	Question           *string `json:"clarification_question"`
}

// Classifier adapts an llm.Completer into the fail-open classification
// contract. A nil completer disables classification entirely.
type Classifier struct {
	completer llm.Completer
	questions Questions
}

// NewClassifier builds a Classifier around the given completer.
func NewClassifier(completer llm.Completer, questions Questions) *Classifier {
	if questions == (Questions{}) {
		questions = DefaultQuestions()
	}
	return &Classifier{completer: completer, questions: questions}
}

// Classify sends one classification request and returns a validated
// ParsedIntent. It never returns an error and never retries: transport,
// parse and schema failures all collapse to the unknown intent.
func (c *Classifier) Classify(ctx context.Context, text string) ParsedIntent {
	if c == nil || c.completer == nil {
		return Unknown()
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Unknown()
	}
	if runes := []rune(text); len(runes) > config.ClassifyInputMaxLen {
		text = string(runes[:config.ClassifyInputMaxLen])
	}

	out, err := c.completer.Complete(ctx, fmt.Sprintf(classifyPrompt, text), llm.CompletionOpts{
		MaxTokens:   config.ClassifyMaxTokens,
		Temperature: config.ClassifyTemperature,
		Format:      config.FormatJSON,
		System:      config.RoleBirthdayAssist,
	})
	if err != nil {
		slog.Warn(config.MsgClassifyFail,
			config.LogKeyComponent, config.CompIntent,
			config.LogKeyModel, c.completer.Name(),
			config.LogKeyError, err)
		return Unknown()
	}

	var raw rawIntent
	if err := json.Unmarshal([]byte(stripFences(out)), &raw); err != nil {
		slog.Warn(config.MsgClassifyFail,
			config.LogKeyComponent, config.CompIntent,
			config.LogKeyModel, c.completer.Name(),
			config.LogKeyError, err)
		return Unknown()
	}

	return c.validate(raw)
}

// validate turns the model's raw output into a ParsedIntent the engine
// can trust: label mapping, month normalization, day bounds, and per-
// intent slot completeness.
func (c *Classifier) validate(raw rawIntent) ParsedIntent {
	label := ""
	if raw.Intent != nil {
		label = strings.ToLower(strings.TrimSpace(*raw.Intent))
	}
	in := toIntent(label)

	// The model may ask its own clarification question; pass it through
	// verbatim. An empty question is useless, so that case stays a bare
	// unknown.
	if raw.NeedsClarification != nil && *raw.NeedsClarification {
		if q := deref(raw.Question); strings.TrimSpace(q) != "" {
			return ParsedIntent{Intent: IntentUnknown, NeedsClarification: true, Question: q}
		}
	}
	if in == IntentUnknown {
		return Unknown()
	}

	p := ParsedIntent{
		Intent: in,
		Name:   strings.TrimSpace(deref(raw.Name)),
		Query:  strings.TrimSpace(deref(raw.Query)),
	}
	if raw.Day != nil && *raw.Day >= config.MinDayOfMonth && *raw.Day <= config.MaxDayOfMonth {
		p.Day = *raw.Day
	}
	if raw.Month != nil {
		if m, ok := nlu.NormalizeMonth(*raw.Month); ok {
			p.Month = m
		}
	}

	if q, ok := c.missingSlots(p); ok {
		return ParsedIntent{Intent: IntentUnknown, NeedsClarification: true, Question: q}
	}
	return p
}

// missingSlots checks per-intent slot completeness and returns the
// clarification question to ask when something required is absent.
func (c *Classifier) missingSlots(p ParsedIntent) (string, bool) {
	switch p.Intent {
	case IntentSave:
		if p.Name == "" || p.Day == 0 || p.Month == "" {
			return c.questions.Save, true
		}
	case IntentUpdate:
		if p.Name == "" || p.Day == 0 || p.Month == "" {
			return c.questions.Update, true
		}
	case IntentDelete:
		if p.Name == "" {
			return c.questions.Delete, true
		}
	case IntentSearchName:
		if p.Query == "" && p.Name == "" {
			return c.questions.Search, true
		}
	case IntentSearchDate:
		if p.Day == 0 || p.Month == "" {
			return c.questions.Search, true
		}
	case IntentSearchMonth:
		if p.Month == "" {
			return c.questions.Search, true
		}
	}
	return "", false
}

func toIntent(label string) Intent {
	switch Intent(label) {
	case IntentSave, IntentUpdate, IntentDelete,
		IntentSearchName, IntentSearchDate, IntentSearchMonth,
		IntentListAll, IntentUpcoming, IntentHelp:
		return Intent(label)
	default:
		return IntentUnknown
	}
}

// stripFences removes a surrounding markdown code fence, which some
// models emit even when told not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, config.MarkdownFence) {
		return s
	}
	lines := strings.Split(s, "\n")
	start, end := 0, len(lines)
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), config.MarkdownFence) {
			if start == 0 {
				start = i + 1
			} else {
				end = i
				break
			}
		}
	}
	if start >= end {
		return s
	}
	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
