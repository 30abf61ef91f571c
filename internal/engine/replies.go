package engine

import (
	"embed"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/intent"
)

//go:embed locales/*.json
var localeFS embed.FS

// Replies renders the bot's outgoing chat messages from the embedded locale
// files. A key missing from the requested language falls back to English; a
// key missing everywhere renders as the key itself, so a broken locale file
// never silences the bot.
type Replies struct {
	localizer *i18n.Localizer
}

// NewReplies loads every embedded active.<lang>.json file into a bundle and
// binds a localizer for lang with English as the fallback.
func NewReplies(lang string) *Replies {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		slog.Error(config.ErrLocalesAccess,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyError, err,
		)
		return &Replies{localizer: i18n.NewLocalizer(bundle, lang)}
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			slog.Debug(config.MsgLocaleSkip,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		langCode := strings.TrimSuffix(strings.TrimPrefix(name, "active."), ".json")
		if langCode == "" {
			slog.Warn(config.MsgLocaleBadName,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			slog.Error(config.ErrLocaleLoad,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
				config.LogKeyError, err,
			)
			continue
		}
		slog.Debug(config.MsgLocaleLoaded,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyLang, langCode,
			config.LogKeyFile, name,
		)
	}

	return &Replies{localizer: i18n.NewLocalizer(bundle, lang, config.DefaultLanguage)}
}

// Get renders a message that takes no template data.
func (r *Replies) Get(key string) string {
	return r.render(&i18n.LocalizeConfig{MessageID: key})
}

// Data renders a message with template data.
func (r *Replies) Data(key string, data map[string]interface{}) string {
	return r.render(&i18n.LocalizeConfig{MessageID: key, TemplateData: data})
}

// Plural renders a message whose form depends on count. The count is also
// exposed to the template as {{.Count}}.
func (r *Replies) Plural(key string, count int, data map[string]interface{}) string {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["Count"] = count
	return r.render(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
		PluralCount:  count,
	})
}

// Questions returns the localized clarification prompts the classifier asks
// when the model names an intent but the required slots are missing.
func (r *Replies) Questions() intent.Questions {
	return intent.Questions{
		Save:   r.Get(config.TKeyClarifySave),
		Update: r.Get(config.TKeyClarifyUpdate),
		Delete: r.Get(config.TKeyClarifyDelete),
		Search: r.Get(config.TKeyClarifySearch),
	}
}

func (r *Replies) render(cfg *i18n.LocalizeConfig) string {
	if r == nil || r.localizer == nil {
		slog.Debug(config.ErrLocNotInit,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyKey, cfg.MessageID,
		)
		return cfg.MessageID
	}
	msg, err := r.localizer.Localize(cfg)
	if err != nil {
		slog.Debug(config.MsgTransMissing,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyKey, cfg.MessageID,
			config.LogKeyError, err,
		)
		return cfg.MessageID
	}
	return msg
}
