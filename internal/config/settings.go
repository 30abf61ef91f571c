package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// Settings is the runtime configuration of the bot, assembled from the YAML
// config file, environment variables, and the OS keyring. Secrets resolve in
// that order: explicit file value, then environment, then keyring.
type Settings struct {
	ListenAddr      string `yaml:"listen_addr"`
	PublicBaseURL   string `yaml:"public_base_url"`
	DBPath          string `yaml:"db_path"`
	DefaultLanguage string `yaml:"default_language"`
	DefaultTimezone string `yaml:"default_timezone"`
	ReminderHour    int    `yaml:"reminder_hour"`
	FeedSecret      string `yaml:"feed_secret"`

	WhatsApp WhatsAppSettings `yaml:"whatsapp"`
	LLM      LLMSettings      `yaml:"llm"`
}

// WhatsAppSettings configures the Cloud API client and webhook handshake.
type WhatsAppSettings struct {
	PhoneNumberID string `yaml:"phone_number_id"`
	AccessToken   string `yaml:"access_token"`
	VerifyToken   string `yaml:"verify_token"`
}

// LLMSettings configures the optional classifier and tone-rewrite backend.
// An empty APIKey after resolution disables both.
type LLMSettings struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	APIKey      string `yaml:"api_key"`
	RewriteTone bool   `yaml:"rewrite_tone"`
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() string {
	return "~/" + ConfigDirName + "/" + ConfigFileName
}

// LoadSettings reads the YAML file at path (if it exists), applies defaults,
// and resolves secrets from the environment and keyring. A missing file is
// not an error; the bot can run entirely from environment variables.
func LoadSettings(path string) (*Settings, error) {
	s := &Settings{
		ListenAddr:      DefaultListenAddr,
		DBPath:          DefaultDBPath,
		DefaultLanguage: DefaultLanguage,
		DefaultTimezone: DefaultTimezone,
		ReminderHour:    DefaultReminderHour,
		LLM: LLMSettings{
			BaseURL:     DefaultLLMBaseURL,
			Model:       DefaultLLMModel,
			RewriteTone: true,
		},
	}

	resolved := ExpandPath(path)
	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("%s: %w", ErrConfigParse, err)
		}
		slog.Debug(MsgSettingsLoaded,
			LogKeyFile, resolved,
			LogKeyComponent, CompConfig)
	case os.IsNotExist(err):
		slog.Debug(MsgSettingsLoaded,
			LogKeyFile, "none",
			LogKeyComponent, CompConfig)
	default:
		return nil, fmt.Errorf("%s: %w", ErrConfigRead, err)
	}

	s.resolveSecrets()
	s.normalize()
	return s, nil
}

// resolveSecrets fills empty secret fields from the environment first and
// the OS keyring second. Keyring misses are expected on headless hosts and
// only logged at debug level.
func (s *Settings) resolveSecrets() {
	s.WhatsApp.AccessToken = resolveSecret(s.WhatsApp.AccessToken, EnvAccessToken, KeyringAccessToken)
	s.WhatsApp.VerifyToken = firstNonEmpty(s.WhatsApp.VerifyToken, os.Getenv(EnvVerifyToken))
	s.WhatsApp.PhoneNumberID = firstNonEmpty(s.WhatsApp.PhoneNumberID, os.Getenv(EnvPhoneNumberID))
	s.LLM.APIKey = resolveSecret(s.LLM.APIKey, EnvLLMAPIKey, KeyringLLMAPIKey)
	s.FeedSecret = resolveSecret(s.FeedSecret, EnvFeedSecret, KeyringFeedSecret)
}

func (s *Settings) normalize() {
	if s.ReminderHour < 0 || s.ReminderHour > 23 {
		s.ReminderHour = DefaultReminderHour
	}
	if !supportedLanguage(s.DefaultLanguage) {
		s.DefaultLanguage = DefaultLanguage
	}
	s.PublicBaseURL = strings.TrimRight(s.PublicBaseURL, "/")
	s.DBPath = ExpandPath(s.DBPath)
}

// Validate checks the fields without which the webhook transport cannot run.
// The LLM settings are deliberately not validated: the bot degrades to its
// deterministic tiers when no key is configured.
func (s *Settings) Validate() error {
	if s.WhatsApp.AccessToken == "" {
		return errors.New(ErrTokenMissing)
	}
	if s.WhatsApp.PhoneNumberID == "" {
		return errors.New(ErrPhoneIDMissing)
	}
	if s.WhatsApp.VerifyToken == "" {
		return errors.New(ErrVerifyMissing)
	}
	return nil
}

// LLMEnabled reports whether a classifier backend is configured.
func (s *Settings) LLMEnabled() bool {
	return s.LLM.APIKey != ""
}

func resolveSecret(current, envVar, keyringKey string) string {
	if current != "" {
		return current
	}
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	v, err := keyring.Get(KeyringService, keyringKey)
	if err != nil {
		slog.Debug(MsgKeyringMiss,
			LogKeyKey, keyringKey,
			LogKeyError, err,
			LogKeyComponent, CompConfig)
		return ""
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func supportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// ExpandPath resolves a leading ~/ against the user home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
