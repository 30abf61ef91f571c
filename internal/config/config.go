package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client.
var UserAgent = "Birthday-Bot/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName        = "Birthday Bot"
	AppID          = "com.github.namannarain93.whatsapp-birthday-bot"
	KeyringService = "com.github.namannarain93.whatsapp-birthday-bot"
	ConfigFileName = "config.yaml"
	ConfigDirName  = ".birthday-bot"
	DBFileName     = "birthdays.db"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	// Used for creating the state directory.
	DirPermUserRWX fs.FileMode = 0700

	// ChannelBufferSize defines the standard buffer size for internal signaling channels.
	ChannelBufferSize = 1
)

// -----------------------------------------------------------------------------
// CLI Flags & Descriptions
// -----------------------------------------------------------------------------

const (
	FlagVersion      = "version"
	FlagDebug        = "debug"
	FlagConfig       = "config"
	FlagDescVersion  = "Show application version and exit"
	FlagDescDebug    = "Enable debug logging"
	FlagDescConfig   = "Path to the YAML config file"
	MsgVersionOutput = "%s version %s (%s/%s)\n"
)

// -----------------------------------------------------------------------------
// Environment Variables & Keyring Keys
// -----------------------------------------------------------------------------

const (
	EnvAccessToken   = "WHATSAPP_ACCESS_TOKEN"
	EnvVerifyToken   = "WHATSAPP_VERIFY_TOKEN"
	EnvPhoneNumberID = "WHATSAPP_PHONE_NUMBER_ID"
	EnvLLMAPIKey     = "LLM_API_KEY"
	EnvFeedSecret    = "FEED_SECRET"

	KeyringAccessToken = "whatsapp_access_token"
	KeyringLLMAPIKey   = "llm_api_key"
	KeyringFeedSecret  = "feed_secret"
)

// -----------------------------------------------------------------------------
// Default Values & Business Logic
// -----------------------------------------------------------------------------

const (
	DefaultListenAddr   = ":8080"
	DefaultLanguage     = "en"
	DefaultTimezone     = "UTC"
	DefaultDBPath       = "~/" + ConfigDirName + "/" + DBFileName
	DefaultReminderHour = 9
	DefaultLLMBaseURL   = "https://openrouter.ai/api/v1"
	DefaultLLMModel     = "openai/gpt-4o-mini"
	DefaultLeapYear     = 2000                // Leap year fallback for year-less dates like 29 Feb
	UIDSalt             = "birthday-bot-v1-"  // Salt for deterministic UID generation
)

// SupportedLanguages defines the list of available reply languages (ISO 639-1).
var SupportedLanguages = []string{"en", "fr"}

// -----------------------------------------------------------------------------
// Intent Resolution & Matching
// -----------------------------------------------------------------------------

const (
	// Date extraction bounds.
	MinDayOfMonth = 1
	MaxDayOfMonth = 31

	// Fuzzy matcher rule scores. The first matching rule wins; scores are
	// fixed per rule, not blended.
	ScoreExact         = 1.0
	ScorePrefix        = 0.9
	ScoreWordPrefix    = 0.8
	ScoreSubstring     = 0.7
	ScoreWordSubstring = 0.65
	WordFuzzyFactor    = 0.9

	// LevenshteinFloor is the minimum whole-string similarity accepted by the
	// edit-distance rule.
	LevenshteinFloor = 0.6

	// MinMatchScore is the default rank cutoff for fuzzy candidates.
	MinMatchScore = 0.6

	// MinPartialLen guards the prefix/substring rules against single-letter
	// queries matching half the address book.
	MinPartialLen = 2

	// FuzzyQueryMaxLen caps the free-text length eligible for the
	// name-lookup fallback tier.
	FuzzyQueryMaxLen = 50

	// Upcoming window horizons, in days.
	UpcomingDaysDefault = 7
	UpcomingDaysMonth   = 30

	// BatchMinLines is the number of non-empty lines required before a
	// message is treated as a batch save.
	BatchMinLines = 2
)

// -----------------------------------------------------------------------------
// LLM Settings
// -----------------------------------------------------------------------------

const (
	LLMTimeout          = 20 * time.Second
	ClassifyMaxTokens   = 300
	ClassifyTemperature = 0.0
	RewriteMaxTokens    = 400
	RewriteTemperature  = 0.7
	ClassifyInputMaxLen = 500
	FormatJSON          = "json"
	MarkdownFence       = "```"
	RoleBirthdayAssist  = "You are the intent parser of a WhatsApp birthday assistant."
	RoleToneRewriter    = "You rewrite chat-bot replies in a warm, playful tone."
)

// -----------------------------------------------------------------------------
// WhatsApp Cloud API
// -----------------------------------------------------------------------------

const (
	GraphAPIBaseURL  = "https://graph.facebook.com/v21.0"
	MessagingProduct = "whatsapp"

	MsgTypeText     = "text"
	MsgTypeDocument = "document"
	MsgTypeContacts = "contacts"

	// Webhook verification handshake query parameters.
	ParamHubMode      = "hub.mode"
	ParamHubToken     = "hub.verify_token"
	ParamHubChallenge = "hub.challenge"
	HubModeSubscribe  = "subscribe"
)

// -----------------------------------------------------------------------------
// Standards: iCalendar & vCard
// -----------------------------------------------------------------------------

const (
	// iCal Properties
	ICalVersion = "2.0"
	ICalProdid  = "-//Birthday Bot//Feed//EN"
	ICalCalName = "Birthdays"
	ICalMethod  = "PUBLISH"
	ICalScale   = "GREGORIAN"
	ICalDomain  = "birthdaybot"

	PropUID        = "UID"
	PropSummary    = "SUMMARY"
	PropDTStart    = "DTSTART"
	PropDTStamp    = "DTSTAMP"
	PropRefresh    = "REFRESH-INTERVAL"
	PropVersion    = "VERSION"
	PropProdid     = "PRODID"
	PropXWRCalName = "X-WR-CALNAME"
	PropCalScale   = "CALSCALE"
	PropMethod     = "METHOD"

	VCardBDAY = "BDAY"
	VCardFN   = "FN"

	DefaultICalRefresh = 6 * time.Hour

	// FeedEventYears is how many yearly occurrences each birthday expands to.
	FeedEventYears = 3
)

// -----------------------------------------------------------------------------
// Data Formats, Limits & File Extensions
// -----------------------------------------------------------------------------

const (
	// Date layouts used for parsing vCard BDAY fields.
	DateFormatFullDash  = "2006-01-02"
	DateFormatFullBasic = "20060102"
	DateFormatRFC3339   = time.RFC3339
	DateFormatFullT     = "2006-01-02T15:04:05Z"
	DateFormatNoYearD   = "--01-02"
	DateFormatNoYearB   = "--0102"

	// UID Generation
	UIDHashLength   = 16
	FormatHashInput = "%s|%s|%d"
	FormatUID       = "%s-%d@%s"

	// Length of the hashed owner id used in log lines
	OwnerHashLength = 8

	// Feed token generation
	FormatTokenInput = "%s|%s"
	FeedTokenLength  = 32

	// File Extensions
	ExtVCF   = ".vcf"
	ExtVCard = ".vcard"
	ExtICS   = ".ics"
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout        = 30 * time.Second
	ShutdownTimeout    = 5 * time.Second
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 30 * time.Second
	ServerIdleTimeout  = 60 * time.Second

	// MaxHTTPResponseSize caps media downloads (shared .vcf files).
	MaxHTTPResponseSize = 32 * 1024 * 1024 // 32MB

	// MaxWebhookBodySize caps inbound webhook payloads.
	MaxWebhookBodySize = 1 * 1024 * 1024 // 1MB

	// MaxErrorBodySize caps how much of an API error response is read
	// back into error messages.
	MaxErrorBodySize = 2 * 1024

	SchemeHTTP  = "http"
	SchemeHTTPS = "https"

	RouteWebhookGet  = "GET /webhook"
	RouteWebhookPost = "POST /webhook"
	RouteFeed        = "GET /calendar/{owner}/{token}"
	FormatFeedPath   = "/calendar/%s/%s.ics"

	// ReminderTickInterval is how often the reminder worker re-checks
	// whether any profile has reached its local delivery hour.
	ReminderTickInterval = 15 * time.Minute
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType   = "Content-Type"
	HeaderCacheControl  = "Cache-Control"
	HeaderETag          = "ETag"
	HeaderIfNoneMatch   = "If-None-Match"
	HeaderXContentType  = "X-Content-Type-Options"
	HeaderUserAgent     = "User-Agent"
	HeaderAuthorization = "Authorization"

	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeJSON            = "application/json"
	MimeTextPlain       = "text/plain; charset=utf-8"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"

	// MimeVCardMarker matches both text/vcard and text/x-vcard.
	MimeVCardMarker = "vcard"

	BearerPrefix = "Bearer "

	// FormatETag expects a string argument.
	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrConfigRead      = "failed to read config file"
	ErrConfigParse     = "failed to parse config file"
	ErrTokenMissing    = "whatsapp access token is not configured"
	ErrPhoneIDMissing  = "whatsapp phone number id is not configured"
	ErrVerifyMissing   = "webhook verify token is not configured"
	ErrStoreOpen       = "failed to open database"
	ErrStoreMigrate    = "failed to apply database schema"
	ErrStoreQuery      = "database query failed"
	ErrStoreExec       = "database write failed"
	ErrStoreScan       = "failed to scan database row"
	ErrServerStartup   = "server startup failed"
	ErrServerShutdown  = "server shutdown failed"
	ErrWebhookParse    = "failed to parse webhook payload"
	ErrSendMessage     = "failed to send whatsapp message"
	ErrMediaLookup     = "failed to resolve media url"
	ErrMediaFetch      = "failed to download media"
	ErrInvalidURL      = "invalid URL structure"
	ErrProtocol        = "unsupported protocol scheme (http/https only)"
	ErrLLMCall         = "llm request failed"
	ErrLLMParse        = "failed to parse llm response"
	ErrICalEncode      = "failed to encode iCalendar data"
	ErrWriteResp       = "failed to write response body"
	ErrLocalesAccess   = "failed to access embedded locales"
	ErrLocaleLoad      = "failed to load locale file"
	ErrLocNotInit      = "localizer not initialized"
	ErrAppFailed       = "application failed unexpectedly"
	ErrLLMKeyMissing   = "llm api key is not configured"
	ErrEmptyCompletion = "empty completion from llm"
)

// -----------------------------------------------------------------------------
// HTTP Server Responses
// -----------------------------------------------------------------------------

const (
	HTTPMsgForbidden   = "Forbidden"
	HTTPMsgBadRequest  = "Bad Request"
	HTTPMsgInternalErr = "Internal Server Error"
)

// -----------------------------------------------------------------------------
// Translation Keys (I18n)
// -----------------------------------------------------------------------------

const (
	TKeyWelcome        = "reply_welcome"         // Requires Name (may be empty)
	TKeyHelp           = "reply_help"
	TKeySaved          = "reply_saved"           // Requires Name, Day, Month
	TKeyDuplicate      = "reply_duplicate"       // Requires Name, Day, Month
	TKeyUpdated        = "reply_updated"         // Requires Name, Day, Month
	TKeyUpdateMissing  = "reply_update_missing"  // Requires Name
	TKeyDeleted        = "reply_deleted"         // Requires Names (joined)
	TKeyDeleteMissing  = "reply_delete_missing"  // Requires Names (joined)
	TKeyListHeader     = "reply_list_header"     // Requires Count > 0
	TKeyListEmpty      = "reply_list_empty"
	TKeyListEntry      = "reply_list_entry"      // Requires Name, Day, Month
	TKeyMonthHeader    = "reply_month_header"    // Requires Month; Count > 0
	TKeyMonthEmpty     = "reply_month_empty"     // Requires Month
	TKeyDateHeader     = "reply_date_header"     // Requires Date; Count > 0
	TKeyDateEmpty      = "reply_date_empty"      // Requires Date
	TKeyUpcomingHeader = "reply_upcoming_header" // Requires Days; Count > 0
	TKeyUpcomingEmpty  = "reply_upcoming_empty"  // Requires Days
	TKeyFound          = "reply_found"           // Requires Name, Day, Month
	TKeyFoundHeader    = "reply_found_header"    // Requires Query; Count > 0
	TKeyFoundEmpty     = "reply_found_empty"     // Requires Query
	TKeyClarifySave    = "reply_clarify_save"
	TKeyClarifyUpdate  = "reply_clarify_update"
	TKeyClarifyDelete  = "reply_clarify_delete"
	TKeyClarifySearch  = "reply_clarify_search"
	TKeyBatchSummary   = "reply_batch_summary"   // Plural on saved count
	TKeyBatchBadLine   = "reply_batch_bad_line"  // Requires Line
	TKeyBatchDupLine   = "reply_batch_dup_line"  // Requires Name
	TKeyCalendarLink   = "reply_calendar_link"   // Requires URL
	TKeyImportSummary  = "reply_import_summary"  // Plural on saved count
	TKeyImportEmpty    = "reply_import_empty"
	TKeyReminderToday  = "reply_reminder_today"  // Requires Name (joined); plural on name count
	TKeyFallback       = "reply_fallback"
	TKeyFeedSummary    = "feed_summary"          // Requires Name; iCal event title
)

// -----------------------------------------------------------------------------
// Fallbacks
// -----------------------------------------------------------------------------

const (
	// Clarification fallbacks used when no localizer is wired into the
	// classifier (tests, future transports).
	FallbackClarifySave   = "Happy to save it! Who is it, and what's the date? (e.g. \"Mom, 9 Feb\")"
	FallbackClarifyUpdate = "Sure - what's the new date?"
	FallbackClarifyDelete = "Whose birthday should I delete?"
	FallbackClarifySearch = "Who should I look up?"

	FallbackName    = "Unknown"
	FallbackSummary = "Birthday: %s"

	// StubVCalendar is the minimal valid iCalendar object served when a user
	// has no stored birthdays. Clients flag a zero-byte feed as broken.
	StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ICalProdid + "\r\nEND:VCALENDAR\r\n"
)

// -----------------------------------------------------------------------------
// Log Messages
// -----------------------------------------------------------------------------

const (
	MsgAppStarting    = "Starting application"
	MsgAppStop        = "Application stopped gracefully"
	MsgSettingsLoaded = "Settings loaded"
	MsgStoreReady     = "Database ready"
	MsgLLMReady       = "LLM classifier configured"
	MsgLLMDone        = "LLM completion finished"
	MsgFeedDisabled   = "Calendar feed links disabled (no feed secret configured)"
	MsgServerListen   = "HTTP server listening"
	MsgServerStop     = "Shutting down HTTP server..."
	MsgWorkerStart    = "Reminder worker started"
	MsgWorkerStop     = "Worker stopping due to context cancellation"
	MsgVerifyOK       = "Webhook verification succeeded"
	MsgVerifyFail     = "Webhook verification failed"
	MsgMessageIn      = "Inbound message received"
	MsgMessageSkip    = "Ignoring unsupported message type"
	MsgIntentResolved = "Intent resolved"
	MsgClassifySkip   = "Classifier unavailable, using deterministic tiers only"
	MsgClassifyFail   = "Classifier failed open"
	MsgRewriteSkip    = "Tone rewrite failed, sending plain reply"
	MsgReplySent      = "Reply sent"
	MsgSendFail       = "Reply delivery failed"
	MsgTouchFail      = "Failed to record interaction time"
	MsgMarkFail       = "Failed to record welcome state"
	MsgOnboarded      = "New user onboarded"
	MsgBatchDone      = "Batch save complete"
	MsgImportDone     = "Contact import complete"
	MsgFeedServed     = "Calendar feed served"
	MsgFeedDenied     = "Calendar feed denied"
	MsgMediaFetched   = "Media downloaded"
	MsgReminderSent   = "Birthday reminder sent"
	MsgReminderSweep  = "Reminder sweep complete"
	MsgBdayToday      = "Birthday found today"
	MsgBadTimezone    = "Unknown user timezone, using UTC"
	MsgSkippedCard    = "Skipping malformed vCard"
	MsgSkippedDate    = "Skipping invalid date format"
	MsgLocaleSkip     = "Skipping non-locale file"
	MsgLocaleBadName  = "Skipping malformed locale filename"
	MsgLocaleLoaded   = "Locale loaded successfully"
	MsgTransMissing   = "Missing translation key"
	MsgKeyringMiss    = "Keyring lookup failed (might be empty)"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent = "component"
	LogKeyError     = "error"
	LogKeyStatus    = "status_code"
	LogKeyFile      = "file"
	LogKeyLang      = "lang"
	LogKeyKey       = "key"
	LogKeyAddr      = "addr"
	LogKeyOwner     = "owner_hash"
	LogKeyMessageID = "message_id"
	LogKeyMsgType   = "msg_type"
	LogKeyIntent    = "intent"
	LogKeyTier      = "tier"
	LogKeyValue     = "value"
	LogKeyCount     = "count"
	LogKeySaved     = "saved"
	LogKeySkipped   = "skipped"
	LogKeyMediaID   = "media_id"
	LogKeySizeBytes = "size_bytes"
	LogKeyETag      = "etag"
	LogKeyModel     = "model"
	LogKeyHour      = "hour"
	LogKeyTimezone  = "timezone"
	LogKeyInterval  = "interval"
	LogKeyDuration  = "duration_ms"

	// Startup Info Keys
	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompMain     = "main"
	CompConfig   = "config"
	CompStore    = "store"
	CompEngine   = "engine"
	CompIntent   = "intent"
	CompLLM      = "llm"
	CompWhatsApp = "whatsapp"
	CompServer   = "server"
	CompCalendar = "calendar"
	CompReminder = "reminder"
	CompI18n     = "i18n"
)
