package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	_ "time/tzdata" // reminder scheduling needs zone data on minimal hosts

	"github.com/namannarain93/whatsapp-birthday-bot/internal/calendar"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/engine"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/intent"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/llm"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/reminder"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/server"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/store"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/whatsapp"
)

// main delegates to runMain so deferred cleanup runs before the process
// exits; os.Exit skips defers.
func main() {
	os.Exit(runMain())
}

// runMain parses arguments, configures logging and signal handling, and maps
// the outcome to a process exit code.
func runMain() int {
	showVersion := flag.Bool(config.FlagVersion, false, config.FlagDescVersion)
	debugMode := flag.Bool(config.FlagDebug, false, config.FlagDescDebug)
	configPath := flag.String(config.FlagConfig, config.DefaultConfigPath(), config.FlagDescConfig)
	flag.Parse()

	if *showVersion {
		printVersion()
		return config.ExitCodeSuccess
	}

	setupLogging(*debugMode)

	// Root context cancels on SIGINT (Ctrl+C) or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logStartupInfo()

	settings, err := config.LoadSettings(*configPath)
	if err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}
	if err := settings.Validate(); err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}

	if err := run(ctx, settings); err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}

	slog.Info(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
	return config.ExitCodeSuccess
}

// run wires the storage, engine, transport and background worker together
// and blocks serving until ctx is cancelled.
func run(ctx context.Context, settings *config.Settings) error {
	st, err := store.Open(settings.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = st.Close()
	}()

	replies := engine.NewReplies(settings.DefaultLanguage)

	var completer llm.Completer
	if settings.LLMEnabled() {
		completer = llm.NewClient(settings.LLM.BaseURL, settings.LLM.APIKey, settings.LLM.Model)
		slog.Info(config.MsgLLMReady,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyModel, settings.LLM.Model,
		)
	} else {
		slog.Info(config.MsgClassifySkip, config.LogKeyComponent, config.CompMain)
	}

	classifier := intent.NewClassifier(completer, replies.Questions())
	resolver := engine.NewResolver(classifier, replies.Questions())

	// Feed links only go out when both halves of the URL are configured;
	// the feed endpoint itself always answers valid tokens.
	var feedURL func(string) string
	switch {
	case settings.PublicBaseURL != "" && settings.FeedSecret != "":
		base, secret := settings.PublicBaseURL, settings.FeedSecret
		feedURL = func(ownerID string) string {
			return base + fmt.Sprintf(config.FormatFeedPath, ownerID, calendar.FeedToken(ownerID, secret))
		}
	case settings.PublicBaseURL != "":
		slog.Warn(config.MsgFeedDisabled, config.LogKeyComponent, config.CompMain)
	}

	dispatcher := engine.NewDispatcher(st, replies, engine.RealClock{}, feedURL)

	var rewriter *engine.Rewriter
	if settings.LLMEnabled() && settings.LLM.RewriteTone {
		rewriter = engine.NewRewriter(completer)
	}

	client := whatsapp.NewClient(settings.WhatsApp.PhoneNumberID, settings.WhatsApp.AccessToken)
	handler := engine.NewHandler(st, resolver, dispatcher, rewriter, client, settings.DefaultTimezone)

	worker := &reminder.Worker{
		Store:   st,
		Sender:  client,
		Replies: replies,
		Hour:    settings.ReminderHour,
	}
	go worker.Run(ctx)

	srv := &server.Server{
		Addr:        settings.ListenAddr,
		VerifyToken: settings.WhatsApp.VerifyToken,
		FeedSecret:  settings.FeedSecret,
		Handler:     handler,
		Media:       client,
		Store:       st,
		Builder: &calendar.Builder{
			FormatSummary: func(name string) string {
				return replies.Data(config.TKeyFeedSummary, map[string]interface{}{"Name": name})
			},
		},
	}
	return srv.Start(ctx)
}

// printVersion outputs the build information to stdout.
func printVersion() {
	fmt.Printf(config.MsgVersionOutput,
		config.AppName,
		config.Version,
		runtime.GOOS,
		runtime.GOARCH,
	)
}

// logStartupInfo logs environment details useful for debugging.
func logStartupInfo() {
	slog.Info(config.MsgAppStarting,
		config.LogKeyComponent, config.CompMain,
		slog.Group(config.LogKeyBuild,
			slog.String(config.LogKeyApp, config.AppName),
			slog.String(config.LogKeyVersion, config.Version),
			slog.String(config.LogKeyGoVer, runtime.Version()),
		),
		slog.Group(config.LogKeyEnv,
			slog.String(config.LogKeyOS, runtime.GOOS),
			slog.String(config.LogKeyArch, runtime.GOARCH),
			slog.Int(config.LogKeyPID, os.Getpid()),
		),
	)
}

// setupLogging configures the default slog logger. The bot runs as a
// service, so structured JSON goes to stdout and collection is left to the
// host.
func setupLogging(debugMode bool) {
	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: debugMode,
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, opts)))
}
