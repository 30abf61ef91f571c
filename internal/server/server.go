// Package server hosts the WhatsApp webhook endpoint and the per-user
// calendar feed.
package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/calendar"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/engine"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/nlu"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/store"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/whatsapp"
)

// MessageHandler consumes inbound messages once the transport envelope has
// been stripped away.
type MessageHandler interface {
	HandleText(ctx context.Context, ownerID, profileName, text string)
	HandleImport(ctx context.Context, ownerID, profileName string, entries []nlu.Birthday)
}

// MediaDownloader fetches shared media content by id.
type MediaDownloader interface {
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, error)
}

// Server hosts the webhook and calendar feed routes.
type Server struct {
	Addr        string
	VerifyToken string
	FeedSecret  string

	Handler MessageHandler
	Media   MediaDownloader
	Store   store.Store
	Builder *calendar.Builder
	Clock   engine.Clock
}

// Start runs the HTTP server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverError := make(chan error, config.ChannelBufferSize)

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyAddr, s.Addr,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}

// Routes builds the request mux. Exposed so tests can drive the handlers
// without binding a listener.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(config.RouteWebhookGet, s.handleVerify)
	mux.HandleFunc(config.RouteWebhookPost, s.handleWebhook)
	mux.HandleFunc(config.RouteFeed, s.handleFeed)
	return mux
}

// handleVerify answers Meta's subscription handshake: echo hub.challenge
// back when the verify token matches.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get(config.ParamHubMode)
	token := q.Get(config.ParamHubToken)

	if mode != config.HubModeSubscribe || subtle.ConstantTimeCompare([]byte(token), []byte(s.VerifyToken)) != 1 {
		slog.Warn(config.MsgVerifyFail, config.LogKeyComponent, config.CompServer)
		http.Error(w, config.HTTPMsgForbidden, http.StatusForbidden)
		return
	}

	slog.Info(config.MsgVerifyOK, config.LogKeyComponent, config.CompServer)
	w.Header().Set(config.HeaderContentType, config.MimeTextPlain)
	if _, err := io.WriteString(w, q.Get(config.ParamHubChallenge)); err != nil {
		slog.Error(config.ErrWriteResp,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
	}
}

// handleWebhook acknowledges the delivery immediately and processes each
// message on its own goroutine. Meta retries aggressively on anything but
// a fast 200, so all engine work happens after the ack.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, config.MaxWebhookBodySize))
	if err != nil {
		http.Error(w, config.HTTPMsgBadRequest, http.StatusBadRequest)
		return
	}

	var payload whatsapp.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.Warn(config.ErrWebhookParse,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
		http.Error(w, config.HTTPMsgBadRequest, http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)

	// The request context dies with the ack; processing must not.
	ctx := context.WithoutCancel(r.Context())
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				go s.process(ctx, change.Value, msg)
			}
		}
	}
}

// process routes one inbound message to the engine.
func (s *Server) process(ctx context.Context, value whatsapp.ChangeValue, msg whatsapp.Message) {
	profileName := value.ProfileName(msg.From)

	switch msg.Type {
	case config.MsgTypeText:
		if msg.Text == nil {
			return
		}
		s.Handler.HandleText(ctx, msg.From, profileName, msg.Text.Body)
	case config.MsgTypeDocument:
		s.processDocument(ctx, msg, profileName)
	case config.MsgTypeContacts:
		s.Handler.HandleImport(ctx, msg.From, profileName, sharedEntries(msg.Contacts))
	default:
		slog.Debug(config.MsgMessageSkip,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyMsgType, msg.Type,
			config.LogKeyMessageID, msg.ID,
		)
	}
}

// processDocument imports birthdays from a forwarded vCard file.
func (s *Server) processDocument(ctx context.Context, msg whatsapp.Message, profileName string) {
	doc := msg.Document
	if doc == nil {
		return
	}
	if !isVCardFile(doc) {
		slog.Debug(config.MsgMessageSkip,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyMsgType, msg.Type,
			config.LogKeyFile, doc.Filename,
		)
		return
	}

	data, err := s.Media.DownloadMedia(ctx, doc.ID)
	if err != nil {
		slog.Error(config.ErrMediaFetch,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
			config.LogKeyMediaID, doc.ID,
		)
		return
	}

	s.Handler.HandleImport(ctx, msg.From, profileName, calendar.ParseCards(bytes.NewReader(data)))
}

// isVCardFile accepts .vcf and .vcard attachments by extension or MIME type.
func isVCardFile(doc *whatsapp.Document) bool {
	ext := strings.ToLower(filepath.Ext(doc.Filename))
	if ext == config.ExtVCF || ext == config.ExtVCard {
		return true
	}
	return strings.Contains(strings.ToLower(doc.MimeType), config.MimeVCardMarker)
}

// sharedEntries converts forwarded contact cards into import entries,
// keeping only cards that carry a parseable birthday.
func sharedEntries(cards []whatsapp.SharedContact) []nlu.Birthday {
	var entries []nlu.Birthday
	for _, card := range cards {
		if card.Birthday == "" {
			continue
		}
		day, month, ok := calendar.ParseBirthdayValue(card.Birthday)
		if !ok {
			slog.Debug(config.MsgSkippedDate,
				config.LogKeyComponent, config.CompServer,
				config.LogKeyValue, card.Birthday,
			)
			continue
		}

		name := card.Name.DisplayName()
		if name == "" {
			name = config.FallbackName
		}
		entries = append(entries, nlu.Birthday{Name: name, Day: day, Month: month})
	}
	return entries
}

// handleFeed serves one user's calendar. The token is a salted digest of
// the owner id, compared in constant time.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	token := strings.TrimSuffix(r.PathValue("token"), config.ExtICS)

	expected := calendar.FeedToken(owner, s.FeedSecret)
	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		slog.Warn(config.MsgFeedDenied,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyOwner, engine.OwnerHash(owner),
		)
		http.Error(w, config.HTTPMsgForbidden, http.StatusForbidden)
		return
	}

	records, err := s.Store.ListAll(r.Context(), owner)
	if err != nil {
		slog.Error(config.ErrStoreQuery,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
		http.Error(w, config.HTTPMsgInternalErr, http.StatusInternalServerError)
		return
	}

	data, err := s.Builder.Build(s.now(), records)
	if err != nil {
		slog.Error(config.ErrICalEncode,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
		http.Error(w, config.HTTPMsgInternalErr, http.StatusInternalServerError)
		return
	}

	hash := sha256.Sum256(data)
	etag := fmt.Sprintf(config.FormatETag, hex.EncodeToString(hash[:]))

	w.Header().Set(config.HeaderContentType, config.MimeTextCalendar)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.Header().Set(config.HeaderCacheControl, config.CacheControlPrivate)
	w.Header().Set(config.HeaderETag, etag)

	if r.Header.Get(config.HeaderIfNoneMatch) == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if _, err := w.Write(data); err != nil {
		slog.Error(config.ErrWriteResp,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
		return
	}

	slog.Info(config.MsgFeedServed,
		config.LogKeyComponent, config.CompServer,
		config.LogKeyOwner, engine.OwnerHash(owner),
		config.LogKeyCount, len(records),
		config.LogKeySizeBytes, len(data),
		config.LogKeyETag, etag,
	)
}

func (s *Server) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}
