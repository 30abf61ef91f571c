package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/calendar"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/nlu"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/store"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type textCall struct {
	Owner   string
	Profile string
	Text    string
}

type importCall struct {
	Owner   string
	Profile string
	Entries []nlu.Birthday
}

// fakeEngine records handler calls. Webhook processing is asynchronous, so
// access is mutex-guarded and tests poll with require.Eventually.
type fakeEngine struct {
	mu      sync.Mutex
	texts   []textCall
	imports []importCall
}

func (f *fakeEngine) HandleText(_ context.Context, ownerID, profileName, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, textCall{ownerID, profileName, text})
}

func (f *fakeEngine) HandleImport(_ context.Context, ownerID, profileName string, entries []nlu.Birthday) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imports = append(f.imports, importCall{ownerID, profileName, entries})
}

func (f *fakeEngine) textCalls() []textCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]textCall(nil), f.texts...)
}

func (f *fakeEngine) importCalls() []importCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]importCall(nil), f.imports...)
}

type fakeMedia struct {
	data map[string][]byte
	err  error
}

func (f *fakeMedia) DownloadMedia(_ context.Context, mediaID string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.data[mediaID]
	if !ok {
		return nil, errors.New("no such media")
	}
	return data, nil
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func newTestServer(t *testing.T) (*Server, *fakeEngine, *fakeMedia, *store.SQLiteStore) {
	t.Helper()

	st, err := store.Open(store.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	eng := &fakeEngine{}
	media := &fakeMedia{data: map[string][]byte{}}
	srv := &Server{
		Addr:        "127.0.0.1:0",
		VerifyToken: "verify-secret",
		FeedSecret:  "feed-secret",
		Handler:     eng,
		Media:       media,
		Store:       st,
		Builder:     &calendar.Builder{},
		Clock:       fixedClock{now: time.Date(2025, 8, 25, 12, 0, 0, 0, time.UTC)},
	}
	return srv, eng, media, st
}

func serve(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	srv.Routes().ServeHTTP(w, req)
	return w
}

// -----------------------------------------------------------------------------
// Verification handshake
// -----------------------------------------------------------------------------

func TestVerify_EchoesChallengeOnMatch(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	w := serve(srv, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=verify-secret&hub.challenge=1158201444", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1158201444", w.Body.String())
}

func TestVerify_RejectsBadToken(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	w := serve(srv, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=42", "")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotContains(t, w.Body.String(), "42", "Challenge must not leak on rejection")
}

func TestVerify_RejectsMissingMode(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	w := serve(srv, http.MethodGet, "/webhook?hub.verify_token=verify-secret&hub.challenge=42", "")

	assert.Equal(t, http.StatusForbidden, w.Code)
}

// -----------------------------------------------------------------------------
// Webhook intake
// -----------------------------------------------------------------------------

func TestWebhook_DispatchesTextMessage(t *testing.T) {
	srv, eng, _, _ := newTestServer(t)

	payload := `{
	  "object": "whatsapp_business_account",
	  "entry": [{"id": "1", "changes": [{"field": "messages", "value": {
	    "contacts": [{"profile": {"name": "Naman"}, "wa_id": "919999000001"}],
	    "messages": [{"from": "919999000001", "id": "wamid.1", "type": "text", "text": {"body": "Papa 29 Aug"}}]
	  }}]}]
	}`

	w := serve(srv, http.MethodPost, "/webhook", payload)
	assert.Equal(t, http.StatusOK, w.Code, "Webhook must ack immediately")

	require.Eventually(t, func() bool { return len(eng.textCalls()) == 1 }, 2*time.Second, 10*time.Millisecond)
	call := eng.textCalls()[0]
	assert.Equal(t, "919999000001", call.Owner)
	assert.Equal(t, "Naman", call.Profile)
	assert.Equal(t, "Papa 29 Aug", call.Text)
}

func TestWebhook_DocumentDownloadsAndImports(t *testing.T) {
	srv, eng, media, _ := newTestServer(t)
	media.data["media-id-1"] = []byte("BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Papa\r\nBDAY:--08-29\r\nEND:VCARD\r\n")

	payload := `{
	  "entry": [{"changes": [{"value": {
	    "messages": [{"from": "919999000001", "id": "wamid.2", "type": "document",
	      "document": {"id": "media-id-1", "mime_type": "text/vcard", "filename": "papa.vcf"}}]
	  }}]}]
	}`

	w := serve(srv, http.MethodPost, "/webhook", payload)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool { return len(eng.importCalls()) == 1 }, 2*time.Second, 10*time.Millisecond)
	call := eng.importCalls()[0]
	assert.Equal(t, "919999000001", call.Owner)
	require.Len(t, call.Entries, 1)
	assert.Equal(t, nlu.Birthday{Name: "Papa", Day: 29, Month: "Aug"}, call.Entries[0])
}

func TestWebhook_SharedContactsConvert(t *testing.T) {
	// Two cards: one with a parseable birthday, one without. Only the
	// first becomes an entry; the import still happens so the user gets a
	// summary reply either way.
	srv, eng, _, _ := newTestServer(t)

	payload := `{
	  "entry": [{"changes": [{"value": {
	    "messages": [{"from": "919999000001", "id": "wamid.3", "type": "contacts",
	      "contacts": [
	        {"name": {"formatted_name": "Tanni"}, "birthday": "1999-02-09"},
	        {"name": {"formatted_name": "No Date"}}
	      ]}]
	  }}]}]
	}`

	w := serve(srv, http.MethodPost, "/webhook", payload)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool { return len(eng.importCalls()) == 1 }, 2*time.Second, 10*time.Millisecond)
	call := eng.importCalls()[0]
	require.Len(t, call.Entries, 1)
	assert.Equal(t, nlu.Birthday{Name: "Tanni", Day: 9, Month: "Feb"}, call.Entries[0])
}

func TestWebhook_MalformedPayloadRejected(t *testing.T) {
	srv, eng, _, _ := newTestServer(t)

	w := serve(srv, http.MethodPost, "/webhook", "{not json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, eng.textCalls())
}

func TestWebhook_IgnoresUnsupportedTypes(t *testing.T) {
	// An image and a text arrive together. The text is processed; the
	// image produces no engine call of any kind.
	srv, eng, _, _ := newTestServer(t)

	payload := `{
	  "entry": [{"changes": [{"value": {
	    "messages": [
	      {"from": "919999000001", "id": "wamid.4", "type": "image"},
	      {"from": "919999000001", "id": "wamid.5", "type": "text", "text": {"body": "help"}}
	    ]
	  }}]}]
	}`

	w := serve(srv, http.MethodPost, "/webhook", payload)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool { return len(eng.textCalls()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, eng.importCalls())
}

func TestWebhook_SkipsNonVCardDocuments(t *testing.T) {
	srv, eng, media, _ := newTestServer(t)
	media.data["media-pdf"] = []byte("%PDF-1.4")

	payload := `{
	  "entry": [{"changes": [{"value": {
	    "messages": [
	      {"from": "919999000001", "id": "wamid.6", "type": "document",
	       "document": {"id": "media-pdf", "mime_type": "application/pdf", "filename": "invoice.pdf"}},
	      {"from": "919999000001", "id": "wamid.7", "type": "text", "text": {"body": "help"}}
	    ]
	  }}]}]
	}`

	w := serve(srv, http.MethodPost, "/webhook", payload)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool { return len(eng.textCalls()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, eng.importCalls(), "Non-vCard documents must not be imported")
}

// -----------------------------------------------------------------------------
// Calendar feed
// -----------------------------------------------------------------------------

func TestFeed_ServesCalendarWithValidToken(t *testing.T) {
	srv, _, _, st := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, st.SaveRecord(ctx, "919999000001", "Papa", 29, "Aug"))

	token := calendar.FeedToken("919999000001", "feed-secret")
	w := serve(srv, http.MethodGet, "/calendar/919999000001/"+token+".ics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, config.MimeTextCalendar, w.Header().Get(config.HeaderContentType))
	assert.Equal(t, config.MimeNoSniff, w.Header().Get(config.HeaderXContentType))
	assert.NotEmpty(t, w.Header().Get(config.HeaderETag))

	body := w.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "SUMMARY:Birthday: Papa")
	assert.Contains(t, body, "DTSTART;VALUE=DATE:20250829", "Fixed clock anchors the current-year event")
}

func TestFeed_AcceptsTokenWithoutExtension(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	token := calendar.FeedToken("919999000001", "feed-secret")
	w := serve(srv, http.MethodGet, "/calendar/919999000001/"+token, "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFeed_RejectsBadToken(t *testing.T) {
	srv, _, _, st := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, st.SaveRecord(ctx, "919999000001", "Papa", 29, "Aug"))

	w := serve(srv, http.MethodGet, "/calendar/919999000001/0000000000000000000000000000000a.ics", "")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotContains(t, w.Body.String(), "Papa", "Record data must not leak on rejection")
}

func TestFeed_TokenIsPerOwner(t *testing.T) {
	// A valid token for one owner must not open another owner's feed.
	srv, _, _, _ := newTestServer(t)

	otherToken := calendar.FeedToken("919999000002", "feed-secret")
	w := serve(srv, http.MethodGet, "/calendar/919999000001/"+otherToken+".ics", "")

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestFeed_EmptyUserServesStub(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	token := calendar.FeedToken("919999000009", "feed-secret")
	w := serve(srv, http.MethodGet, "/calendar/919999000009/"+token+".ics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, config.StubVCalendar, w.Body.String())
}

func TestFeed_ETagSupportsConditionalGet(t *testing.T) {
	srv, _, _, st := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, st.SaveRecord(ctx, "919999000001", "Papa", 29, "Aug"))

	token := calendar.FeedToken("919999000001", "feed-secret")
	target := "/calendar/919999000001/" + token + ".ics"

	first := serve(srv, http.MethodGet, target, "")
	etag := first.Header().Get(config.HeaderETag)
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set(config.HeaderIfNoneMatch, etag)
	second := httptest.NewRecorder()
	srv.Routes().ServeHTTP(second, req)

	assert.Equal(t, http.StatusNotModified, second.Code)
	assert.Empty(t, second.Body.String(), "Body must be empty on 304 Not Modified")
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// TestServer_Lifecycle binds a real listener to verify startup and graceful
// shutdown.
func TestServer_Lifecycle(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	srv.Addr = "127.0.0.1:18231"

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)

	go func() {
		errChan <- srv.Start(ctx)
	}()

	url := "http://" + srv.Addr + "/webhook?hub.mode=subscribe&hub.verify_token=verify-secret&hub.challenge=ping"

	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK && string(body) == "ping"
	}, 2*time.Second, 50*time.Millisecond, "Server failed to bind/listen in time")

	cancel()

	select {
	case err := <-errChan:
		assert.NoError(t, err, "Server should shutdown gracefully without error")
	case <-time.After(5 * time.Second):
		t.Fatal("Server shutdown timed out")
	}
}
