package whatsapp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/whatsapp"
)

func TestSendText_PostsCloudAPIEnvelope(t *testing.T) {
	// Scenario: one outbound text. The client must hit the phone number's
	// messages endpoint with a bearer token and the whatsapp envelope.
	var gotPath, gotAuth, gotContentType string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.X"}]}`))
	}))
	defer srv.Close()

	c := whatsapp.NewClient("123456789", "secret-token")
	c.BaseURL = srv.URL

	err := c.SendText(context.Background(), "919999000001", "Saved! 🎂")
	require.NoError(t, err)

	assert.Equal(t, "/123456789/messages", gotPath)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "whatsapp", gotBody["messaging_product"])
	assert.Equal(t, "919999000001", gotBody["to"])
	assert.Equal(t, "text", gotBody["type"])

	text, ok := gotBody["text"].(map[string]interface{})
	require.True(t, ok, "Envelope must nest the body under text")
	assert.Equal(t, "Saved! 🎂", text["body"])
}

func TestSendText_ErrorStatusSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token"}}`))
	}))
	defer srv.Close()

	c := whatsapp.NewClient("123456789", "bad-token")
	c.BaseURL = srv.URL

	err := c.SendText(context.Background(), "919999000001", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Invalid OAuth access token")
	assert.NotContains(t, err.Error(), "bad-token", "Token must never leak into errors")
}

func TestDownloadMedia_TwoStepFetch(t *testing.T) {
	// Scenario: a media id resolves to a short-lived URL which is then
	// fetched with the same bearer token.
	const vcf = "BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Papa\r\nBDAY:--08-29\r\nEND:VCARD\r\n"

	var lookupAuth, fetchAuth string
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/media-id-1", func(w http.ResponseWriter, r *http.Request) {
		lookupAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"url":       srv.URL + "/files/abc",
			"mime_type": "text/vcard",
			"file_size": len(vcf),
		})
	})
	mux.HandleFunc("/files/abc", func(w http.ResponseWriter, r *http.Request) {
		fetchAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(vcf))
	})

	c := whatsapp.NewClient("123456789", "secret-token")
	c.BaseURL = srv.URL

	data, err := c.DownloadMedia(context.Background(), "media-id-1")
	require.NoError(t, err)

	assert.Equal(t, vcf, string(data))
	assert.Equal(t, "Bearer secret-token", lookupAuth)
	assert.Equal(t, "Bearer secret-token", fetchAuth)
}

func TestDownloadMedia_LookupFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer srv.Close()

	c := whatsapp.NewClient("123456789", "secret-token")
	c.BaseURL = srv.URL

	_, err := c.DownloadMedia(context.Background(), "missing-media")
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrMediaLookup)
}

func TestDownloadMedia_RejectsOddSchemes(t *testing.T) {
	// The resolved URL is followed blindly with a bearer token attached,
	// so anything but http(s) is refused outright.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"url":"ftp://example.com/file"}`))
	}))
	defer srv.Close()

	c := whatsapp.NewClient("123456789", "secret-token")
	c.BaseURL = srv.URL

	_, err := c.DownloadMedia(context.Background(), "media-id-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrProtocol)
}

func TestDownloadMedia_EmptyLookupURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"mime_type":"text/vcard"}`))
	}))
	defer srv.Close()

	c := whatsapp.NewClient("123456789", "secret-token")
	c.BaseURL = srv.URL

	_, err := c.DownloadMedia(context.Background(), "media-id-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrMediaLookup)
}
