// Package whatsapp is a minimal WhatsApp Cloud API client: sending text
// replies and downloading shared media, plus the webhook payload types.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
)

// Client talks to the Cloud API on behalf of one registered phone number.
// The access token stays unexported and never appears in logs or errors.
type Client struct {
	// BaseURL is the Graph API root. Tests point it at a local server.
	BaseURL string
	// HTTPClient is the underlying transport with timeouts configured.
	HTTPClient *http.Client

	phoneNumberID string
	accessToken   string
}

// NewClient creates a Cloud API client with configured timeouts.
func NewClient(phoneNumberID, accessToken string) *Client {
	return &Client{
		BaseURL:       config.GraphAPIBaseURL,
		HTTPClient:    &http.Client{Timeout: config.HTTPTimeout},
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
	}
}

// sendPayload is the Cloud API message envelope.
type sendPayload struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

// SendText delivers a text message to the given WhatsApp number.
func (c *Client) SendText(ctx context.Context, to, text string) error {
	payload, err := json.Marshal(sendPayload{
		MessagingProduct: config.MessagingProduct,
		To:               to,
		Type:             config.MsgTypeText,
		Text:             textBody{Body: text},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrSendMessage, err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.BaseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrSendMessage, err)
	}
	req.Header.Set(config.HeaderContentType, config.MimeJSON)
	req.Header.Set(config.HeaderAuthorization, config.BearerPrefix+c.accessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrSendMessage, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, config.MaxErrorBodySize))
		return fmt.Errorf("%s: status %d: %s", config.ErrSendMessage, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// mediaMeta is the metadata envelope a media id resolves to.
type mediaMeta struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// DownloadMedia fetches a shared media object (a forwarded .vcf document)
// by id. The Cloud API resolves the id to a short-lived URL which must be
// fetched with the same bearer token. Reads are capped to protect memory.
func (c *Client) DownloadMedia(ctx context.Context, mediaID string) ([]byte, error) {
	log := slog.With(
		config.LogKeyComponent, config.CompWhatsApp,
		config.LogKeyMediaID, mediaID,
	)

	meta, err := c.resolveMedia(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(meta.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrInvalidURL, err)
	}
	if u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS {
		return nil, fmt.Errorf("%s: %s", config.ErrProtocol, u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrMediaFetch, err)
	}
	req.Header.Set(config.HeaderAuthorization, config.BearerPrefix+c.accessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrMediaFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d", config.ErrMediaFetch, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, config.MaxHTTPResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrMediaFetch, err)
	}

	log.Debug(config.MsgMediaFetched, config.LogKeySizeBytes, len(data))
	return data, nil
}

// resolveMedia looks up the download metadata for a media id.
func (c *Client) resolveMedia(ctx context.Context, mediaID string) (mediaMeta, error) {
	endpoint := fmt.Sprintf("%s/%s", c.BaseURL, mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return mediaMeta{}, fmt.Errorf("%s: %w", config.ErrMediaLookup, err)
	}
	req.Header.Set(config.HeaderAuthorization, config.BearerPrefix+c.accessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return mediaMeta{}, fmt.Errorf("%s: %w", config.ErrMediaLookup, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return mediaMeta{}, fmt.Errorf("%s: status %d", config.ErrMediaLookup, resp.StatusCode)
	}

	var meta mediaMeta
	if err := json.NewDecoder(io.LimitReader(resp.Body, config.MaxWebhookBodySize)).Decode(&meta); err != nil {
		return mediaMeta{}, fmt.Errorf("%s: %w", config.ErrMediaLookup, err)
	}
	if meta.URL == "" {
		return mediaMeta{}, errors.New(config.ErrMediaLookup)
	}
	return meta, nil
}
