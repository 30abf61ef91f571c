package whatsapp

import "strings"

// WebhookPayload is the envelope Meta POSTs to the webhook endpoint.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact identifies a sender; Profile.Name is their WhatsApp display name.
type Contact struct {
	WaID    string  `json:"wa_id"`
	Profile Profile `json:"profile"`
}

type Profile struct {
	Name string `json:"name"`
}

// Message is one inbound message. Only the fields of the supported types
// (text, document, contacts) are mapped.
type Message struct {
	From      string          `json:"from"`
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Text      *Text           `json:"text,omitempty"`
	Document  *Document       `json:"document,omitempty"`
	Contacts  []SharedContact `json:"contacts,omitempty"`
}

type Text struct {
	Body string `json:"body"`
}

// Document describes an attached file. The content is fetched separately
// through the media endpoint using the ID.
type Document struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename"`
	SHA256   string `json:"sha256"`
}

// SharedContact is one card inside a forwarded contacts message.
// Birthday, when present, is a vCard-style date string.
type SharedContact struct {
	Name     SharedName `json:"name"`
	Birthday string     `json:"birthday,omitempty"`
}

type SharedName struct {
	FormattedName string `json:"formatted_name"`
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
}

// DisplayName picks the best available name from a shared card. It may be
// empty when the card carries no usable name.
func (n SharedName) DisplayName() string {
	if name := strings.TrimSpace(n.FormattedName); name != "" {
		return name
	}
	return strings.TrimSpace(strings.TrimSpace(n.FirstName) + " " + strings.TrimSpace(n.LastName))
}

// ProfileName returns the WhatsApp display name of a sender, when the
// payload carries one.
func (v ChangeValue) ProfileName(waID string) string {
	for _, c := range v.Contacts {
		if c.WaID == waID {
			return c.Profile.Name
		}
	}
	return ""
}
