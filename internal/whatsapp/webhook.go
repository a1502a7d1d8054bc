// ABOUTME: Webhook payload types and parsing for WhatsApp Cloud API events
// ABOUTME: Extracts the sender identity, profile name, and first message of an event

package whatsapp

import (
	"errors"
)

// Message kinds as reported in the webhook payload
const (
	KindText  = "text"
	KindAudio = "audio"
	KindImage = "image"
)

// ErrNotAMessage is returned for structurally valid webhooks that carry no
// user message (status updates, read receipts).
var ErrNotAMessage = errors.New("webhook event carries no message")

// WebhookEvent is the top-level webhook body
type WebhookEvent struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one account-level change batch
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change wraps the changed value
type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value carries contacts and messages for a change
type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
}

// Contact identifies the sending user
type Contact struct {
	WaID    string  `json:"wa_id"`
	Profile Profile `json:"profile"`
}

// Profile carries the user's display name
type Profile struct {
	Name string `json:"name"`
}

// Message is one inbound message, discriminated by Type
type Message struct {
	ID    string        `json:"id"`
	From  string        `json:"from"`
	Type  string        `json:"type"`
	Text  *TextContent  `json:"text,omitempty"`
	Audio *MediaContent `json:"audio,omitempty"`
	Image *MediaContent `json:"image,omitempty"`
}

// TextContent is the body of a text message
type TextContent struct {
	Body string `json:"body"`
}

// MediaContent references provider-hosted media
type MediaContent struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
}

// InboundMessage is the normalized result of parsing a webhook event
type InboundMessage struct {
	WaID        string
	ProfileName string
	Message     Message
}

// Valid reports whether the event has the structure of a user message
// notification: a whatsapp object with at least one entry, change, and message.
func (e *WebhookEvent) Valid() bool {
	return e.Object != "" &&
		len(e.Entry) > 0 &&
		len(e.Entry[0].Changes) > 0 &&
		len(e.Entry[0].Changes[0].Value.Messages) > 0
}

// ParseMessage extracts the first message and its sender from the event.
// Returns ErrNotAMessage when the event is not a user message notification.
func (e *WebhookEvent) ParseMessage() (*InboundMessage, error) {
	if !e.Valid() {
		return nil, ErrNotAMessage
	}

	value := e.Entry[0].Changes[0].Value
	msg := value.Messages[0]

	inbound := &InboundMessage{Message: msg}
	if len(value.Contacts) > 0 {
		inbound.WaID = value.Contacts[0].WaID
		inbound.ProfileName = value.Contacts[0].Profile.Name
	}
	if inbound.WaID == "" {
		inbound.WaID = msg.From
	}
	if inbound.WaID == "" {
		return nil, ErrNotAMessage
	}
	return inbound, nil
}
