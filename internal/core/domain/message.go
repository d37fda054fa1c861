// Package domain contains core business entities.
// Following Hexagonal Architecture: these models are infrastructure-agnostic.
package domain

import "time"

// MessageType enumerates the inbound message shapes this system normalizes.
type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypeImage       MessageType = "image"
	MessageTypeVideo       MessageType = "video"
	MessageTypeAudio       MessageType = "audio"
	MessageTypeDocument    MessageType = "document"
	MessageTypeSticker     MessageType = "sticker"
	MessageTypeLocation    MessageType = "location"
	MessageTypeAddress     MessageType = "address"
	MessageTypeContacts    MessageType = "contacts"
	MessageTypeInteractive MessageType = "interactive"
	MessageTypeReaction    MessageType = "reaction"
	MessageTypeButton      MessageType = "button"
	MessageTypeOrder       MessageType = "order"
	MessageTypeSystem      MessageType = "system"
	MessageTypeUnknown     MessageType = "unknown"
)

// TextBody carries the body for MessageTypeText.
type TextBody struct {
	Body string `json:"body"`
}

// MediaBody carries the body shared by image/video/audio/document/sticker.
type MediaBody struct {
	MediaID  string `json:"media_id,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// LocationBody carries the body for MessageTypeLocation.
type LocationBody struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// AddressBody carries the body for MessageTypeAddress. At least one field
// is populated; WhatsApp sends address messages as a loose bag of parts
// rather than a structured, fully-required record.
type AddressBody struct {
	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	ZipCode     string `json:"zip_code,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Country     string `json:"country,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// ContactsBody carries the body for MessageTypeContacts.
type ContactsBody struct {
	Contacts []Contact `json:"contacts"`
}

// Contact is one entry of ContactsBody.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// InteractiveReplyBody carries the body for MessageTypeInteractive
// (the user's reply to a button or list message).
type InteractiveReplyBody struct {
	ReplyID    string `json:"reply_id"`
	ReplyTitle string `json:"reply_title"`
}

// ReactionBody carries the body for MessageTypeReaction.
type ReactionBody struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// ButtonBody carries the body for MessageTypeButton (a template quick-reply click).
type ButtonBody struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

// OrderBody carries the body for MessageTypeOrder.
type OrderBody struct {
	CatalogID    string      `json:"catalog_id"`
	ProductItems []OrderItem `json:"product_items"`
}

// OrderItem is one line of OrderBody.
type OrderItem struct {
	ProductRetailerID string  `json:"product_retailer_id"`
	Quantity          int     `json:"quantity"`
	ItemPrice         float64 `json:"item_price"`
	Currency          string  `json:"currency"`
}

// Message is an immutable, normalized representation of one inbound
// provider event. It is created once during webhook normalization and is
// never mutated afterward.
type Message struct {
	MessageID   string      `json:"message_id"`
	ChatID      string      `json:"chat_id"`
	FromNumber  string      `json:"from_number"`
	Timestamp   time.Time   `json:"timestamp"`
	MessageType MessageType `json:"message_type"`

	// Exactly one of the following is populated, matching MessageType.
	Text        *TextBody             `json:"text,omitempty"`
	Media       *MediaBody            `json:"media,omitempty"`
	Location    *LocationBody         `json:"location,omitempty"`
	Address     *AddressBody          `json:"address,omitempty"`
	Contacts    *ContactsBody         `json:"contacts,omitempty"`
	Interactive *InteractiveReplyBody `json:"interactive,omitempty"`
	Reaction    *ReactionBody         `json:"reaction,omitempty"`
	Button      *ButtonBody           `json:"button,omitempty"`
	Order       *OrderBody            `json:"order,omitempty"`
}

// TextContent returns the user-authored text this message carries, if any.
// Used as the pipeline's deterministic-pre-check and LLM input: the text
// body, a media caption, a quick-reply button's text, or an interactive
// reply's title; empty for every other type.
func (m *Message) TextContent() string {
	switch {
	case m.Text != nil:
		return m.Text.Body
	case m.Media != nil:
		return m.Media.Caption
	case m.Button != nil:
		return m.Button.Text
	case m.Interactive != nil:
		return m.Interactive.ReplyTitle
	default:
		return ""
	}
}
