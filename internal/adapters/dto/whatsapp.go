// Package dto contains data transfer objects for the WhatsApp Cloud API.
// Separating DTOs from handlers and services prevents import cycles.
package dto

import (
	"strconv"
	"time"

	"github.com/wagateway/core/internal/core/domain"
)

// WebhookRequest is the top-level webhook payload WhatsApp Cloud API
// sends for every subscribed field change.
// Ref: https://developers.facebook.com/docs/whatsapp/cloud-api/webhooks
type WebhookRequest struct {
	Object string  `json:"object"` // always "whatsapp_business_account"
	Entry  []Entry `json:"entry"`
}

// Entry represents a single WABA's webhook events.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change wraps one field's value payload.
type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value carries the actual messages and statuses for one change.
type Value struct {
	MessagingProduct string     `json:"messaging_product"`
	Metadata         Metadata   `json:"metadata"`
	Contacts         []Contact  `json:"contacts,omitempty"`
	Messages         []Message  `json:"messages,omitempty"`
	Statuses         []Status   `json:"statuses,omitempty"`
}

// Metadata identifies the business phone number this event arrived on.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the sender's profile as WhatsApp reports it.
type Contact struct {
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
	WaID string `json:"wa_id"`
}

// Message is one inbound WhatsApp message.
type Message struct {
	From      string   `json:"from"`
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Type      string   `json:"type"`

	Text        *TextContent        `json:"text,omitempty"`
	Image       *MediaContent       `json:"image,omitempty"`
	Video       *MediaContent       `json:"video,omitempty"`
	Audio       *MediaContent       `json:"audio,omitempty"`
	Document    *MediaContent       `json:"document,omitempty"`
	Sticker     *MediaContent       `json:"sticker,omitempty"`
	Location    *LocationContent    `json:"location,omitempty"`
	Address     *AddressContent     `json:"address,omitempty"`
	Contacts    []ContactsContent   `json:"contacts,omitempty"`
	Interactive *InteractiveContent `json:"interactive,omitempty"`
	Reaction    *ReactionContent    `json:"reaction,omitempty"`
	Button      *ButtonContent      `json:"button,omitempty"`
	Order       *OrderContent       `json:"order,omitempty"`
}

// TextContent is the body of a text message.
type TextContent struct {
	Body string `json:"body"`
}

// MediaContent is shared by image/video/audio/document/sticker messages.
type MediaContent struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// LocationContent is a shared location.
type LocationContent struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// AddressContent is a shared address, sent as a loose bag of parts rather
// than a fully-required record.
type AddressContent struct {
	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	ZipCode     string `json:"zip_code,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Country     string `json:"country,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// ContactsContent is one shared vCard-like contact.
type ContactsContent struct {
	Name struct {
		FormattedName string `json:"formatted_name"`
	} `json:"name"`
	Phones []struct {
		Phone string `json:"phone"`
	} `json:"phones"`
}

// InteractiveContent is the user's reply to a button or list message.
type InteractiveContent struct {
	Type        string `json:"type"` // "button_reply" | "list_reply"
	ButtonReply *struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"button_reply,omitempty"`
	ListReply *struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"list_reply,omitempty"`
}

// ReactionContent is an emoji reaction to a prior message.
type ReactionContent struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// ButtonContent is a legacy quick-reply template click.
type ButtonContent struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

// OrderContent is a catalog order submission.
type OrderContent struct {
	CatalogID    string `json:"catalog_id"`
	ProductItems []struct {
		ProductRetailerID string  `json:"product_retailer_id"`
		Quantity          int     `json:"quantity"`
		ItemPrice         float64 `json:"item_price"`
		Currency          string  `json:"currency"`
	} `json:"product_items"`
}

// Status is a delivery/read/sent receipt, never a user message.
type Status struct {
	ID     string `json:"id"`
	Status string `json:"status"` // "sent" | "delivered" | "read" | "failed"
}

// FirstMessageID returns the first messages[].id found anywhere in the
// payload, used by webhook admission to compute the inbound event id.
func (w *WebhookRequest) FirstMessageID() string {
	for _, entry := range w.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				if m.ID != "" {
					return m.ID
				}
			}
		}
	}
	return ""
}

// ToDomain normalizes one WhatsApp wire message into domain.Message. The
// wire timestamp is Unix seconds as a string; an unparsable value falls
// back to the zero time rather than failing normalization outright.
func ToDomain(m Message) *domain.Message {
	dm := &domain.Message{
		MessageID:   m.ID,
		ChatID:      m.From,
		FromNumber:  m.From,
		MessageType: messageType(m.Type),
	}
	if secs, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil {
		dm.Timestamp = time.Unix(secs, 0).UTC()
	}

	switch dm.MessageType {
	case domain.MessageTypeText:
		if m.Text != nil {
			dm.Text = &domain.TextBody{Body: m.Text.Body}
		}
	case domain.MessageTypeImage, domain.MessageTypeVideo, domain.MessageTypeAudio,
		domain.MessageTypeDocument, domain.MessageTypeSticker:
		dm.Media = mediaFrom(m)
	case domain.MessageTypeLocation:
		if m.Location != nil {
			dm.Location = &domain.LocationBody{
				Latitude:  m.Location.Latitude,
				Longitude: m.Location.Longitude,
				Name:      m.Location.Name,
				Address:   m.Location.Address,
			}
		}
	case domain.MessageTypeAddress:
		if m.Address != nil {
			dm.Address = &domain.AddressBody{
				Street:      m.Address.Street,
				City:        m.Address.City,
				State:       m.Address.State,
				ZipCode:     m.Address.ZipCode,
				CountryCode: m.Address.CountryCode,
				Country:     m.Address.Country,
				Notes:       m.Address.Notes,
			}
		}
	case domain.MessageTypeContacts:
		dm.Contacts = contactsFrom(m.Contacts)
	case domain.MessageTypeInteractive:
		dm.Interactive = interactiveFrom(m.Interactive)
	case domain.MessageTypeReaction:
		if m.Reaction != nil {
			dm.Reaction = &domain.ReactionBody{MessageID: m.Reaction.MessageID, Emoji: m.Reaction.Emoji}
		}
	case domain.MessageTypeButton:
		if m.Button != nil {
			dm.Button = &domain.ButtonBody{Payload: m.Button.Payload, Text: m.Button.Text}
		}
	case domain.MessageTypeOrder:
		dm.Order = orderFrom(m.Order)
	}

	return dm
}

func messageType(t string) domain.MessageType {
	switch t {
	case "text", "image", "video", "audio", "document", "sticker",
		"location", "address", "contacts", "interactive", "reaction", "button", "order", "system":
		return domain.MessageType(t)
	default:
		return domain.MessageTypeUnknown
	}
}

func mediaFrom(m Message) *domain.MediaBody {
	var src *MediaContent
	switch m.Type {
	case "image":
		src = m.Image
	case "video":
		src = m.Video
	case "audio":
		src = m.Audio
	case "document":
		src = m.Document
	case "sticker":
		src = m.Sticker
	}
	if src == nil {
		return nil
	}
	return &domain.MediaBody{
		MediaID:  src.ID,
		MIMEType: src.MimeType,
		SHA256:   src.SHA256,
		Caption:  src.Caption,
		Filename: src.Filename,
	}
}

func contactsFrom(cs []ContactsContent) *domain.ContactsBody {
	if len(cs) == 0 {
		return nil
	}
	out := &domain.ContactsBody{}
	for _, c := range cs {
		phone := ""
		if len(c.Phones) > 0 {
			phone = c.Phones[0].Phone
		}
		out.Contacts = append(out.Contacts, domain.Contact{Name: c.Name.FormattedName, Phone: phone})
	}
	return out
}

func interactiveFrom(i *InteractiveContent) *domain.InteractiveReplyBody {
	if i == nil {
		return nil
	}
	if i.ButtonReply != nil {
		return &domain.InteractiveReplyBody{ReplyID: i.ButtonReply.ID, ReplyTitle: i.ButtonReply.Title}
	}
	if i.ListReply != nil {
		return &domain.InteractiveReplyBody{ReplyID: i.ListReply.ID, ReplyTitle: i.ListReply.Title}
	}
	return nil
}

func orderFrom(o *OrderContent) *domain.OrderBody {
	if o == nil {
		return nil
	}
	out := &domain.OrderBody{CatalogID: o.CatalogID}
	for _, it := range o.ProductItems {
		out.ProductItems = append(out.ProductItems, domain.OrderItem{
			ProductRetailerID: it.ProductRetailerID,
			Quantity:          it.Quantity,
			ItemPrice:         it.ItemPrice,
			Currency:          it.Currency,
		})
	}
	return out
}
