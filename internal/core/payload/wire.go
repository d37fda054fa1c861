// Package payload builds and validates outbound WhatsApp Cloud API
// message payloads (C7). Builders never raise; Validate is total.
package payload

// OutboundMessage is the wire envelope for every outbound message type.
// Exactly one content field is populated, matching the Type discriminator.
type OutboundMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`

	Text        *TextContent        `json:"text,omitempty"`
	Image       *MediaContent       `json:"image,omitempty"`
	Video       *MediaContent       `json:"video,omitempty"`
	Audio       *MediaContent       `json:"audio,omitempty"`
	Document    *MediaContent       `json:"document,omitempty"`
	Sticker     *MediaContent       `json:"sticker,omitempty"`
	Location    *LocationContent    `json:"location,omitempty"`
	Address     *AddressContent     `json:"address,omitempty"`
	Contacts    []ContactContent    `json:"contacts,omitempty"`
	Interactive *InteractiveContent `json:"interactive,omitempty"`
	Reaction    *ReactionContent    `json:"reaction,omitempty"`
	Template    *TemplateContent    `json:"template,omitempty"`
}

type TextContent struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

// MediaContent references media by id (uploaded) or link (hosted URL).
// Builders in this package set only ID (copied from the media id) and
// never Link; media without an id leaves ID empty and fails Validate.
type MediaContent struct {
	ID       string `json:"id,omitempty"`
	Link     string `json:"link,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`

	// MimeType is carried for Validate's MIME allow-list check only; the
	// Cloud API identifies media by ID/Link, not by this field, so it is
	// never serialized to the wire.
	MimeType string `json:"-"`
}

type LocationContent struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// AddressContent shares a street address, sent as a loose bag of parts
// rather than a fully-required record; Validate requires at least one
// field to be populated.
type AddressContent struct {
	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	ZipCode     string `json:"zip_code,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Country     string `json:"country,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type ContactContent struct {
	Name struct {
		FormattedName string `json:"formatted_name"`
	} `json:"name"`
	Phones []struct {
		Phone string `json:"phone"`
	} `json:"phones,omitempty"`
}

// InteractiveContent covers button, list, flow, cta_url, and
// location_request sub-types. Each sub-type requires a disjoint field
// set on Action; Validate rejects any crossover (e.g. Buttons set on a
// location_request message).
type InteractiveContent struct {
	Type   string              `json:"type"`
	Header *InteractiveHeader  `json:"header,omitempty"`
	Body   InteractiveBody     `json:"body"`
	Footer *InteractiveFooter  `json:"footer,omitempty"`
	Action InteractiveAction   `json:"action"`
}

type InteractiveHeader struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type InteractiveBody struct {
	Text string `json:"text"`
}

type InteractiveFooter struct {
	Text string `json:"text"`
}

// InteractiveAction is a union of the fields valid for one sub-type:
// Buttons (button), Button+Sections (list), Name+Parameters (flow,
// cta_url, location_request).
type InteractiveAction struct {
	Buttons    []InteractiveButton `json:"buttons,omitempty"`
	Button     string              `json:"button,omitempty"`
	Sections   []ListSection       `json:"sections,omitempty"`
	Name       string              `json:"name,omitempty"`
	Parameters map[string]string   `json:"parameters,omitempty"`
}

type InteractiveButton struct {
	Type  string `json:"type"`
	Reply struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"reply"`
}

type ListSection struct {
	Title string    `json:"title,omitempty"`
	Rows  []ListRow `json:"rows"`
}

type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type ReactionContent struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type TemplateContent struct {
	Name     string `json:"name"`
	Language struct {
		Code string `json:"code"`
	} `json:"language"`
	Components []map[string]any `json:"components,omitempty"`
}
