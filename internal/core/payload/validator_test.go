package payload

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validText(to string) OutboundMessage {
	return OutboundMessage{MessagingProduct: "whatsapp", To: to, Type: "text", Text: &TextContent{Body: "hello"}}
}

func TestValidate_RejectsInvalidRecipient(t *testing.T) {
	ok, msg := Validate(validText("not-a-number"))
	assert.False(t, ok)
	assert.Contains(t, msg, "E.164")
}

func TestValidate_AcceptsValidE164Recipient(t *testing.T) {
	ok, _ := Validate(validText("15551234567"))
	assert.True(t, ok)
}

func TestValidate_Text_EmptyBodyRejected(t *testing.T) {
	msg := validText("15551234567")
	msg.Text.Body = ""
	ok, reason := Validate(msg)
	assert.False(t, ok)
	assert.Contains(t, reason, "empty")
}

func TestValidate_Text_NilContentRejected(t *testing.T) {
	msg := OutboundMessage{To: "15551234567", Type: "text"}
	ok, _ := Validate(msg)
	assert.False(t, ok)
}

func TestValidate_Text_OverLongBodyRejected(t *testing.T) {
	msg := validText("15551234567")
	msg.Text.Body = strings.Repeat("a", 4097)
	ok, reason := Validate(msg)
	assert.False(t, ok)
	assert.Contains(t, reason, "4096")
}

func TestValidate_Media_RequiresIDOrLink(t *testing.T) {
	msg := OutboundMessage{To: "15551234567", Type: "image", Image: &MediaContent{}}
	ok, reason := Validate(msg)
	assert.False(t, ok)
	assert.Contains(t, reason, "id or link")
}

func TestValidate_Media_AcceptsIDOnly(t *testing.T) {
	msg := OutboundMessage{To: "15551234567", Type: "image", Image: &MediaContent{ID: "media-123"}}
	ok, _ := Validate(msg)
	assert.True(t, ok)
}

func TestValidate_Media_CaptionTooLongRejected(t *testing.T) {
	msg := OutboundMessage{To: "15551234567", Type: "document", Document: &MediaContent{ID: "x", Caption: strings.Repeat("a", 1025)}}
	ok, reason := Validate(msg)
	assert.False(t, ok)
	assert.Contains(t, reason, "1024")
}

func TestValidate_Media_DisallowedMimeTypeRejected(t *testing.T) {
	msg := OutboundMessage{To: "15551234567", Type: "image", Image: &MediaContent{ID: "x", MimeType: "application/zip"}}
	ok, reason := Validate(msg)
	assert.False(t, ok)
	assert.Contains(t, reason, "mime type")
}

func TestValidate_Media_AllowedMimeTypeAccepted(t *testing.T) {
	msg := OutboundMessage{To: "15551234567", Type: "sticker", Sticker: &MediaContent{ID: "x", MimeType: "image/webp"}}
	ok, _ := Validate(msg)
	assert.True(t, ok)
}

func TestValidate_Location_OutOfRangeRejected(t *testing.T) {
	ok, reason := Validate(OutboundMessage{To: "15551234567", Type: "location", Location: &LocationContent{Latitude: 95, Longitude: 0}})
	assert.False(t, ok)
	assert.Contains(t, reason, "latitude")

	ok, reason = Validate(OutboundMessage{To: "15551234567", Type: "location", Location: &LocationContent{Latitude: 0, Longitude: 200}})
	assert.False(t, ok)
	assert.Contains(t, reason, "longitude")
}

func TestValidate_Location_ValidCoordinatesAccepted(t *testing.T) {
	ok, _ := Validate(OutboundMessage{To: "15551234567", Type: "location", Location: &LocationContent{Latitude: 37.7749, Longitude: -122.4194}})
	assert.True(t, ok)
}

func TestValidate_Address_EmptyRejected(t *testing.T) {
	ok, reason := Validate(OutboundMessage{To: "15551234567", Type: "address", Address: &AddressContent{}})
	assert.False(t, ok)
	assert.Contains(t, reason, "at least one field")
}

func TestValidate_Address_NilContentRejected(t *testing.T) {
	ok, _ := Validate(OutboundMessage{To: "15551234567", Type: "address"})
	assert.False(t, ok)
}

func TestValidate_Address_SingleFieldAccepted(t *testing.T) {
	ok, _ := Validate(OutboundMessage{To: "15551234567", Type: "address", Address: &AddressContent{City: "Springfield"}})
	assert.True(t, ok)
}

func TestValidate_Contacts_RequiresAtLeastOneEntry(t *testing.T) {
	ok, reason := Validate(OutboundMessage{To: "15551234567", Type: "contacts", Contacts: []ContactContent{}})
	assert.False(t, ok)
	assert.Contains(t, reason, "at least one contact")
}

func TestValidate_Contacts_RequiresFormattedName(t *testing.T) {
	ok, reason := Validate(OutboundMessage{To: "15551234567", Type: "contacts", Contacts: []ContactContent{{}}})
	assert.False(t, ok)
	assert.Contains(t, reason, "formatted_name")
}

func TestValidate_Interactive_Button_RejectsOverThreeButtons(t *testing.T) {
	action := InteractiveAction{Buttons: make([]InteractiveButton, 4)}
	for i := range action.Buttons {
		action.Buttons[i].Reply.Title = "ok"
	}
	msg := OutboundMessage{To: "15551234567", Type: "interactive", Interactive: &InteractiveContent{
		Type: "button", Body: InteractiveBody{Text: "choose one"}, Action: action,
	}}
	ok, reason := Validate(msg)
	assert.False(t, ok)
	assert.Contains(t, reason, "3 buttons")
}

func TestValidate_Interactive_Button_RejectsCrossedListFields(t *testing.T) {
	msg := OutboundMessage{To: "15551234567", Type: "interactive", Interactive: &InteractiveContent{
		Type: "button",
		Body: InteractiveBody{Text: "choose"},
		Action: InteractiveAction{
			Buttons:  []InteractiveButton{{}},
			Sections: []ListSection{{Rows: []ListRow{{ID: "1", Title: "row"}}}},
		},
	}}
	ok, reason := Validate(msg)
	assert.False(t, ok)
	assert.Contains(t, reason, "must not set list or flow fields")
}

func TestValidate_Interactive_List_RequiresRows(t *testing.T) {
	msg := OutboundMessage{To: "15551234567", Type: "interactive", Interactive: &InteractiveContent{
		Type: "list",
		Body: InteractiveBody{Text: "pick one"},
		Action: InteractiveAction{
			Button:   "Open",
			Sections: []ListSection{{Rows: nil}},
		},
	}}
	ok, reason := Validate(msg)
	assert.False(t, ok)
	assert.Contains(t, reason, "at least one row")
}

func TestValidate_Interactive_List_RejectsOverTenItems(t *testing.T) {
	rows := make([]ListRow, 11)
	for i := range rows {
		rows[i] = ListRow{ID: "id", Title: "row"}
	}
	msg := OutboundMessage{To: "15551234567", Type: "interactive", Interactive: &InteractiveContent{
		Type: "list",
		Body: InteractiveBody{Text: "pick one"},
		Action: InteractiveAction{
			Button:   "Open",
			Sections: []ListSection{{Rows: rows}},
		},
	}}
	ok, reason := Validate(msg)
	assert.False(t, ok)
	assert.Contains(t, reason, "10 items")
}

func TestValidate_Interactive_CTAURL_RequiresActionName(t *testing.T) {
	msg := OutboundMessage{To: "15551234567", Type: "interactive", Interactive: &InteractiveContent{
		Type:   "cta_url",
		Body:   InteractiveBody{Text: "visit us"},
		Action: InteractiveAction{Parameters: map[string]string{"url": "https://example.com"}},
	}}
	ok, reason := Validate(msg)
	assert.False(t, ok)
	assert.Contains(t, reason, "action name")
}

func TestValidate_Interactive_LocationRequest_NeedsOnlyName(t *testing.T) {
	msg := OutboundMessage{To: "15551234567", Type: "interactive", Interactive: &InteractiveContent{
		Type:   "location_request_message",
		Body:   InteractiveBody{Text: "share your location"},
		Action: InteractiveAction{Name: "send_location"},
	}}
	ok, _ := Validate(msg)
	assert.True(t, ok)
}

func TestValidate_Interactive_UnsupportedSubType(t *testing.T) {
	msg := OutboundMessage{To: "15551234567", Type: "interactive", Interactive: &InteractiveContent{
		Type: "unknown_thing",
		Body: InteractiveBody{Text: "x"},
	}}
	ok, reason := Validate(msg)
	assert.False(t, ok)
	assert.Contains(t, reason, "unsupported interactive sub-type")
}

func TestValidate_Reaction_RequiresMessageID(t *testing.T) {
	ok, reason := Validate(OutboundMessage{To: "15551234567", Type: "reaction", Reaction: &ReactionContent{Emoji: "👍"}})
	assert.False(t, ok)
	assert.Contains(t, reason, "message_id")
}

func TestValidate_Template_RequiresNameAndLanguage(t *testing.T) {
	ok, reason := Validate(OutboundMessage{To: "15551234567", Type: "template", Template: &TemplateContent{}})
	assert.False(t, ok)
	assert.Contains(t, reason, "name")
}

func TestValidate_UnsupportedType(t *testing.T) {
	ok, reason := Validate(OutboundMessage{To: "15551234567", Type: "carrier_pigeon"})
	assert.False(t, ok)
	assert.Contains(t, reason, "unsupported message type")
}

func TestValidateIdempotencyKey_RejectsEmpty(t *testing.T) {
	ok, reason := ValidateIdempotencyKey("")
	assert.False(t, ok)
	assert.Contains(t, reason, "empty")
}

func TestValidateIdempotencyKey_RejectsOverLong(t *testing.T) {
	ok, reason := ValidateIdempotencyKey(strings.Repeat("k", 256))
	assert.False(t, ok)
	assert.Contains(t, reason, "255")
}

func TestValidateIdempotencyKey_AcceptsWithinBound(t *testing.T) {
	ok, _ := ValidateIdempotencyKey("wamid.abc123")
	assert.True(t, ok)
}
