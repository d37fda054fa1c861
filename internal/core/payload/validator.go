package payload

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

var e164Pattern = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)

const (
	maxTextChars      = 4096
	maxTextBytes      = 4096
	maxCaptionChars   = 1024
	maxButtonTitle    = 20
	maxButtons        = 3
	maxListItems      = 10
	maxHeaderFooter   = 60
	maxIdempotencyKey = 255
)

// mimeAllowList is the per-media-kind MIME type allow-list spec.md §4.7
// requires. Media sent by id rather than mime-carrying link may omit the
// type entirely (the gateway already validated it at upload time), so an
// empty MimeType passes; a non-empty one must appear in its kind's list.
var mimeAllowList = map[string][]string{
	"image":    {"image/jpeg", "image/png", "image/webp"},
	"video":    {"video/mp4", "video/3gpp"},
	"audio":    {"audio/aac", "audio/mp4", "audio/mpeg", "audio/amr", "audio/ogg"},
	"document": {"application/pdf", "application/vnd.ms-excel", "application/msword", "text/plain"},
	"sticker":  {"image/webp"},
}

// Validate is total: it returns (ok, message) for every OutboundMessage,
// never panics. construction (the Build* functions) is assumed correct;
// Validate exists to catch plan data that violates the provider's wire
// constraints before a byte is sent.
func Validate(m OutboundMessage) (ok bool, msg string) {
	if !e164Pattern.MatchString(m.To) {
		return false, "recipient is not a valid E.164 number"
	}

	switch m.Type {
	case "text":
		return validateText(m.Text)
	case "image", "video", "audio", "document", "sticker":
		return validateMedia(m)
	case "location":
		return validateLocation(m.Location)
	case "address":
		return validateAddress(m.Address)
	case "contacts":
		return validateContacts(m.Contacts)
	case "interactive":
		return validateInteractive(m.Interactive)
	case "reaction":
		return validateReaction(m.Reaction)
	case "template":
		return validateTemplate(m.Template)
	default:
		return false, fmt.Sprintf("unsupported message type %q", m.Type)
	}
}

func validateText(t *TextContent) (bool, string) {
	if t == nil {
		return false, "text message missing text content"
	}
	if t.Body == "" {
		return false, "text body must not be empty"
	}
	if utf8.RuneCountInString(t.Body) > maxTextChars {
		return false, "text body exceeds 4096 characters"
	}
	if len(t.Body) > maxTextBytes {
		return false, "text body exceeds 4096 UTF-8 bytes"
	}
	return true, ""
}

func validateMedia(m OutboundMessage) (bool, string) {
	var content *MediaContent
	switch m.Type {
	case "image":
		content = m.Image
	case "video":
		content = m.Video
	case "audio":
		content = m.Audio
	case "document":
		content = m.Document
	case "sticker":
		content = m.Sticker
	}
	if content == nil {
		return false, fmt.Sprintf("%s message missing content", m.Type)
	}
	if content.ID == "" && content.Link == "" {
		return false, fmt.Sprintf("%s message requires id or link", m.Type)
	}
	if utf8.RuneCountInString(content.Caption) > maxCaptionChars {
		return false, "caption exceeds 1024 characters"
	}
	if content.MimeType != "" {
		allowed := mimeAllowList[m.Type]
		found := false
		for _, mt := range allowed {
			if mt == content.MimeType {
				found = true
				break
			}
		}
		if !found {
			return false, fmt.Sprintf("mime type %q is not allowed for %s messages", content.MimeType, m.Type)
		}
	}
	return true, ""
}

func validateLocation(l *LocationContent) (bool, string) {
	if l == nil {
		return false, "location message missing content"
	}
	if l.Latitude < -90 || l.Latitude > 90 {
		return false, "latitude out of range"
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return false, "longitude out of range"
	}
	return true, ""
}

// validateAddress requires at least one field to be populated; WhatsApp
// address messages have no individually mandatory field.
func validateAddress(a *AddressContent) (bool, string) {
	if a == nil {
		return false, "address message missing content"
	}
	if a.Street == "" && a.City == "" && a.State == "" && a.ZipCode == "" &&
		a.CountryCode == "" && a.Country == "" && a.Notes == "" {
		return false, "address message requires at least one field"
	}
	return true, ""
}

func validateContacts(cs []ContactContent) (bool, string) {
	if len(cs) == 0 {
		return false, "contacts message requires at least one contact"
	}
	for _, c := range cs {
		if c.Name.FormattedName == "" {
			return false, "contact missing formatted_name"
		}
	}
	return true, ""
}

func validateInteractive(i *InteractiveContent) (bool, string) {
	if i == nil {
		return false, "interactive message missing content"
	}
	if i.Body.Text == "" {
		return false, "interactive message requires a body text"
	}
	if i.Header != nil && utf8.RuneCountInString(i.Header.Text) > maxHeaderFooter {
		return false, "interactive header exceeds 60 characters"
	}
	if i.Footer != nil && utf8.RuneCountInString(i.Footer.Text) > maxHeaderFooter {
		return false, "interactive footer exceeds 60 characters"
	}

	switch i.Type {
	case "button":
		return validateInteractiveButton(i.Action)
	case "list":
		return validateInteractiveList(i.Action)
	case "location_request_message":
		return validateDisjointAction(i.Action, wantName)
	case "cta_url", "flow":
		return validateDisjointAction(i.Action, wantNameAndParams)
	default:
		return false, fmt.Sprintf("unsupported interactive sub-type %q", i.Type)
	}
}

func validateInteractiveButton(a InteractiveAction) (bool, string) {
	if len(a.Sections) > 0 || a.Button != "" || a.Name != "" {
		return false, "button interactive must not set list or flow fields"
	}
	if len(a.Buttons) == 0 {
		return false, "button interactive requires at least one button"
	}
	if len(a.Buttons) > maxButtons {
		return false, "interactive button message allows at most 3 buttons"
	}
	for _, b := range a.Buttons {
		if utf8.RuneCountInString(b.Reply.Title) > maxButtonTitle {
			return false, "button title exceeds 20 characters"
		}
	}
	return true, ""
}

func validateInteractiveList(a InteractiveAction) (bool, string) {
	if len(a.Buttons) > 0 || a.Name != "" {
		return false, "list interactive must not set button or flow fields"
	}
	if a.Button == "" {
		return false, "list interactive requires a button label"
	}
	total := 0
	for _, s := range a.Sections {
		total += len(s.Rows)
	}
	if total == 0 {
		return false, "list interactive requires at least one row"
	}
	if total > maxListItems {
		return false, "list interactive allows at most 10 items"
	}
	return true, ""
}

type disjointWant int

const (
	wantName disjointWant = iota
	wantNameAndParams
)

func validateDisjointAction(a InteractiveAction, want disjointWant) (bool, string) {
	if len(a.Buttons) > 0 || len(a.Sections) > 0 || a.Button != "" {
		return false, "this interactive sub-type must not set button or list fields"
	}
	if a.Name == "" {
		return false, "this interactive sub-type requires an action name"
	}
	if want == wantNameAndParams && len(a.Parameters) == 0 {
		return false, "this interactive sub-type requires action parameters"
	}
	return true, ""
}

func validateReaction(r *ReactionContent) (bool, string) {
	if r == nil || r.MessageID == "" {
		return false, "reaction requires a target message_id"
	}
	return true, ""
}

func validateTemplate(t *TemplateContent) (bool, string) {
	if t == nil || t.Name == "" {
		return false, "template message requires a name"
	}
	if t.Language.Code == "" {
		return false, "template message requires a language code"
	}
	return true, ""
}

// ValidateIdempotencyKey enforces the ≤255 char bound spec.md §4.7 names
// for the dispatcher's idempotency key, kept here so every wire-format
// constraint lives in one file.
func ValidateIdempotencyKey(key string) (bool, string) {
	if key == "" {
		return false, "idempotency key must not be empty"
	}
	if len(key) > maxIdempotencyKey {
		return false, "idempotency key exceeds 255 characters"
	}
	return true, ""
}
