package payload

import "github.com/wagateway/core/internal/core/domain"

const messagingProduct = "whatsapp"

func envelope(to, msgType string) OutboundMessage {
	return OutboundMessage{MessagingProduct: messagingProduct, To: to, Type: msgType}
}

// BuildText constructs a text message.
func BuildText(to, body string) OutboundMessage {
	m := envelope(to, "text")
	m.Text = &TextContent{Body: body}
	return m
}

func buildMedia(to, msgType string, body *domain.MediaBody) OutboundMessage {
	m := envelope(to, msgType)
	content := &MediaContent{Caption: body.Caption, Filename: body.Filename, MimeType: body.MIMEType}
	if body.MediaID != "" {
		content.ID = body.MediaID
	}
	switch msgType {
	case "image":
		m.Image = content
	case "video":
		m.Video = content
	case "audio":
		m.Audio = content
	case "document":
		m.Document = content
	case "sticker":
		m.Sticker = content
	}
	return m
}

func BuildImage(to string, body *domain.MediaBody) OutboundMessage    { return buildMedia(to, "image", body) }
func BuildVideo(to string, body *domain.MediaBody) OutboundMessage    { return buildMedia(to, "video", body) }
func BuildAudio(to string, body *domain.MediaBody) OutboundMessage    { return buildMedia(to, "audio", body) }
func BuildDocument(to string, body *domain.MediaBody) OutboundMessage { return buildMedia(to, "document", body) }
func BuildSticker(to string, body *domain.MediaBody) OutboundMessage  { return buildMedia(to, "sticker", body) }

// BuildLocation shares a fixed location.
func BuildLocation(to string, loc *domain.LocationBody) OutboundMessage {
	m := envelope(to, "location")
	m.Location = &LocationContent{
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Name:      loc.Name,
		Address:   loc.Address,
	}
	return m
}

// BuildAddress shares a street address.
func BuildAddress(to string, addr *domain.AddressBody) OutboundMessage {
	m := envelope(to, "address")
	m.Address = &AddressContent{
		Street:      addr.Street,
		City:        addr.City,
		State:       addr.State,
		ZipCode:     addr.ZipCode,
		CountryCode: addr.CountryCode,
		Country:     addr.Country,
		Notes:       addr.Notes,
	}
	return m
}

// BuildContacts shares one or more vCard-like contacts.
func BuildContacts(to string, contacts []domain.Contact) OutboundMessage {
	m := envelope(to, "contacts")
	for _, c := range contacts {
		cc := ContactContent{}
		cc.Name.FormattedName = c.Name
		if c.Phone != "" {
			cc.Phones = append(cc.Phones, struct {
				Phone string `json:"phone"`
			}{Phone: c.Phone})
		}
		m.Contacts = append(m.Contacts, cc)
	}
	return m
}

// BuildInteractiveButton constructs an interactive button message
// (≤ 3 buttons, enforced by Validate, not here).
func BuildInteractiveButton(to, bodyText string, options []domain.PlanOption) OutboundMessage {
	m := envelope(to, "interactive")
	buttons := make([]InteractiveButton, 0, len(options))
	for _, o := range options {
		var b InteractiveButton
		b.Type = "reply"
		b.Reply.ID = o.ID
		b.Reply.Title = o.Title
		buttons = append(buttons, b)
	}
	m.Interactive = &InteractiveContent{
		Type:   "button",
		Body:   InteractiveBody{Text: bodyText},
		Action: InteractiveAction{Buttons: buttons},
	}
	return m
}

// BuildInteractiveList constructs an interactive list message, placing
// every option under a single section.
func BuildInteractiveList(to, bodyText, buttonLabel, sectionTitle string, options []domain.PlanOption) OutboundMessage {
	m := envelope(to, "interactive")
	rows := make([]ListRow, 0, len(options))
	for _, o := range options {
		rows = append(rows, ListRow{ID: o.ID, Title: o.Title})
	}
	m.Interactive = &InteractiveContent{
		Type: "list",
		Body: InteractiveBody{Text: bodyText},
		Action: InteractiveAction{
			Button:   buttonLabel,
			Sections: []ListSection{{Title: sectionTitle, Rows: rows}},
		},
	}
	return m
}

// BuildLocationRequest asks the user to share their current location
// (an interactive location_request_message with a send_location action).
func BuildLocationRequest(to, bodyText string) OutboundMessage {
	m := envelope(to, "interactive")
	m.Interactive = &InteractiveContent{
		Type:   "location_request_message",
		Body:   InteractiveBody{Text: bodyText},
		Action: InteractiveAction{Name: "send_location"},
	}
	return m
}

// BuildCTAURL constructs a call-to-action URL button message.
func BuildCTAURL(to, bodyText, buttonText, url string) OutboundMessage {
	m := envelope(to, "interactive")
	m.Interactive = &InteractiveContent{
		Type: "cta_url",
		Body: InteractiveBody{Text: bodyText},
		Action: InteractiveAction{
			Name:       "cta_url",
			Parameters: map[string]string{"display_text": buttonText, "url": url},
		},
	}
	return m
}

// FlowParams names the fixed parameter set a WhatsApp Flow action needs.
type FlowParams struct {
	FlowMessageVersion string
	FlowToken          string
	FlowID             string
	FlowCTA            string
	FlowAction         string
}

// BuildFlow launches a WhatsApp Flow.
func BuildFlow(to, bodyText string, p FlowParams) OutboundMessage {
	m := envelope(to, "interactive")
	m.Interactive = &InteractiveContent{
		Type: "flow",
		Body: InteractiveBody{Text: bodyText},
		Action: InteractiveAction{
			Name: "flow",
			Parameters: map[string]string{
				"flow_message_version": p.FlowMessageVersion,
				"flow_token":           p.FlowToken,
				"flow_id":              p.FlowID,
				"flow_cta":             p.FlowCTA,
				"flow_action":          p.FlowAction,
			},
		},
	}
	return m
}

// BuildReaction reacts to a prior inbound message with an emoji. An empty
// emoji removes a previously sent reaction, per the provider's contract.
func BuildReaction(to, targetMessageID, emoji string) OutboundMessage {
	m := envelope(to, "reaction")
	m.Reaction = &ReactionContent{MessageID: targetMessageID, Emoji: emoji}
	return m
}

// BuildTemplate constructs a pre-approved template message.
func BuildTemplate(to, name, languageCode string, components []map[string]any) OutboundMessage {
	m := envelope(to, "template")
	m.Template = &TemplateContent{Components: components}
	m.Template.Name = name
	m.Template.Language.Code = languageCode
	return m
}

// FromPlan dispatches a MessagePlan to the matching builder. targetMessageID
// is the inbound message a reaction plan applies to; it is ignored for
// every other PlanKind.
func FromPlan(to, targetMessageID string, plan domain.MessagePlan) OutboundMessage {
	switch plan.Kind {
	case domain.PlanKindInteractiveButton:
		return BuildInteractiveButton(to, plan.Text, plan.InteractiveOptions)
	case domain.PlanKindInteractiveList:
		return BuildInteractiveList(to, plan.Text, "Opções", "Opções disponíveis", plan.InteractiveOptions)
	case domain.PlanKindReaction:
		return BuildReaction(to, targetMessageID, plan.ReactionEmoji)
	case domain.PlanKindSticker:
		return buildMedia(to, "sticker", &domain.MediaBody{MediaID: plan.StickerID})
	default:
		return BuildText(to, plan.Text)
	}
}
