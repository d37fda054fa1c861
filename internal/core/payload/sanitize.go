package payload

import "regexp"

// Sanitization for logging is a distinct concern from the Decision
// Pipeline's PII masking (internal/core/services/pii.go): phone numbers
// keep their last 4 digits instead of being fully redacted, matching
// spec.md §4.7's log-sanitization bullet.
var (
	cpfPattern   = regexp.MustCompile(`\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`)
	cnpjPattern  = regexp.MustCompile(`\b\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}\b`)
	emailPattern = regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[\w.-]+\b`)
	phonePattern = regexp.MustCompile(`\+?\d{8,15}`)
)

// Sanitize returns a copy of m for logging: in the recipient, the text
// body, the location name and address, the interactive body text and
// media captions, phone numbers are reduced to their last 4 digits and
// emails/CPF/CNPJ replaced with opaque tags. Interactive header/footer,
// button and list titles, contacts, address fields and template
// components are copied unchanged.
func Sanitize(m OutboundMessage) OutboundMessage {
	out := m
	out.To = maskPhoneKeepLast4(m.To)

	if m.Text != nil {
		t := *m.Text
		t.Body = sanitizeText(t.Body)
		out.Text = &t
	}
	if m.Location != nil {
		l := *m.Location
		l.Name = sanitizeText(l.Name)
		l.Address = sanitizeText(l.Address)
		out.Location = &l
	}
	if m.Interactive != nil {
		i := *m.Interactive
		i.Body.Text = sanitizeText(i.Body.Text)
		out.Interactive = &i
	}
	for _, field := range []**MediaContent{&out.Image, &out.Video, &out.Audio, &out.Document, &out.Sticker} {
		if *field != nil {
			c := **field
			c.Caption = sanitizeText(c.Caption)
			*field = &c
		}
	}
	return out
}

func sanitizeText(s string) string {
	s = cpfPattern.ReplaceAllString(s, "[CPF]")
	s = cnpjPattern.ReplaceAllString(s, "[CNPJ]")
	s = emailPattern.ReplaceAllString(s, "[EMAIL]")
	s = phonePattern.ReplaceAllStringFunc(s, maskPhoneKeepLast4)
	return s
}

func maskPhoneKeepLast4(digits string) string {
	if len(digits) <= 4 {
		return digits
	}
	keep := digits[len(digits)-4:]
	masked := make([]byte, 0, len(digits))
	for range digits[:len(digits)-4] {
		masked = append(masked, '*')
	}
	return string(masked) + keep
}
