package services

import "regexp"

// piiPattern pairs a compiled regex with the tag that replaces any match.
// Grounded on the anonymizer.go regex-pattern-table shape: a flat list
// evaluated once per string, deterministic, no AI-assisted tier — spec.md
// scopes PII detection to a fixed regex set and nothing beyond it.
type piiPattern struct {
	re  *regexp.Regexp
	tag string
}

var piiPatterns = []piiPattern{
	// CPF: 11 digits, dotted/dashed or bare.
	{regexp.MustCompile(`\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`), "[CPF]"},
	// CNPJ: 14 digits, dotted/slashed/dashed or bare.
	{regexp.MustCompile(`\b\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}\b`), "[CNPJ]"},
	// Email.
	{regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[\w.-]+\b`), "[EMAIL]"},
	// Brazilian phone: optional +55, DDD, 8-9 digit number, common separators.
	{regexp.MustCompile(`\(?\+?55\)?[\s-]?\(?\d{2}\)?[\s-]?\d{4,5}-?\d{4}\b`), "[PHONE]"},
	// Generic E.164-ish phone, at least 10 digits.
	{regexp.MustCompile(`\+?\d{10,15}\b`), "[PHONE]"},
}

// MaskPII substitutes CPF, CNPJ, email, and phone-shaped substrings with
// opaque tags. Applied at every boundary that leaves the process: LLM
// calls, logs, exports. CPF/CNPJ patterns run before the phone patterns
// so an 11-digit CPF is never re-tagged as a phone number.
func MaskPII(text string) string {
	masked := text
	for _, p := range piiPatterns {
		masked = p.re.ReplaceAllString(masked, p.tag)
	}
	return masked
}

// MaskHistory masks and truncates a conversation history to the last k
// entries, matching the pipeline's "masked last K=5 history entries"
// contract (spec.md §4.6).
func MaskHistory(entries []string, k int) []string {
	if len(entries) > k {
		entries = entries[len(entries)-k:]
	}
	masked := make([]string, len(entries))
	for i, e := range entries {
		masked[i] = MaskPII(e)
	}
	return masked
}
