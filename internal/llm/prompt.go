package llm

import (
	"strings"
	"unicode/utf8"
)

// BuildSystemPrompt returns the fixed parsing policy sent with every extraction call.
func BuildSystemPrompt() string {
	parts := []string{
		"You are an academic CV parser. Return ONLY JSON that matches the provided JSON Schema.",
		"Every key in the schema MUST be present; use null when a value is unknown. Never omit keys.",
		"Split the person's name into firstName and lastName, ignoring honorific and academic titles (Dr, Prof, Professor, Mr, Mrs, Ms, PhD).",
		"Extract EVERY education entry, whatever the heading style: numbered (1., 2.), lettered (a), b)) or free-form paragraphs.",
		"Extract EVERY distinct work position into 'experience'; do not merge positions held at the same institution.",
		"Represent dates as a four-digit year, or the start year of a range (\"2015-2019\" -> \"2015\"). Never copy free-text dates.",
		"'publicationYear' is an integer year.",
		"NEVER populate email or phone fields; they must always be null.",
		"Text marked [ID REDACTED], [ADDRESS REDACTED] or [EMAIL REDACTED] was removed on purpose; do not guess it.",
		"Lines '[PAGE n END]' are page boundaries, not content.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt wraps the redacted CV text.
func BuildUserPrompt(text string) string {
	var b strings.Builder
	b.WriteString("CV text:\n")
	b.WriteString(strings.TrimSpace(text))
	b.WriteString("\n\nReturn ONLY JSON that matches the provided schema.")
	return b.String()
}

// BuildExtractRequest assembles the model request for already redacted text.
func BuildExtractRequest(redacted, model string) ExtractRequest {
	return ExtractRequest{
		Model:      model,
		System:     BuildSystemPrompt(),
		User:       BuildUserPrompt(redacted),
		SchemaName: CVSchemaName,
		Schema:     BuildCVJSONSchema(),
		TextChars:  utf8.RuneCountInString(redacted),
	}
}

// BoundInput cuts text to at most max characters, preferring the last line break inside the
// limit. It reports whether anything was dropped. max <= 0 disables the bound.
func BoundInput(text string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text, false
	}
	end, n := 0, 0
	for i := range text {
		if n == max {
			end = i
			break
		}
		n++
	}
	cut := text[:end]
	if i := strings.LastIndexByte(cut, '\n'); i > len(cut)/2 {
		cut = cut[:i]
	}
	return cut, true
}
