package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// particles stay lowercase wherever they appear in a name.
var particles = map[string]struct{}{
	"de": {}, "von": {}, "van": {}, "der": {},
	"den": {}, "la": {}, "le": {}, "du": {},
}

// Name canonicalizes a human-entered name: "JOHN VAN DER BERG" -> "John van der Berg",
// "anne-marie DU pont" -> "Anne-Marie du Pont".
func Name(raw string) string {
	parts := strings.Fields(strings.ReplaceAll(raw, "-", " - "))
	for i, p := range parts {
		if p == "-" {
			continue
		}
		p = strings.ToLower(p)
		if _, ok := particles[p]; !ok {
			p = upperFirst(p)
		}
		parts[i] = p
	}
	out := strings.Join(parts, " ")
	return strings.ReplaceAll(out, " - ", "-")
}

// NamePtr applies Name to a non-nil value; empty results become nil.
func NamePtr(raw *string) *string {
	if raw == nil {
		return nil
	}
	n := Name(*raw)
	if n == "" {
		return nil
	}
	return &n
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToTitle(r)) + s[size:]
}

// Email lowercases and trims an address for use as a uniqueness key.
func Email(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
