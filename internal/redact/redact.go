// Package redact removes identification numbers, home addresses and email addresses
// from CV text before it leaves the process.
package redact

import (
	"regexp"
	"strings"
)

const (
	IDPlaceholder      = "[ID REDACTED]"
	AddressPlaceholder = "[ADDRESS REDACTED]"
	EmailPlaceholder   = "[EMAIL REDACTED]"
)

// Patterns are applied in this order: grouped IDs, bare IDs, address lines, emails.
// IDs go first so a number inside an address or a local part is classified as an ID.
var (
	groupedID = regexp.MustCompile(`\b(?:\d{3}[-. ]\d{2}[-. ]\d{4}|\d{3}[-. ]\d{3}[-. ]\d{3})\b`)
	bareID    = regexp.MustCompile(`\b\d{9}\b`)
	address   = regexp.MustCompile(`(?i)(\bhome address\b[ \t]*[:\-]?[ \t]*)([^\n]+)`)
	email     = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
)

// Stats counts replaced spans per category.
type Stats struct {
	IDs       int `json:"ids"`
	Addresses int `json:"addresses"`
	Emails    int `json:"emails"`
}

// Total is the number of spans replaced.
func (s Stats) Total() int { return s.IDs + s.Addresses + s.Emails }

// Redact replaces sensitive spans with fixed placeholders. Redact(Redact(x)) == Redact(x).
func Redact(text string) string {
	out, _ := RedactWithStats(text)
	return out
}

// RedactWithStats is Redact plus per-category replacement counts.
func RedactWithStats(text string) (string, Stats) {
	var st Stats

	text = groupedID.ReplaceAllStringFunc(text, func(string) string {
		st.IDs++
		return IDPlaceholder
	})
	text = bareID.ReplaceAllStringFunc(text, func(string) string {
		st.IDs++
		return IDPlaceholder
	})
	text = address.ReplaceAllStringFunc(text, func(m string) string {
		sub := address.FindStringSubmatch(m)
		if strings.TrimSpace(sub[2]) == AddressPlaceholder {
			return m
		}
		st.Addresses++
		return sub[1] + AddressPlaceholder
	})
	text = email.ReplaceAllStringFunc(text, func(string) string {
		st.Emails++
		return EmailPlaceholder
	})
	return text, st
}

// FirstEmail returns the first email-shaped token in text, or "".
func FirstEmail(text string) string {
	return email.FindString(text)
}
