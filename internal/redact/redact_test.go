package redact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactEmail(t *testing.T) {
	out := Redact("contact: a@b.co for details")
	assert.Contains(t, out, EmailPlaceholder)
	assert.NotContains(t, out, "a@b.co")
}

func TestRedactIDs(t *testing.T) {
	cases := []string{
		"SSN 123-45-6789",
		"SSN 123.45.6789",
		"SSN 123 45 6789",
		"SIN 123-456-789",
		"ID 123456789",
	}
	for _, in := range cases {
		out := Redact(in)
		assert.Contains(t, out, IDPlaceholder, in)
		assert.NotRegexp(t, `\d{3}`, out, in)
	}
}

func TestRedactLeavesOtherNumbers(t *testing.T) {
	in := "Published 2019, pages 101-123, grant 1234567890, phone 555-1234"
	assert.Equal(t, in, Redact(in))
}

func TestRedactHomeAddress(t *testing.T) {
	in := "Jane Doe\nHome Address: 12 Elm Street, Springfield\nOffice: Room 4"
	out := Redact(in)
	assert.Equal(t, "Jane Doe\nHome Address: [ADDRESS REDACTED]\nOffice: Room 4", out)

	out = Redact("HOME ADDRESS - 4 Rue de la Paix")
	assert.Equal(t, "HOME ADDRESS - [ADDRESS REDACTED]", out)
}

func TestRedactOrderIDBeforeEmail(t *testing.T) {
	out, st := RedactWithStats("reach me at x.123-45-6789@mail.com")
	assert.Equal(t, 1, st.IDs)
	assert.NotContains(t, out, "6789")

	out, st = RedactWithStats("Home Address: 123456789 Main Rd, jane@home.org")
	assert.Equal(t, "Home Address: [ADDRESS REDACTED]", out)
	assert.Equal(t, Stats{IDs: 1, Addresses: 1}, st)
}

func TestRedactStats(t *testing.T) {
	_, st := RedactWithStats("a@b.co c@d.org 123-45-6789 Home Address: x")
	assert.Equal(t, 2, st.Emails)
	assert.Equal(t, 1, st.IDs)
	assert.Equal(t, 1, st.Addresses)
	assert.Equal(t, 4, st.Total())
}

func TestFirstEmail(t *testing.T) {
	assert.Equal(t, "jane.doe@uni.edu", FirstEmail("JANE DOE\njane.doe@uni.edu | other@x.io"))
	assert.Equal(t, "", FirstEmail("no contact"))
}

var idempotenceCorpus = []string{
	"",
	"plain text",
	"a@b.co",
	"a@b@c.com",
	"123-45-6789-12-3456",
	"111-22-3333-444-55-6666",
	"x.123.45.6789@d.com",
	"123-45-6789x@y.com",
	"Home Address: a@b.co 123456789",
	"Home Address\nnext line",
	"Home Addressee: not a label",
	"home address:[ADDRESS REDACTED]",
	"12345678 9@a.co",
	"[ID REDACTED]123456789",
	"Email: JANE@UNI.EDU, ID 987 65 4321\n[PAGE 1 END]",
}

func TestRedactIdempotent(t *testing.T) {
	for _, in := range idempotenceCorpus {
		once := Redact(in)
		assert.Equal(t, once, Redact(once), "input %q", in)
	}
}

func TestRedactRemovesAllPatterns(t *testing.T) {
	for _, in := range idempotenceCorpus {
		out := Redact(in)
		assert.False(t, email.MatchString(out), "email left in %q", out)
		assert.False(t, groupedID.MatchString(out), "grouped id left in %q", out)
		assert.False(t, bareID.MatchString(out), "bare id left in %q", out)
	}
}

func FuzzRedactIdempotent(f *testing.F) {
	for _, in := range idempotenceCorpus {
		f.Add(in)
	}
	f.Fuzz(func(t *testing.T, in string) {
		once := Redact(in)
		if twice := Redact(once); twice != once {
			t.Fatalf("not idempotent:\n in: %q\n 1x: %q\n 2x: %q", in, once, twice)
		}
		if strings.Contains(in, "@") && email.MatchString(once) {
			t.Fatalf("email survived: %q", once)
		}
	})
}
