package llm

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cv-ingest/internal/common"
)

const sparseResponse = `{
  "personal": {"firstName": "Jane", "lastName": "Doe", "email": "leak@example.com"},
  "publications": [
    {"title": "Title X", "venue": "Journal Y", "publicationYear": 2020, "email": "a@b.co", "phone": "555"}
  ],
  "hobbies": ["chess"]
}`

func TestDecodeCVConformsSparseResponse(t *testing.T) {
	d, err := DecodeCV([]byte(sparseResponse), nil)
	require.NoError(t, err)

	assert.Equal(t, "Jane", *d.CV.Personal.FirstName)
	assert.Nil(t, d.CV.Personal.Email, "model-supplied email is discarded")
	require.Len(t, d.CV.Publications, 1)
	assert.Equal(t, "Title X", *d.CV.Publications[0].Title)
	assert.Equal(t, 2020, *d.CV.Publications[0].PublicationYear)
	assert.Empty(t, d.Issues)

	assert.Contains(t, d.Adjusted, "hobbies(unknown)")
	assert.Contains(t, d.Adjusted, "publications[0].email(unknown)")
	assert.Contains(t, d.Adjusted, "publications[0].phone(unknown)")
	assert.Contains(t, d.Adjusted, "education(missing)")
	assert.Contains(t, d.Adjusted, "personal.nationality(missing)")
}

func TestDecodeCVEncodesEveryKey(t *testing.T) {
	d, err := DecodeCV([]byte(sparseResponse), nil)
	require.NoError(t, err)

	b, err := json.Marshal(d.CV)
	require.NoError(t, err)
	require.NoError(t, ValidateCVJSON(b))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(b, &doc))
	for _, k := range []string{"education", "experience", "grants", "teaching", "supervision", "memberships", "awards", "service"} {
		assert.Equal(t, []any{}, doc[k], k)
	}
	personal := doc["personal"].(map[string]any)
	assert.Len(t, personal, 10)
	assert.Contains(t, personal, "dateOfBirth")
	assert.Nil(t, personal["dateOfBirth"])
}

func TestDecodeCVDropsInvalidRecords(t *testing.T) {
	content := `{
	  "personal": {"firstName": null, "lastName": "Doe"},
	  "publications": [
	    {"title": "Kept", "publicationYear": "2019"},
	    {"title": "No year", "publicationYear": null},
	    {"title": null, "publicationYear": 2001},
	    {"title": "Ancient", "publicationYear": 1066}
	  ],
	  "education": [{"degree": "PhD"}, {"degree": " "}],
	  "grants": [{"title": "Grant A", "amount": "50,000"}]
	}`
	d, err := DecodeCV([]byte(content), nil)
	require.NoError(t, err)

	require.Len(t, d.CV.Publications, 1)
	assert.Equal(t, "Kept", *d.CV.Publications[0].Title)
	assert.Equal(t, 2019, *d.CV.Publications[0].PublicationYear)
	require.Len(t, d.CV.Education, 1)
	require.Len(t, d.CV.Grants, 1)
	assert.InDelta(t, 50000.0, *d.CV.Grants[0].Amount, 0.001)

	require.Len(t, d.Issues, 4)
	assert.Equal(t, "education", d.Issues[0].Collection)
	assert.Equal(t, 1, d.Issues[0].Index)
	assert.Equal(t, "publications", d.Issues[1].Collection)
	assert.Equal(t, 1, d.Issues[1].Index)
	assert.Contains(t, d.Issues[1].Message(), "publicationYear is required")
	assert.Equal(t, 3, d.Issues[3].Index)
	assert.Contains(t, d.Issues[3].Message(), "between 1900 and 2100")
}

func TestDecodeCVWithoutNameIsValidationError(t *testing.T) {
	_, err := DecodeCV([]byte(`{"personal":{"firstName":"","lastName":null}}`), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrValidation)

	var ve common.ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.NotErrorIs(t, err, ErrMalformedResponse)
}

func TestDecodeCVMalformed(t *testing.T) {
	for _, content := range []string{
		"",
		"sorry",
		`{"personal": "Jane Doe"}`,
		`{"personal": {"firstName": "Jane"}, "publications": {"title": "x"}}`,
		`{"personal": {"firstName": 7}}`,
	} {
		_, err := DecodeCV([]byte(content), nil)
		assert.ErrorIs(t, err, ErrMalformedResponse, content)
	}
}
