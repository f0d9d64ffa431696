package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cv-ingest/internal/entity"
)

func TestName(t *testing.T) {
	cases := map[string]string{
		"JOHN VAN DER BERG":    "John van der Berg",
		"john van der berg":    "John van der Berg",
		"  maría   DE LA cruz": "María de la Cruz",
		"anne-marie DU PONT":   "Anne-Marie du Pont",
		"JEAN - LUC picard":    "Jean-Luc Picard",
		"LUDWIG VON MISES":     "Ludwig von Mises",
		"o'neil":               "O'neil",
		"":                     "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Name(in), "input %q", in)
	}
}

func TestNameIsIdempotent(t *testing.T) {
	for _, in := range []string{"JOHN VAN DER BERG", "anne-marie du pont", "Le Roux"} {
		once := Name(in)
		assert.Equal(t, once, Name(once))
	}
}

func TestDate(t *testing.T) {
	cases := []struct {
		in   string
		want *string
	}{
		{"2019", ptr("2019-01-01")},
		{"2019-06", ptr("2019-06-01")},
		{"2019-6", ptr("2019-06-01")},
		{"2019-06-15", ptr("2019-06-15")},
		{"graduated in 2005", ptr("2005-01-01")},
		{"Sept 1998 - June 2002", ptr("1998-01-01")},
		{"2019-13", ptr("2019-01-01")},
		{" 2021 ", ptr("2021-01-01")},
		{"unknown", nil},
		{"present", nil},
		{"", nil},
		{"in 1850", nil},
	}
	for _, tc := range cases {
		got := Date(tc.in)
		if tc.want == nil {
			assert.Nil(t, got, "input %q", tc.in)
			continue
		}
		require.NotNil(t, got, "input %q", tc.in)
		assert.Equal(t, *tc.want, *got, "input %q", tc.in)
	}
}

func TestYear(t *testing.T) {
	y := Year(Date("2012-09"))
	require.NotNil(t, y)
	assert.Equal(t, 2012, *y)
	assert.Nil(t, Year(nil))
}

func TestApplyCV(t *testing.T) {
	cv := entity.StructuredCV{
		Personal: entity.Personal{
			FirstName:   ptr("JANE"),
			LastName:    ptr("VAN DER BERG"),
			Email:       ptr("  Jane.Doe@Uni.EDU "),
			DateOfBirth: ptr("born 1980"),
		},
		Education:  []entity.Education{{Degree: ptr("PhD"), StartDate: ptr("2004"), EndDate: ptr("2008-09")}},
		Awards:     []entity.Award{{Name: ptr("Best Paper"), Date: ptr("n/a")}},
		Service:    []entity.Service{{Role: ptr("Reviewer"), StartDate: ptr("since 2015")}},
		Experience: []entity.Experience{{Position: ptr("Lecturer"), EndDate: nil}},
	}
	ApplyCV(&cv)

	assert.Equal(t, "Jane", *cv.Personal.FirstName)
	assert.Equal(t, "van der Berg", *cv.Personal.LastName)
	assert.Equal(t, "jane.doe@uni.edu", *cv.Personal.Email)
	assert.Equal(t, "1980-01-01", *cv.Personal.DateOfBirth)
	assert.Equal(t, "2004-01-01", *cv.Education[0].StartDate)
	assert.Equal(t, "2008-09-01", *cv.Education[0].EndDate)
	assert.Nil(t, cv.Awards[0].Date)
	assert.Equal(t, "2015-01-01", *cv.Service[0].StartDate)
	assert.Nil(t, cv.Experience[0].EndDate)
}
