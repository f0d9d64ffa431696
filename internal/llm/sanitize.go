package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/cv-ingest/internal/common"
	"github.com/joseph-ayodele/cv-ingest/internal/entity"
)

// Issue is a sub-record dropped because required values were missing or invalid.
type Issue struct {
	Collection string                   `json:"collection"`
	Index      int                      `json:"index"`
	Errors     []common.ValidationError `json:"-"`
}

// Message is a one-line description suitable for an event.
func (i Issue) Message() string {
	msgs := make([]string, len(i.Errors))
	for k, e := range i.Errors {
		msgs[k] = e.Field + " " + e.Message
	}
	return fmt.Sprintf("%s[%d] dropped: %s", i.Collection, i.Index, strings.Join(msgs, "; "))
}

// Decoded is a model response that passed the contract, with the records it had to drop.
type Decoded struct {
	CV       entity.StructuredCV
	Issues   []Issue
	Adjusted []string // keys removed or filled to fit the contract
}

// DecodeCV parses, conforms and validates model output.
// Shape problems return ErrMalformedResponse; a record without any name returns a
// common.ValidationError; invalid sub-records are dropped and listed in Issues.
func DecodeCV(content []byte, logger *slog.Logger) (*Decoded, error) {
	if logger == nil {
		logger = slog.Default()
	}

	raw, err := ParseStructuredJSON(string(content))
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var adjusted []string
	conform(doc, BuildCVJSONSchema(), "", &adjusted)
	sort.Strings(adjusted)
	if len(adjusted) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "adjusted", adjusted)
	}

	clean, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := ValidateCVJSON(clean); err != nil {
		return nil, err
	}

	out := &Decoded{Adjusted: adjusted}
	if err := json.Unmarshal(clean, &out.CV); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	p := &out.CV.Personal
	p.Email, p.Phone = nil, nil
	p.FirstName, p.LastName = blankToNil(p.FirstName), blankToNil(p.LastName)
	if p.FirstName == nil && p.LastName == nil {
		return nil, common.ValidationError{Field: "personal", Value: nil, Message: "neither firstName nor lastName was extracted"}
	}

	out.Issues = ValidateRecords(&out.CV)
	out.CV.EnsureCollections()
	return out, nil
}

// ValidateRecords drops sub-records missing required values and returns what was dropped.
func ValidateRecords(cv *entity.StructuredCV) []Issue {
	var issues []Issue
	cv.Education = keep("education", cv.Education, &issues, func(e entity.Education, v *common.Validator) {
		v.Field("degree", e.Degree, common.Required)
	})
	cv.Publications = keep("publications", cv.Publications, &issues, func(p entity.Publication, v *common.Validator) {
		v.Field("title", p.Title, common.Required, common.MaxLength(1000))
		v.Field("publicationYear", p.PublicationYear, common.Required, common.YearRange(1900, 2100))
	})
	cv.Experience = keep("experience", cv.Experience, &issues, func(e entity.Experience, v *common.Validator) {
		v.Field("position", e.Position, common.Required)
	})
	cv.Grants = keep("grants", cv.Grants, &issues, func(g entity.Grant, v *common.Validator) {
		v.Field("title", g.Title, common.Required)
	})
	cv.Teaching = keep("teaching", cv.Teaching, &issues, func(t entity.Teaching, v *common.Validator) {
		v.Field("course", t.Course, common.Required)
	})
	cv.Supervision = keep("supervision", cv.Supervision, &issues, func(s entity.Supervision, v *common.Validator) {
		v.Field("level", s.Level, common.Required)
	})
	cv.Memberships = keep("memberships", cv.Memberships, &issues, func(m entity.Membership, v *common.Validator) {
		v.Field("organization", m.Organization, common.Required)
	})
	cv.Awards = keep("awards", cv.Awards, &issues, func(a entity.Award, v *common.Validator) {
		v.Field("name", a.Name, common.Required)
	})
	cv.Service = keep("service", cv.Service, &issues, func(s entity.Service, v *common.Validator) {
		v.Field("role", s.Role, common.Required)
	})
	return issues
}

func keep[T any](name string, items []T, issues *[]Issue, check func(T, *common.Validator)) []T {
	if items == nil {
		return nil
	}
	out := make([]T, 0, len(items))
	for i, it := range items {
		v := common.NewValidator()
		check(it, v)
		if v.HasErrors() {
			*issues = append(*issues, Issue{Collection: name, Index: i, Errors: v.Errors()})
			continue
		}
		out = append(out, it)
	}
	return out
}

// conform walks v alongside schema: unknown keys are removed, missing keys are added as
// null (or [] for arrays), and numeric strings are coerced where numbers are expected.
func conform(v any, schema map[string]any, path string, notes *[]string) any {
	switch {
	case hasType(schema, "object"):
		m, ok := v.(map[string]any)
		if !ok {
			return v
		}
		props, _ := schema["properties"].(map[string]any)
		for k := range m {
			if _, ok := props[k]; !ok {
				delete(m, k)
				*notes = append(*notes, path+k+"(unknown)")
			}
		}
		for k, ps := range props {
			sub, _ := ps.(map[string]any)
			if _, ok := m[k]; !ok {
				m[k] = missingValue(sub, path+k+".", notes)
				*notes = append(*notes, path+k+"(missing)")
				continue
			}
			m[k] = conform(m[k], sub, path+k+".", notes)
		}
		return m
	case hasType(schema, "array"):
		arr, ok := v.([]any)
		if !ok {
			return v
		}
		items, _ := schema["items"].(map[string]any)
		for i := range arr {
			arr[i] = conform(arr[i], items, fmt.Sprintf("%s[%d].", strings.TrimSuffix(path, "."), i), notes)
		}
		return arr
	case hasType(schema, "integer"):
		if s, ok := v.(string); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				*notes = append(*notes, strings.TrimSuffix(path, ".")+"(coerced)")
				return n
			}
		}
	case hasType(schema, "number"):
		if s, ok := v.(string); ok {
			s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				*notes = append(*notes, strings.TrimSuffix(path, ".")+"(coerced)")
				return f
			}
		}
	}
	return v
}

func missingValue(schema map[string]any, path string, notes *[]string) any {
	if hasType(schema, "null") {
		return nil
	}
	switch {
	case hasType(schema, "array"):
		return []any{}
	case hasType(schema, "object"):
		return conform(map[string]any{}, schema, path, notes)
	}
	return nil
}

func hasType(schema map[string]any, want string) bool {
	switch t := schema["type"].(type) {
	case string:
		return t == want
	case []string:
		for _, s := range t {
			if s == want {
				return true
			}
		}
	case []any:
		for _, s := range t {
			if s == want {
				return true
			}
		}
	}
	return false
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
