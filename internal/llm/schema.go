package llm

import "sort"

// CVSchemaName is the name the schema is registered under with the provider.
const CVSchemaName = "structured_cv"

// BuildCVJSONSchema returns the output contract as a JSON-Schema map. Every object lists all
// of its properties as required and forbids extras, so the model must emit each key and use
// null for unknown values. Publications carry no contact fields.
func BuildCVJSONSchema() map[string]any {
	personal := object(map[string]any{
		"firstName":         nullable("string"),
		"lastName":          nullable("string"),
		"dateOfBirth":       nullable("string"),
		"nationality":       nullable("string"),
		"email":             nullable("string"),
		"phone":             nullable("string"),
		"currentPosition":   nullable("string"),
		"institution":       nullable("string"),
		"department":        nullable("string"),
		"researchInterests": map[string]any{"type": []string{"array", "null"}, "items": map[string]any{"type": "string"}},
	})

	return object(map[string]any{
		"personal": personal,
		"education": arrayOf(object(map[string]any{
			"degree":      nullable("string"),
			"field":       nullable("string"),
			"institution": nullable("string"),
			"country":     nullable("string"),
			"startDate":   nullable("string"),
			"endDate":     nullable("string"),
		})),
		"publications": arrayOf(object(map[string]any{
			"title":           nullable("string"),
			"authors":         nullable("string"),
			"venue":           nullable("string"),
			"publicationYear": nullable("integer"),
			"doi":             nullable("string"),
			"publicationType": nullable("string"),
		})),
		"experience": arrayOf(object(map[string]any{
			"position":    nullable("string"),
			"institution": nullable("string"),
			"department":  nullable("string"),
			"startDate":   nullable("string"),
			"endDate":     nullable("string"),
		})),
		"grants": arrayOf(object(map[string]any{
			"title":     nullable("string"),
			"funder":    nullable("string"),
			"amount":    nullable("number"),
			"currency":  nullable("string"),
			"role":      nullable("string"),
			"startDate": nullable("string"),
			"endDate":   nullable("string"),
		})),
		"teaching": arrayOf(object(map[string]any{
			"course":      nullable("string"),
			"institution": nullable("string"),
			"level":       nullable("string"),
			"startDate":   nullable("string"),
			"endDate":     nullable("string"),
		})),
		"supervision": arrayOf(object(map[string]any{
			"level":       nullable("string"),
			"thesisTitle": nullable("string"),
			"role":        nullable("string"),
			"institution": nullable("string"),
			"startDate":   nullable("string"),
			"endDate":     nullable("string"),
		})),
		"memberships": arrayOf(object(map[string]any{
			"organization": nullable("string"),
			"role":         nullable("string"),
			"startDate":    nullable("string"),
			"endDate":      nullable("string"),
		})),
		"awards": arrayOf(object(map[string]any{
			"name":         nullable("string"),
			"awardingBody": nullable("string"),
			"date":         nullable("string"),
		})),
		"service": arrayOf(object(map[string]any{
			"role":         nullable("string"),
			"organization": nullable("string"),
			"startDate":    nullable("string"),
			"endDate":      nullable("string"),
		})),
	})
}

func nullable(t string) map[string]any {
	return map[string]any{"type": []string{t, "null"}}
}

func arrayOf(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

func object(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for k := range props {
		required = append(required, k)
	}
	sort.Strings(required)
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}
