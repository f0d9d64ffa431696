package entity

import (
	"time"

	"github.com/google/uuid"
)

// Researcher represents a stored CV for data transfer between layers.
type Researcher struct {
	ID          uuid.UUID    `json:"id"`
	Email       *string      `json:"email"`
	SourceName  string       `json:"source_name"`
	ContentHash string       `json:"content_hash,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	CV          StructuredCV `json:"cv"`
}

// ResearcherSummary is the row shape used by listings and exports.
type ResearcherSummary struct {
	ID               uuid.UUID `json:"id"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Email            *string   `json:"email"`
	Institution      string    `json:"institution"`
	CurrentPosition  string    `json:"current_position"`
	PublicationCount int       `json:"publication_count"`
	LatestDegreeYear *int      `json:"latest_degree_year"`
	SourceName       string    `json:"source_name"`
	CreatedAt        time.Time `json:"created_at"`
}

// Source identifies the document a CV was extracted from.
type Source struct {
	Name        string
	ContentHash string
}
