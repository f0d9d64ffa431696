package entity

// StructuredCV is the canonical structured form of one academic CV.
// Every field is always present when encoded; unknown values are null.
type StructuredCV struct {
	Personal     Personal      `json:"personal"`
	Education    []Education   `json:"education"`
	Publications []Publication `json:"publications"`
	Experience   []Experience  `json:"experience"`
	Grants       []Grant       `json:"grants"`
	Teaching     []Teaching    `json:"teaching"`
	Supervision  []Supervision `json:"supervision"`
	Memberships  []Membership  `json:"memberships"`
	Awards       []Award       `json:"awards"`
	Service      []Service     `json:"service"`
}

// Personal holds identity fields. Email and Phone are never filled by the model;
// Email is set locally from the unredacted text and is the uniqueness key.
type Personal struct {
	FirstName         *string  `json:"firstName"`
	LastName          *string  `json:"lastName"`
	DateOfBirth       *string  `json:"dateOfBirth"`
	Nationality       *string  `json:"nationality"`
	Email             *string  `json:"email"`
	Phone             *string  `json:"phone"`
	CurrentPosition   *string  `json:"currentPosition"`
	Institution       *string  `json:"institution"`
	Department        *string  `json:"department"`
	ResearchInterests []string `json:"researchInterests"`
}

type Education struct {
	Degree      *string `json:"degree"`
	Field       *string `json:"field"`
	Institution *string `json:"institution"`
	Country     *string `json:"country"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
}

// Publication deliberately has no contact fields.
type Publication struct {
	Title           *string `json:"title"`
	Authors         *string `json:"authors"`
	Venue           *string `json:"venue"`
	PublicationYear *int    `json:"publicationYear"`
	DOI             *string `json:"doi"`
	PublicationType *string `json:"publicationType"`
}

type Experience struct {
	Position    *string `json:"position"`
	Institution *string `json:"institution"`
	Department  *string `json:"department"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
}

type Grant struct {
	Title     *string  `json:"title"`
	Funder    *string  `json:"funder"`
	Amount    *float64 `json:"amount"`
	Currency  *string  `json:"currency"`
	Role      *string  `json:"role"`
	StartDate *string  `json:"startDate"`
	EndDate   *string  `json:"endDate"`
}

type Teaching struct {
	Course      *string `json:"course"`
	Institution *string `json:"institution"`
	Level       *string `json:"level"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
}

type Supervision struct {
	Level       *string `json:"level"`
	ThesisTitle *string `json:"thesisTitle"`
	Role        *string `json:"role"`
	Institution *string `json:"institution"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
}

type Membership struct {
	Organization *string `json:"organization"`
	Role         *string `json:"role"`
	StartDate    *string `json:"startDate"`
	EndDate      *string `json:"endDate"`
}

type Award struct {
	Name         *string `json:"name"`
	AwardingBody *string `json:"awardingBody"`
	Date         *string `json:"date"`
}

// Service covers editorial, reviewing and committee roles.
type Service struct {
	Role         *string `json:"role"`
	Organization *string `json:"organization"`
	StartDate    *string `json:"startDate"`
	EndDate      *string `json:"endDate"`
}

// EnsureCollections replaces nil collections with empty ones so they encode as [].
func (cv *StructuredCV) EnsureCollections() {
	if cv.Personal.ResearchInterests == nil {
		cv.Personal.ResearchInterests = []string{}
	}
	if cv.Education == nil {
		cv.Education = []Education{}
	}
	if cv.Publications == nil {
		cv.Publications = []Publication{}
	}
	if cv.Experience == nil {
		cv.Experience = []Experience{}
	}
	if cv.Grants == nil {
		cv.Grants = []Grant{}
	}
	if cv.Teaching == nil {
		cv.Teaching = []Teaching{}
	}
	if cv.Supervision == nil {
		cv.Supervision = []Supervision{}
	}
	if cv.Memberships == nil {
		cv.Memberships = []Membership{}
	}
	if cv.Awards == nil {
		cv.Awards = []Award{}
	}
	if cv.Service == nil {
		cv.Service = []Service{}
	}
}

// Str returns a pointer to s, or nil when s is empty.
func Str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
