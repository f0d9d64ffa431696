package normalize

import (
	"github.com/joseph-ayodele/cv-ingest/internal/entity"
)

// ApplyCV normalizes names, the email key and every date field of cv in place.
func ApplyCV(cv *entity.StructuredCV) {
	p := &cv.Personal
	p.FirstName = NamePtr(p.FirstName)
	p.LastName = NamePtr(p.LastName)
	p.DateOfBirth = DatePtr(p.DateOfBirth)
	if p.Email != nil {
		e := Email(*p.Email)
		p.Email = entity.Str(e)
	}

	for i := range cv.Education {
		e := &cv.Education[i]
		e.StartDate, e.EndDate = DatePtr(e.StartDate), DatePtr(e.EndDate)
	}
	for i := range cv.Experience {
		e := &cv.Experience[i]
		e.StartDate, e.EndDate = DatePtr(e.StartDate), DatePtr(e.EndDate)
	}
	for i := range cv.Grants {
		g := &cv.Grants[i]
		g.StartDate, g.EndDate = DatePtr(g.StartDate), DatePtr(g.EndDate)
	}
	for i := range cv.Teaching {
		t := &cv.Teaching[i]
		t.StartDate, t.EndDate = DatePtr(t.StartDate), DatePtr(t.EndDate)
	}
	for i := range cv.Supervision {
		s := &cv.Supervision[i]
		s.StartDate, s.EndDate = DatePtr(s.StartDate), DatePtr(s.EndDate)
	}
	for i := range cv.Memberships {
		m := &cv.Memberships[i]
		m.StartDate, m.EndDate = DatePtr(m.StartDate), DatePtr(m.EndDate)
	}
	for i := range cv.Awards {
		cv.Awards[i].Date = DatePtr(cv.Awards[i].Date)
	}
	for i := range cv.Service {
		s := &cv.Service[i]
		s.StartDate, s.EndDate = DatePtr(s.StartDate), DatePtr(s.EndDate)
	}
}
