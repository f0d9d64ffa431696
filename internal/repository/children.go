package repository

import (
	"github.com/joseph-ayodele/cv-ingest/internal/entity"
)

type column struct {
	name    string
	sqlType string
}

func text(name string) column { return column{name, "TEXT"} }

// child maps one StructuredCV collection to its table.
type child struct {
	table   string
	columns []column
	// rows returns one value slice per record, in column order
	rows func(cv *entity.StructuredCV) [][]any
	// load scans one row and appends it to cv
	load func(cv *entity.StructuredCV, scan func(dest ...any) error) error
}

func (c child) names() []string {
	out := make([]string, len(c.columns))
	for i, col := range c.columns {
		out[i] = col.name
	}
	return out
}

var children = []child{
	{
		table:   "education",
		columns: []column{text("degree"), text("field"), text("institution"), text("country"), text("start_date"), text("end_date")},
		rows: func(cv *entity.StructuredCV) [][]any {
			out := make([][]any, 0, len(cv.Education))
			for _, e := range cv.Education {
				out = append(out, []any{e.Degree, e.Field, e.Institution, e.Country, e.StartDate, e.EndDate})
			}
			return out
		},
		load: func(cv *entity.StructuredCV, scan func(...any) error) error {
			var e entity.Education
			if err := scan(&e.Degree, &e.Field, &e.Institution, &e.Country, &e.StartDate, &e.EndDate); err != nil {
				return err
			}
			cv.Education = append(cv.Education, e)
			return nil
		},
	},
	{
		table: "publications",
		columns: []column{text("title"), text("authors"), text("venue"), {"publication_year", "INTEGER"},
			text("doi"), text("publication_type")},
		rows: func(cv *entity.StructuredCV) [][]any {
			out := make([][]any, 0, len(cv.Publications))
			for _, p := range cv.Publications {
				out = append(out, []any{p.Title, p.Authors, p.Venue, p.PublicationYear, p.DOI, p.PublicationType})
			}
			return out
		},
		load: func(cv *entity.StructuredCV, scan func(...any) error) error {
			var p entity.Publication
			if err := scan(&p.Title, &p.Authors, &p.Venue, &p.PublicationYear, &p.DOI, &p.PublicationType); err != nil {
				return err
			}
			cv.Publications = append(cv.Publications, p)
			return nil
		},
	},
	{
		table:   "experience",
		columns: []column{text("position"), text("institution"), text("department"), text("start_date"), text("end_date")},
		rows: func(cv *entity.StructuredCV) [][]any {
			out := make([][]any, 0, len(cv.Experience))
			for _, e := range cv.Experience {
				out = append(out, []any{e.Position, e.Institution, e.Department, e.StartDate, e.EndDate})
			}
			return out
		},
		load: func(cv *entity.StructuredCV, scan func(...any) error) error {
			var e entity.Experience
			if err := scan(&e.Position, &e.Institution, &e.Department, &e.StartDate, &e.EndDate); err != nil {
				return err
			}
			cv.Experience = append(cv.Experience, e)
			return nil
		},
	},
	{
		table: "grants",
		columns: []column{text("title"), text("funder"), {"amount", "DOUBLE PRECISION"}, text("currency"),
			text("role"), text("start_date"), text("end_date")},
		rows: func(cv *entity.StructuredCV) [][]any {
			out := make([][]any, 0, len(cv.Grants))
			for _, g := range cv.Grants {
				out = append(out, []any{g.Title, g.Funder, g.Amount, g.Currency, g.Role, g.StartDate, g.EndDate})
			}
			return out
		},
		load: func(cv *entity.StructuredCV, scan func(...any) error) error {
			var g entity.Grant
			if err := scan(&g.Title, &g.Funder, &g.Amount, &g.Currency, &g.Role, &g.StartDate, &g.EndDate); err != nil {
				return err
			}
			cv.Grants = append(cv.Grants, g)
			return nil
		},
	},
	{
		table:   "teaching",
		columns: []column{text("course"), text("institution"), text("level"), text("start_date"), text("end_date")},
		rows: func(cv *entity.StructuredCV) [][]any {
			out := make([][]any, 0, len(cv.Teaching))
			for _, t := range cv.Teaching {
				out = append(out, []any{t.Course, t.Institution, t.Level, t.StartDate, t.EndDate})
			}
			return out
		},
		load: func(cv *entity.StructuredCV, scan func(...any) error) error {
			var t entity.Teaching
			if err := scan(&t.Course, &t.Institution, &t.Level, &t.StartDate, &t.EndDate); err != nil {
				return err
			}
			cv.Teaching = append(cv.Teaching, t)
			return nil
		},
	},
	{
		table: "supervision",
		columns: []column{text("level"), text("thesis_title"), text("role"), text("institution"),
			text("start_date"), text("end_date")},
		rows: func(cv *entity.StructuredCV) [][]any {
			out := make([][]any, 0, len(cv.Supervision))
			for _, s := range cv.Supervision {
				out = append(out, []any{s.Level, s.ThesisTitle, s.Role, s.Institution, s.StartDate, s.EndDate})
			}
			return out
		},
		load: func(cv *entity.StructuredCV, scan func(...any) error) error {
			var s entity.Supervision
			if err := scan(&s.Level, &s.ThesisTitle, &s.Role, &s.Institution, &s.StartDate, &s.EndDate); err != nil {
				return err
			}
			cv.Supervision = append(cv.Supervision, s)
			return nil
		},
	},
	{
		table:   "memberships",
		columns: []column{text("organization"), text("role"), text("start_date"), text("end_date")},
		rows: func(cv *entity.StructuredCV) [][]any {
			out := make([][]any, 0, len(cv.Memberships))
			for _, m := range cv.Memberships {
				out = append(out, []any{m.Organization, m.Role, m.StartDate, m.EndDate})
			}
			return out
		},
		load: func(cv *entity.StructuredCV, scan func(...any) error) error {
			var m entity.Membership
			if err := scan(&m.Organization, &m.Role, &m.StartDate, &m.EndDate); err != nil {
				return err
			}
			cv.Memberships = append(cv.Memberships, m)
			return nil
		},
	},
	{
		table:   "awards",
		columns: []column{text("name"), text("awarding_body"), text("date")},
		rows: func(cv *entity.StructuredCV) [][]any {
			out := make([][]any, 0, len(cv.Awards))
			for _, a := range cv.Awards {
				out = append(out, []any{a.Name, a.AwardingBody, a.Date})
			}
			return out
		},
		load: func(cv *entity.StructuredCV, scan func(...any) error) error {
			var a entity.Award
			if err := scan(&a.Name, &a.AwardingBody, &a.Date); err != nil {
				return err
			}
			cv.Awards = append(cv.Awards, a)
			return nil
		},
	},
	{
		table:   "service",
		columns: []column{text("role"), text("organization"), text("start_date"), text("end_date")},
		rows: func(cv *entity.StructuredCV) [][]any {
			out := make([][]any, 0, len(cv.Service))
			for _, s := range cv.Service {
				out = append(out, []any{s.Role, s.Organization, s.StartDate, s.EndDate})
			}
			return out
		},
		load: func(cv *entity.StructuredCV, scan func(...any) error) error {
			var s entity.Service
			if err := scan(&s.Role, &s.Organization, &s.StartDate, &s.EndDate); err != nil {
				return err
			}
			cv.Service = append(cv.Service, s)
			return nil
		},
	},
}
